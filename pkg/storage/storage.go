package storage

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"

	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/storage/fs"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/storage/minio"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/storage/s3"
)

// StorageType selects the backing document store.
type StorageType string

const (
	StorageTypeFS    StorageType = "fs"
	StorageTypeMinio StorageType = "minio"
	StorageTypeS3    StorageType = "s3"
)

// Resolver locates a document on the shared storage volume. The OCR engine
// reads files from that volume directly, so a resolver never transfers
// content: it verifies the document exists in the backing store and returns
// the absolute path the engine will read it from.
type Resolver interface {
	// Resolve returns the absolute on-disk path for the stored document,
	// or an error satisfying IsNotFound when the document is missing.
	Resolve(ctx context.Context, filePath string) (string, error)
}

// NewResolver is the factory for path resolvers.
func NewResolver(storageType StorageType, log logger.Logger) (Resolver, error) {
	switch storageType {
	case StorageTypeFS:
		return fs.GetResolver(log)
	case StorageTypeMinio:
		return minio.GetResolver(log)
	case StorageTypeS3:
		return s3.GetResolver(log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// IsNotFound reports whether err means the document file is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, iofs.ErrNotExist)
}
