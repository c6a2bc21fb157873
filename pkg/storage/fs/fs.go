package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// Resolver serves documents straight off the local shared volume.
type Resolver struct {
	root   string
	logger logger.Logger
}

func NewResolver(root string, log logger.Logger) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &Resolver{root: abs, logger: log}, nil
}

// Resolve joins the stored path onto the volume root and stats the file.
// Paths escaping the root are rejected.
func (r *Resolver) Resolve(_ context.Context, filePath string) (string, error) {
	abs := filePath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, filePath)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("path %q escapes storage root: %w", filePath, iofs.ErrNotExist)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat document file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("document path %q is a directory: %w", filePath, iofs.ErrNotExist)
	}
	return abs, nil
}

func GetResolver(log logger.Logger) (*Resolver, error) {
	storageConfig := cfg.GetStorageConfig()
	return NewResolver(storageConfig.VolumePath, log)
}
