package minio

import (
	"context"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// Resolver verifies documents against a MinIO bucket whose contents are
// mounted on the shared volume the OCR engine reads from.
type Resolver struct {
	client     *minio.Client
	bucketName string
	volumePath string
	logger     logger.Logger
}

// Resolve stats the object in the bucket and maps its key onto the mount.
func (m *Resolver) Resolve(ctx context.Context, filePath string) (string, error) {
	key := strings.TrimPrefix(filePath, "/")

	_, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return "", fmt.Errorf("object %q not found in bucket %s: %w", key, m.bucketName, iofs.ErrNotExist)
		}
		m.logger.Error("Failed to stat object in MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	return filepath.Join(m.volumePath, m.bucketName, key), nil
}

func NewResolver(log logger.Logger) (*Resolver, error) {
	minioConfig := cfg.GetMinioConfig()
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", minioConfig.BucketName)
	}

	return &Resolver{
		client:     client,
		bucketName: minioConfig.BucketName,
		volumePath: cfg.GetStorageConfig().VolumePath,
		logger:     log,
	}, nil
}

func GetResolver(log logger.Logger) (*Resolver, error) {
	return NewResolver(log)
}
