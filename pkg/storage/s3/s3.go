package s3

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// Resolver verifies documents against an S3 bucket whose contents are
// synced onto the shared volume the OCR engine reads from.
type Resolver struct {
	client     *s3.Client
	bucketName string
	volumePath string
	logger     logger.Logger
}

// Resolve heads the object and maps its key onto the mount.
func (s *Resolver) Resolve(ctx context.Context, filePath string) (string, error) {
	key := strings.TrimPrefix(filePath, "/")

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("object %q not found in bucket %s: %w", key, s.bucketName, iofs.ErrNotExist)
		}
		s.logger.Error("Failed to head object in S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to head object: %w", err)
	}

	return filepath.Join(s.volumePath, s.bucketName, key), nil
}

func NewResolver(log logger.Logger) (*Resolver, error) {
	s3Config := cfg.GetS3Config()

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(s3Config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKey,
			s3Config.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	_, err = client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(s3Config.BucketName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	return &Resolver{
		client:     client,
		bucketName: s3Config.BucketName,
		volumePath: cfg.GetStorageConfig().VolumePath,
		logger:     log,
	}, nil
}

func GetResolver(log logger.Logger) (*Resolver, error) {
	return NewResolver(log)
}
