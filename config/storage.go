package config

import (
	"os"
	"sync"
)

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig describes the shared document volume and which backing
// store verifies object existence.
type StorageConfig struct {
	// Type is one of "fs", "minio", "s3".
	Type string
	// VolumePath is the mount point of the shared volume the OCR engine
	// reads documents from.
	VolumePath string
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadDotenv()

		storageConfig = &StorageConfig{
			Type:       getenvDefault("STORAGE_TYPE", "fs"),
			VolumePath: getenvDefault("STORAGE_VOLUME_PATH", "/var/lib/docvault/documents"),
		}
	})
	return storageConfig
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
