package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/sportsclips/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration; type "memory" selects the in-process store.
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	storeType := StorageType(strings.ToLower(cfg.Type))
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	switch storeType {
	case StorageTypeMemory:
		return NewMemoryStorage(), nil
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage bucket is required for %s", storeType)
		}
		return NewS3Storage(&S3Config{
			Type:      storeType,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeMemory
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
