// Package backup exports and restores library snapshots to local disk or S3.
package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/kukmin84ai/bibliotheca/helper"
)

// Storage stores backup objects under slash separated keys.
type Storage interface {
	// Put stores data under key, replacing an existing object.
	Put(ctx context.Context, key string, data io.Reader) error

	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the sorted keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ConfigFromSettings selects S3 when a bucket is configured and the local
// backup directory otherwise.
func ConfigFromSettings(settings *helper.Settings) StorageConfig {
	if settings.S3Bucket != "" {
		return StorageConfig{
			Type:         StorageTypeS3,
			S3Bucket:     settings.S3Bucket,
			S3Region:     settings.S3Region,
			AWSAccessKey: settings.S3AccessKey,
			AWSSecretKey: settings.S3SecretKey,
		}
	}
	return StorageConfig{Type: StorageTypeLocal, LocalPath: settings.BackupDir}
}
