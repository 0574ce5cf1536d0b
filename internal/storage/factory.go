// File: internal/storage/factory.go
package storage

import (
	"strings"

	"github.com/mrtongx0/donation-relay/internal/config"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// NewStore creates a new store instance based on configuration
func NewStore(cfg *config.StorageConfig) (Store, error) {
	storageConfig := &StorageConfig{
		Type:             cfg.Type,
		Path:             cfg.Path,
		ConnectionString: cfg.ConnectionString,
		MaxConnections:   cfg.MaxConnections,
		MaxIdleTime:      cfg.MaxIdleTime,
	}

	switch strings.ToLower(cfg.Type) {
	case "", "file", "json":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteStore(storageConfig), nil
	case "postgres", "postgresql":
		return NewPostgreSQLStore(storageConfig), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type", cfg.Type)
	}
}

// ValidateStorageConfig validates storage configuration
func ValidateStorageConfig(cfg *config.StorageConfig) error {
	switch strings.ToLower(cfg.Type) {
	case "", "file", "json":
		if cfg.Path == "" {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Storage path is required for the file backend", "")
		}
	case "sqlite":
		if cfg.Path == "" && cfg.ConnectionString == "" {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Storage path or connection string is required for sqlite", "")
		}
	case "postgres", "postgresql":
		if cfg.ConnectionString == "" {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Storage connection string is required for postgres", "")
		}
	default:
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type",
			"Supported types: file, sqlite, postgres")
	}
	return nil
}
