// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/mrtongx0/donation-relay/internal/models"
)

// Store is the persisted donation log. Records are only ever appended.
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Donation log operations
	Append(ctx context.Context, record models.DonationRecord) error
	List(ctx context.Context) ([]models.DonationRecord, error)

	// Type returns the backend name, e.g. "file" or "sqlite"
	Type() string
	GetHealth() *HealthStatus
}

// HealthStatus describes the state of a backend
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	Path             string        `json:"path"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
