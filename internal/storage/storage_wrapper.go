package storage

import (
	"context"
	"time"

	"github.com/mrtongx0/donation-relay/internal/metrics"
	"github.com/mrtongx0/donation-relay/internal/models"
)

// StoreWithMetrics wraps a store implementation with metrics
type StoreWithMetrics struct {
	Store
	metricsManager *metrics.Manager
}

// NewStoreWithMetrics creates a store wrapper with metrics
func NewStoreWithMetrics(store Store, metricsManager *metrics.Manager) *StoreWithMetrics {
	return &StoreWithMetrics{
		Store:          store,
		metricsManager: metricsManager,
	}
}

// Append appends a record and records metrics
func (s *StoreWithMetrics) Append(ctx context.Context, record models.DonationRecord) error {
	start := time.Now()
	err := s.Store.Append(ctx, record)
	s.record("append", err, start)
	return err
}

// List lists records and records metrics
func (s *StoreWithMetrics) List(ctx context.Context) ([]models.DonationRecord, error) {
	start := time.Now()
	records, err := s.Store.List(ctx)
	s.record("list", err, start)
	return records, err
}

func (s *StoreWithMetrics) record(operation string, err error, start time.Time) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordStorageOperation(operation, s.Store.Type(), status, time.Since(start))
}
