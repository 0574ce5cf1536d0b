package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// FileStore keeps the donation log as a single JSON array file that is read
// and rewritten wholesale on every access.
//
// A missing or unreadable file is treated as an empty log. The mutex only
// serialises writers inside this process.
type FileStore struct {
	path   string
	logger *logrus.Entry

	mu sync.Mutex
}

// NewFileStore creates a file-backed store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: utils.GetLogger().WithField("component", "file_store"),
	}
}

// Connect ensures the parent directory exists
func (s *FileStore) Connect() error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return utils.WrapAppError(utils.ErrCodeStorage, "Failed to create log directory", err)
		}
	}
	s.logger.WithField("path", s.path).Info("Donation log file ready")
	return nil
}

// Close is a no-op; nothing is held open between calls
func (s *FileStore) Close() error { return nil }

// Ping checks that the log directory is reachable
func (s *FileStore) Ping() error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return utils.WrapAppError(utils.ErrCodeStorage, "Log directory unavailable", err)
	}
	return nil
}

// Migrate is a no-op for the file backend
func (s *FileStore) Migrate() error { return nil }

// Type returns "file"
func (s *FileStore) Type() string { return "file" }

// GetHealth reports whether the log directory is reachable
func (s *FileStore) GetHealth() *HealthStatus {
	health := &HealthStatus{Healthy: true, Backend: s.Type()}
	if err := s.Ping(); err != nil {
		health.Healthy = false
		health.Error = err.Error()
	}
	return health
}

// Append adds a record to the end of the log
func (s *FileStore) Append(ctx context.Context, record models.DonationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.read()
	records = append(records, record)
	return s.write(records)
}

// List returns the whole log; read failures yield an empty list
func (s *FileStore) List(ctx context.Context) ([]models.DonationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(), nil
}

func (s *FileStore) read() []models.DonationRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("Failed to read donation log, treating as empty")
		}
		return []models.DonationRecord{}
	}

	var records []models.DonationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.WithError(err).Warn("Donation log is corrupt, treating as empty")
		return []models.DonationRecord{}
	}
	if records == nil {
		records = []models.DonationRecord{}
	}
	return records
}

func (s *FileStore) write(records []models.DonationRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to encode donation log", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to create temp log file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to write donation log", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to write donation log", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to replace donation log", err)
	}
	return nil
}
