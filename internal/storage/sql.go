package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// dialect captures the differences between the SQL backends
type dialect struct {
	name       string
	driver     string
	insertSQL  string
	migrations []*Migration
}

var (
	sqliteDialect = dialect{
		name:       "sqlite",
		driver:     "sqlite",
		insertSQL:  `INSERT INTO donations (name, amount, time) VALUES (?, ?, ?)`,
		migrations: GetSQLiteMigrations(),
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "postgres",
		insertSQL:  `INSERT INTO donations (name, amount, time) VALUES ($1, $2, $3)`,
		migrations: GetPostgreSQLMigrations(),
	}
)

const listDonationsSQL = `SELECT name, amount, time FROM donations ORDER BY id ASC`

const connectTimeout = 10 * time.Second

// SQLStore keeps the donation log in a relational database
type SQLStore struct {
	db      *sql.DB
	config  *StorageConfig
	dialect dialect
	logger  *logrus.Entry
}

// NewSQLiteStore creates a SQLite-backed store
func NewSQLiteStore(config *StorageConfig) *SQLStore {
	return newSQLStore(config, sqliteDialect)
}

// NewPostgreSQLStore creates a PostgreSQL-backed store
func NewPostgreSQLStore(config *StorageConfig) *SQLStore {
	return newSQLStore(config, postgresDialect)
}

func newSQLStore(config *StorageConfig, d dialect) *SQLStore {
	return &SQLStore{
		config:  config,
		dialect: d,
		logger:  utils.GetLogger().WithField("component", d.name+"_store"),
	}
}

// Connect establishes database connection
func (s *SQLStore) Connect() error {
	dsn := s.config.ConnectionString
	if s.dialect.name == "sqlite" {
		if dsn == "" {
			dsn = s.config.Path
		}
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return utils.WrapAppError(utils.ErrCodeStorage, "Failed to create database directory", err)
			}
		}
	}

	db, err := sql.Open(s.dialect.driver, dsn)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to open database", err)
	}

	maxConns := s.config.MaxConnections
	if maxConns <= 0 {
		maxConns = 5
	}
	if s.dialect.name == "sqlite" {
		// SQLite allows one writer at a time.
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if s.config.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(s.config.MaxIdleTime)
	}

	if s.dialect.name == "sqlite" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return utils.WrapAppError(utils.ErrCodeStorage, "Failed to enable WAL mode", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to reach database", err)
	}

	s.db = db
	s.logger.Info("Database connected")
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("Database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLStore) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	for _, migration := range s.dialect.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.WrapAppError(utils.ErrCodeStorage,
				fmt.Sprintf("Migration %s failed", migration.Version), err)
		}
	}
	return nil
}

// Type returns the backend name
func (s *SQLStore) Type() string { return s.dialect.name }

// GetHealth reports database reachability
func (s *SQLStore) GetHealth() *HealthStatus {
	health := &HealthStatus{Healthy: true, Backend: s.Type()}
	if err := s.Ping(); err != nil {
		health.Healthy = false
		health.Error = err.Error()
	}
	return health
}

// Append inserts a record
func (s *SQLStore) Append(ctx context.Context, record models.DonationRecord) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.insertSQL, record.Name, record.Amount, record.Time); err != nil {
		return utils.WrapAppError(utils.ErrCodeStorage, "Failed to append donation", err)
	}
	return nil
}

// List returns all records in insertion order
func (s *SQLStore) List(ctx context.Context) ([]models.DonationRecord, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	rows, err := s.db.QueryContext(ctx, listDonationsSQL)
	if err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeStorage, "Failed to list donations", err)
	}
	defer rows.Close()

	records := []models.DonationRecord{}
	for rows.Next() {
		var rec models.DonationRecord
		if err := rows.Scan(&rec.Name, &rec.Amount, &rec.Time); err != nil {
			return nil, utils.WrapAppError(utils.ErrCodeStorage, "Failed to scan donation", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeStorage, "Failed to iterate donations", err)
	}
	return records, nil
}
