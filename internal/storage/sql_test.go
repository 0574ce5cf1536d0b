package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrtongx0/donation-relay/internal/models"
)

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(&StorageConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "donations.db"),
	})
	require.NoError(t, store.Connect())
	defer store.Close()
	require.NoError(t, store.Migrate())
	require.NoError(t, store.Ping())

	// Migrations are idempotent.
	require.NoError(t, store.Migrate())

	ctx := context.Background()
	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.Append(ctx, models.DonationRecord{Name: "Mint", Amount: 120.5, Time: "2026-10-10T10:00:00Z"}))
	require.NoError(t, store.Append(ctx, models.DonationRecord{Name: "mint", Amount: 5, Time: "2026-10-11T10:00:00Z"}))

	records, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.DonationRecord{Name: "Mint", Amount: 120.5, Time: "2026-10-10T10:00:00Z"}, records[0])
	assert.Equal(t, "mint", records[1].Name)

	health := store.GetHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, "sqlite", health.Backend)
}

func TestSQLStoreNotConnected(t *testing.T) {
	store := NewPostgreSQLStore(&StorageConfig{Type: "postgres"})

	assert.Error(t, store.Ping())
	assert.Error(t, store.Migrate())
	assert.Error(t, store.Append(context.Background(), models.DonationRecord{}))
	_, err := store.List(context.Background())
	assert.Error(t, err)
	assert.False(t, store.GetHealth().Healthy)
	assert.Equal(t, "postgres", store.Type())
}
