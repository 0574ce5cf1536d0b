package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrtongx0/donation-relay/internal/models"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, store.Connect())

	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestFileStoreAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.json")
	store := NewFileStore(path)
	require.NoError(t, store.Connect())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, models.DonationRecord{Name: "Mint", Amount: 120, Time: "2026-10-10T10:00:00Z"}))
	require.NoError(t, store.Append(ctx, models.DonationRecord{Name: "Bee", Amount: 20, Time: "2026-10-11T10:00:00Z"}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Mint", records[0].Name)
	assert.Equal(t, 120.0, records[0].Amount)
	assert.Equal(t, "Bee", records[1].Name)

	// The file is a plain JSON array.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"name":"Mint","amount":120,"time":"2026-10-10T10:00:00Z"},
		{"name":"Bee","amount":20,"time":"2026-10-11T10:00:00Z"}
	]`, string(data))
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path)
	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	// Appending replaces the corrupt content with a well-formed list.
	require.NoError(t, store.Append(context.Background(), models.DonationRecord{Name: "A", Amount: 1, Time: "2026-10-10T10:00:00Z"}))
	records, err = store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileStoreNullFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	records, err := NewFileStore(path).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFileStoreHealth(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "log.json"))
	health := store.GetHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, "file", health.Backend)

	missing := NewFileStore(filepath.Join(t.TempDir(), "absent", "log.json"))
	assert.False(t, missing.GetHealth().Healthy)
}

func TestFileStoreCancelledContext(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "log.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Append(ctx, models.DonationRecord{Name: "A"}))
}
