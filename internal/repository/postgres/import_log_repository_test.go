package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/domain"
)

func newSQLiteRepo(t *testing.T) *importLogRepository {
	t.Helper()
	db, err := open(&config.DatabaseConfig{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewImportLogRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestImportLogRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, &domain.ImportLogEntry{
		DatasetID: "ds-1",
		FileName:  "march.csv",
		SizeBytes: 512,
		Encoding:  "gb18030",
		Rows:      40,
		Status:    domain.ImportAccepted,
		CreatedAt: base,
	}))
	rejected := &domain.ImportLogEntry{
		FileName:  "bad.csv",
		Status:    domain.ImportRejected,
		Message:   "missing columns: 店铺",
		CreatedAt: base.Add(time.Hour),
	}
	require.NoError(t, repo.Record(ctx, rejected))
	assert.NotEmpty(t, rejected.ID)

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "bad.csv", entries[0].FileName)
	assert.Equal(t, domain.ImportRejected, entries[0].Status)
	assert.Equal(t, "missing columns: 店铺", entries[0].Message)

	assert.Equal(t, "march.csv", entries[1].FileName)
	assert.Equal(t, "ds-1", entries[1].DatasetID)
	assert.Equal(t, 40, entries[1].Rows)
	assert.True(t, base.Equal(entries[1].CreatedAt))

	entries, err = repo.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestImportLogEnsureSchemaIsIdempotent(t *testing.T) {
	repo := newSQLiteRepo(t)
	assert.NoError(t, repo.EnsureSchema(context.Background()))
}
