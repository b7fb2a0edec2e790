package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stalestock/internal/domain"
)

func TestNoopImportLogRepository(t *testing.T) {
	repo := NewNoopImportLogRepository()

	require.NoError(t, repo.Record(context.Background(), &domain.ImportLogEntry{FileName: "a.csv"}))

	entries, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
