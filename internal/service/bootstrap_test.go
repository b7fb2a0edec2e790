package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/ingest"
)

func TestNewFromConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Ingest: config.IngestConfig{
			Encodings:       []string{"utf-8", "gbk"},
			DefaultEncoding: "utf-8",
			SampleSize:      1024,
			MaxFileSize:     1 << 20,
		},
		Session: config.SessionConfig{TTLSeconds: 60},
	}

	svc, cleanup, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, svc.archive)
	assert.Nil(t, svc.drive)
	assert.Equal(t, int64(1<<20), svc.maxFileSize)
	assert.Len(t, svc.loader.Resolver().Candidates(), 2)
}

func TestNewFromConfigBadEncoding(t *testing.T) {
	cfg := &config.Config{Ingest: config.IngestConfig{Encodings: []string{"klingon"}}}

	_, cleanup, err := NewFromConfig(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrUnknownEncoding)
	cleanup()
}

func TestNewFromConfigBadStorage(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "ftp"}}

	_, _, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
