package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/domain"
)

func TestMemoryDatasetStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDatasetStore(time.Minute)

	ds := &domain.Dataset{ID: "abc", FileName: "a.csv"}
	require.NoError(t, store.Save(ctx, ds))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, ds, got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	require.NoError(t, store.Delete(ctx, "abc"))
	assert.ErrorIs(t, store.Delete(ctx, "abc"), ErrDatasetNotFound)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestMemoryDatasetStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDatasetStore(time.Minute).(*memoryDatasetStore)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &domain.Dataset{ID: "old"}))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	// expired entries are swept on the next save
	require.NoError(t, store.Save(ctx, &domain.Dataset{ID: "new"}))
	assert.Len(t, store.entries, 1)
}

func TestMemoryDatasetStorePurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDatasetStore(0)

	require.NoError(t, store.Save(ctx, &domain.Dataset{ID: "a"}))
	require.NoError(t, store.Save(ctx, &domain.Dataset{ID: "b"}))

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestMemoryDatasetStoreRequiresID(t *testing.T) {
	assert.Error(t, NewMemoryDatasetStore(time.Minute).Save(context.Background(), &domain.Dataset{}))
}

func TestNewDatasetStoreDisabled(t *testing.T) {
	store, err := NewDatasetStore(config.CacheConfig{Enabled: false}, 0)
	require.NoError(t, err)
	assert.IsType(t, &memoryDatasetStore{}, store)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisPassword: "secret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:pw@cache:6380/3"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestRedisDatasetKey(t *testing.T) {
	s := &redisDatasetStore{prefix: "stalestock:dataset"}
	assert.Equal(t, "stalestock:dataset:123", s.key("123"))
}
