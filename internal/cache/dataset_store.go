package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/domain"
)

const (
	defaultDatasetKeyPrefix = "stalestock:dataset"
	datasetScanBatchSize    = 100
)

var ErrDatasetNotFound = errors.New("dataset not found or expired")

// DatasetStore keeps loaded datasets for the length of a session.
type DatasetStore interface {
	Save(ctx context.Context, ds *domain.Dataset) error
	Get(ctx context.Context, id string) (*domain.Dataset, error)
	Delete(ctx context.Context, id string) error
	// Purge drops every stored dataset and returns how many were removed.
	Purge(ctx context.Context) (int, error)
}

// NewDatasetStore returns a redis-backed store when caching is enabled and an
// in-process store otherwise.
func NewDatasetStore(cfg config.CacheConfig, ttl time.Duration) (DatasetStore, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if !cfg.Enabled {
		return NewMemoryDatasetStore(ttl), nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultDatasetKeyPrefix
	}

	return &redisDatasetStore{client: client, ttl: ttl, prefix: prefix}, nil
}

type redisDatasetStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func (s *redisDatasetStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *redisDatasetStore) Save(ctx context.Context, ds *domain.Dataset) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset cache: %w", err)
	}

	if err := s.client.Set(ctx, s.key(ds.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *redisDatasetStore) Get(ctx context.Context, id string) (*domain.Dataset, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var ds domain.Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset cache: %w", err)
	}
	return &ds, nil
}

func (s *redisDatasetStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if n == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

func (s *redisDatasetStore) Purge(ctx context.Context) (int, error) {
	return deleteKeysWithPrefix(ctx, s.client, s.prefix+":", datasetScanBatchSize)
}

type memoryEntry struct {
	dataset   *domain.Dataset
	expiresAt time.Time
}

type memoryDatasetStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryDatasetStore keeps datasets in process memory until ttl elapses.
func NewMemoryDatasetStore(ttl time.Duration) DatasetStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &memoryDatasetStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *memoryDatasetStore) Save(_ context.Context, ds *domain.Dataset) error {
	if ds == nil || ds.ID == "" {
		return errors.New("dataset id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[ds.ID] = memoryEntry{dataset: ds, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *memoryDatasetStore) Get(_ context.Context, id string) (*domain.Dataset, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || s.now().After(e.expiresAt) {
		return nil, ErrDatasetNotFound
	}
	return e.dataset, nil
}

func (s *memoryDatasetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	delete(s.entries, id)
	if !ok || s.now().After(e.expiresAt) {
		return ErrDatasetNotFound
	}
	return nil
}

func (s *memoryDatasetStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]memoryEntry)
	return n, nil
}
