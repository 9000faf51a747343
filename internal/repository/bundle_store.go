package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	"EquiCast/pkg/cache"
)

const bundleKey = "forecast:bundle"

// CacheBundleStore persists the cache entry as one JSON document behind a
// cache.Service, Redis in production and the in-process cache in development.
type CacheBundleStore struct {
	cache cache.Service
}

// NewCacheBundleStore creates a cache-backed bundle store.
func NewCacheBundleStore(c cache.Service) repository.BundleStore {
	return &CacheBundleStore{cache: c}
}

func (s *CacheBundleStore) Save(ctx context.Context, entry *models.CacheEntry) error {
	if err := s.cache.Set(ctx, bundleKey, entry, 0); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCacheWrite, err)
	}
	return nil
}

func (s *CacheBundleStore) Load(ctx context.Context) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := s.cache.Get(ctx, bundleKey, &entry); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	return &entry, nil
}

// TryLock and Unlock expose the cache's lock so replicas sharing this store
// can serialize refreshes.
func (s *CacheBundleStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.cache.TryLock(ctx, key, ttl)
}

func (s *CacheBundleStore) Unlock(ctx context.Context, key string) error {
	return s.cache.Unlock(ctx, key)
}

// FileBundleStore persists the cache entry as a JSON file. Writes go through
// a temp file and rename so readers never see a partial document.
type FileBundleStore struct {
	path string
}

// NewFileBundleStore creates a file-backed bundle store.
func NewFileBundleStore(path string) repository.BundleStore {
	if path == "" {
		path = "cached_results.json"
	}
	return &FileBundleStore{path: path}
}

func (s *FileBundleStore) Save(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", models.ErrCacheWrite, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", models.ErrCacheWrite, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", models.ErrCacheWrite, s.path, err)
	}
	return nil
}

func (s *FileBundleStore) Load(ctx context.Context) (*models.CacheEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(s.path), err)
	}
	return &entry, nil
}
