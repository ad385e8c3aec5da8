package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryCacheSize = 10_000

// MemoryProvider is a bounded in-process cache. Entries are dropped on expiry or
// when the least recently used entry is evicted.
type MemoryProvider struct {
	cache *lru.Cache[string, item]
	now   func() time.Time
}

type item struct {
	value     string
	expiresAt time.Time
}

func NewMemoryProvider() (*MemoryProvider, error) {
	return newMemoryProvider(defaultMemoryCacheSize, time.Now)
}

func newMemoryProvider(size int, now func() time.Time) (*MemoryProvider, error) {
	c, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c, now: now}, nil
}

func (m *MemoryProvider) Get(_ context.Context, key string) (string, error) {
	cached, exists := m.cache.Get(key)
	if !exists {
		return "", ErrNotFound
	}

	if !m.now().Before(cached.expiresAt) {
		m.cache.Remove(key)
		return "", ErrNotFound
	}

	return cached.value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.cache.Add(key, item{
		value:     value,
		expiresAt: m.now().Add(ttl),
	})
	return nil
}

func (m *MemoryProvider) Delete(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
