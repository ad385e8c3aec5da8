package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryProviderExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	provider, err := newMemoryProvider(16, clock.Now)
	if err != nil {
		t.Fatalf("newMemoryProvider: %v", err)
	}
	ctx := context.Background()

	if err := provider.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := provider.Get(ctx, "k"); err != nil || got != "v" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	clock.Advance(time.Minute)
	if _, err := provider.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

func TestMemoryProviderEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	provider, err := newMemoryProvider(2, time.Now)
	if err != nil {
		t.Fatalf("newMemoryProvider: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := provider.Set(ctx, key, key, time.Hour); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	if _, err := provider.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected oldest key to be evicted, got %v", err)
	}
	if _, err := provider.Get(ctx, "c"); err != nil {
		t.Fatalf("expected newest key to be present, got %v", err)
	}
}

func TestWebhookProcessedMarkers(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	ctx := context.Background()
	key := WebhookKey("fedapay", "evt_1")

	if key != "webhook:fedapay:evt_1" {
		t.Fatalf("unexpected key %q", key)
	}

	seen, err := WasProcessed(ctx, provider, key)
	if err != nil || seen {
		t.Fatalf("WasProcessed() before mark = %v, %v", seen, err)
	}

	if err := MarkProcessed(ctx, provider, key); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	seen, err = WasProcessed(ctx, provider, key)
	if err != nil || !seen {
		t.Fatalf("WasProcessed() after mark = %v, %v", seen, err)
	}

	if seen, _ := WasProcessed(ctx, provider, WebhookKey("stripe", "evt_1")); seen {
		t.Fatal("keys must be namespaced by source")
	}
}

func TestWasProcessedPropagatesErrors(t *testing.T) {
	t.Parallel()

	_, err := WasProcessed(context.Background(), failingProvider{}, "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

type failingProvider struct{}

func (failingProvider) Get(context.Context, string) (string, error) {
	return "", errors.New("redis: connection refused")
}

func (failingProvider) Set(context.Context, string, string, time.Duration) error {
	return errors.New("redis: connection refused")
}

func (failingProvider) Delete(context.Context, string) error { return nil }

func (failingProvider) Close() error { return nil }

func TestNewProviderRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewProvider(context.Background(), Config{Provider: "memcached"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := NewProvider(context.Background(), Config{})
	if err != nil {
		t.Fatalf("NewProvider(default): %v", err)
	}
	if _, ok := p.(*MemoryProvider); !ok {
		t.Fatalf("expected memory provider by default, got %T", p)
	}
}
