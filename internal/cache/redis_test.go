package cache

import (
	"context"
	"testing"
)

func TestNewRedisProviderRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisProvider(context.Background(), "localhost:6379"); err == nil {
		t.Fatal("expected error for connection string without scheme")
	}
}

func TestRedisCacheKey(t *testing.T) {
	t.Parallel()

	if got := redisCacheKey(WebhookKey("stripe", "evt_1")); got != "paydesk:webhook:stripe:evt_1" {
		t.Fatalf("unexpected key %q", got)
	}
}
