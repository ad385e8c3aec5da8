// Package cache remembers processed webhook deliveries so retries are acknowledged
// without reconciling twice.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WebhookIdempotencyTTL is how long a processed delivery is remembered. Gateways stop
// retrying well within a day.
const WebhookIdempotencyTTL = 24 * time.Hour

const processedMarker = "processed"

var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(ctx, cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// WebhookKey namespaces an event id by the gateway that sent it.
func WebhookKey(source, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, eventID)
}

// WasProcessed reports whether key was marked processed and has not expired.
func WasProcessed(ctx context.Context, p Provider, key string) (bool, error) {
	_, err := p.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func MarkProcessed(ctx context.Context, p Provider, key string) error {
	return p.Set(ctx, key, processedMarker, WebhookIdempotencyTTL)
}
