// Package email sends transactional messages about paid orders.
package email

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderResend   = "resend"
	ProviderPostmark = "postmark"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Tag groups messages in the provider dashboard.
	Tag string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
}

// NewProvider returns nil, nil when no provider is configured.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "":
		return nil, nil
	case ProviderPostmark:
		return NewPostmarkProvider(config.APIKey, config.From), nil
	case ProviderResend:
		return NewResendProvider(config.APIKey, config.From), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be either 'postmark' or 'resend'")
	}
}
