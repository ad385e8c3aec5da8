// Package gateway adapts external payment gateways to one session/status contract.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/paydesk/reconciler/internal/reconcile"
)

const (
	ProviderFedaPay = "fedapay"
	ProviderStripe  = "stripe"
)

// DefaultTimeout bounds a single gateway call when the caller configures none.
const DefaultTimeout = 15 * time.Second

type Customer struct {
	Name  string
	Email string
	Phone string
}

type SessionRequest struct {
	Amount      int64
	Currency    string
	OrderID     string
	OrderNumber string
	Customer    Customer
	ReturnURL   string
	WebhookURL  string
	Description string
}

type Session struct {
	GatewayID  string `json:"gateway_id"`
	PaymentURL string `json:"payment_url"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// Observation is what the gateway reported for a transaction at one point in time.
type Observation struct {
	Status        string
	Outcome       reconcile.Outcome
	Amount        int64
	Currency      string
	GatewayID     string
	TransactionID string
	OrderID       string
}

func (o Observation) IsSuccessful() bool {
	return o.Outcome == reconcile.OutcomeSuccessful
}

func (o Observation) IsFailed() bool {
	return o.Outcome == reconcile.OutcomeFailed
}

// IsPending is true for every observation that is neither successful nor failed.
func (o Observation) IsPending() bool {
	return !o.IsSuccessful() && !o.IsFailed()
}

// Client is implemented by every gateway adapter. Implementations hold no state
// between calls beyond their credentials.
type Client interface {
	Provider() string
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	GetStatus(ctx context.Context, gatewayID string) (Observation, error)
}

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid gateway request: %s", strings.Join(e.Fields, ", "))
}

// Error wraps any non-success answer from the gateway, including timeouts.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Code       string
	Message    string
	Detail     string
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s failed", e.Provider, e.Op)
	if e.Timeout {
		b.WriteString(": timeout")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil && e.Message == "" {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a gateway call that ran out of time.
func IsTimeout(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Timeout
}

// ValidateSessionRequest checks the fields every gateway requires.
func ValidateSessionRequest(req SessionRequest) error {
	var fields []string
	if req.Amount <= 0 {
		fields = append(fields, "amount must be greater than zero")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		fields = append(fields, "order id is required")
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		fields = append(fields, "customer name is required")
	}
	email := strings.TrimSpace(req.Customer.Email)
	if email == "" {
		fields = append(fields, "customer email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, "customer email is invalid")
	}
	if strings.TrimSpace(req.Customer.Phone) == "" {
		fields = append(fields, "customer phone is required")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// transportError converts a failed call into an *Error. A deadline is a timeout,
// never a payment outcome.
func transportError(ctx context.Context, provider, op string, err error) error {
	gwErr := &Error{Provider: provider, Op: op, Err: err}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		gwErr.Timeout = true
	}
	return gwErr
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
