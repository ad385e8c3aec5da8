package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	FedaPaySignatureHeader = "X-FEDAPAY-SIGNATURE"

	defaultWebhookTolerance = 5 * time.Minute
)

// WebhookEvent is the provider-neutral part of a webhook delivery.
type WebhookEvent struct {
	ID        string
	Type      string
	GatewayID string
	OrderID   string
}

func ReadStripeWebhookEvent(r *http.Request, secret string) (*stripe.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	return &event, nil
}

// StripeWebhookEvent extracts the checkout session an event refers to. ok is false
// for event types that carry no payment state for an order.
func StripeWebhookEvent(event *stripe.Event) (WebhookEvent, bool, error) {
	if event == nil || event.Data == nil {
		return WebhookEvent{}, false, fmt.Errorf("missing stripe event data")
	}

	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.expired",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed":
	default:
		return WebhookEvent{}, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return WebhookEvent{}, false, fmt.Errorf("invalid event object: %w", err)
	}
	if session.ID == "" {
		return WebhookEvent{}, false, fmt.Errorf("missing session ID")
	}

	observation := StripeObservation(&session)
	return WebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		GatewayID: session.ID,
		OrderID:   observation.OrderID,
	}, true, nil
}

type fedaPayWebhookPayload struct {
	ID     json.Number        `json:"id"`
	Name   string             `json:"name"`
	Entity FedaPayTransaction `json:"entity"`
}

// ReadFedaPayWebhookEvent verifies the signature header and decodes the event.
func ReadFedaPayWebhookEvent(r *http.Request, secret string, now time.Time) (WebhookEvent, error) {
	signature := r.Header.Get(FedaPaySignatureHeader)
	if signature == "" {
		return WebhookEvent{}, fmt.Errorf("missing fedapay signature header")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("failed to read request body: %w", err)
	}

	if err := VerifyFedaPaySignature(payload, signature, secret, now, defaultWebhookTolerance); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	var event fedaPayWebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("invalid event object: %w", err)
	}
	gatewayID, err := ParseFedaPayID(event.Entity.ID)
	if err != nil {
		return WebhookEvent{}, err
	}

	eventID := event.ID.String()
	if eventID == "" {
		eventID = event.Name + ":" + gatewayID + ":" + event.Entity.Status
	}

	return WebhookEvent{
		ID:        eventID,
		Type:      event.Name,
		GatewayID: gatewayID,
		OrderID:   event.Entity.CustomMetadata["order_id"],
	}, nil
}

// VerifyFedaPaySignature checks a "t=<unix>,s=<hex hmac>" header where the HMAC-SHA256
// covers "<t>.<payload>".
func VerifyFedaPaySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("webhook secret is not configured")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "s":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	expected := SignFedaPayPayload(payload, secret, unix)
	for _, candidate := range signatures {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

// SignFedaPayPayload computes the raw HMAC for a payload at a timestamp.
func SignFedaPayPayload(payload []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// FedaPaySignatureHeaderValue formats a signature header for a payload.
func FedaPaySignatureHeaderValue(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,s=%s", timestamp, hex.EncodeToString(SignFedaPayPayload(payload, secret, timestamp)))
}
