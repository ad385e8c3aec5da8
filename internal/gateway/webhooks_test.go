package gateway

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84/webhook"
)

func TestReadStripeWebhookEvent_MissingSignature(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(`{}`))
	if _, err := ReadStripeWebhookEvent(req, "whsec_test"); err == nil {
		t.Fatal("expected error for missing signature")
	}
}

func TestReadStripeWebhookEvent_Valid(t *testing.T) {
	t.Parallel()

	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_test","object":"event","api_version":"2026-01-28.clover","type":"checkout.session.completed","data":{"object":{"id":"cs_test","object":"checkout.session","client_reference_id":"ord-1","status":"complete","payment_status":"paid"}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)

	event, err := ReadStripeWebhookEvent(req, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, ok, err := StripeWebhookEvent(event)
	if err != nil || !ok {
		t.Fatalf("unexpected result ok=%v err=%v", ok, err)
	}
	if parsed.ID != "evt_test" || parsed.GatewayID != "cs_test" || parsed.OrderID != "ord-1" {
		t.Fatalf("unexpected event: %+v", parsed)
	}
}

func TestReadFedaPayWebhookEvent(t *testing.T) {
	t.Parallel()

	secret := "wh_sandbox_secret"
	now := time.Unix(1760000000, 0)
	payload := []byte(`{"id":991,"name":"transaction.approved","entity":{"id":4242,"reference":"trx_9XbC","status":"approved","custom_metadata":{"order_id":"ord-1"}}}`)

	req := httptest.NewRequest("POST", "/webhooks/fedapay", bytes.NewReader(payload))
	req.Header.Set(FedaPaySignatureHeader, FedaPaySignatureHeaderValue(payload, secret, now.Unix()))

	event, err := ReadFedaPayWebhookEvent(req, secret, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "991" || event.Type != "transaction.approved" || event.GatewayID != "4242" || event.OrderID != "ord-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestVerifyFedaPaySignature(t *testing.T) {
	t.Parallel()

	secret := "wh_sandbox_secret"
	payload := []byte(`{"id":1}`)
	now := time.Unix(1760000000, 0)
	valid := FedaPaySignatureHeaderValue(payload, secret, now.Unix())

	tests := []struct {
		name    string
		header  string
		payload []byte
		secret  string
		now     time.Time
		wantErr bool
	}{
		{name: "valid", header: valid, payload: payload, secret: secret, now: now},
		{name: "tampered payload", header: valid, payload: []byte(`{"id":2}`), secret: secret, now: now, wantErr: true},
		{name: "wrong secret", header: valid, payload: payload, secret: "other", now: now, wantErr: true},
		{name: "stale timestamp", header: valid, payload: payload, secret: secret, now: now.Add(time.Hour), wantErr: true},
		{name: "malformed", header: "garbage", payload: payload, secret: secret, now: now, wantErr: true},
		{name: "missing secret", header: valid, payload: payload, secret: "", now: now, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := VerifyFedaPaySignature(tt.payload, tt.header, tt.secret, tt.now, 5*time.Minute)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyFedaPaySignature() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
