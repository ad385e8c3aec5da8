package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/email"
)

type recordingEmailProvider struct {
	sent []*email.Email
	ctx  context.Context
}

func (p *recordingEmailProvider) SendEmail(ctx context.Context, msg *email.Email) error {
	p.ctx = ctx
	p.sent = append(p.sent, msg)
	return nil
}

func TestProviderPaymentEmailSender(t *testing.T) {
	t.Parallel()

	provider := &recordingEmailProvider{}
	sender := NewProviderPaymentEmailSender(provider)

	order := &db.Order{
		ID:            uuid.New(),
		OrderNumber:   "CMD-1001",
		Amount:        62000,
		Currency:      "XOF",
		CustomerName:  "Afi Dossou",
		CustomerEmail: "afi@example.com",
		TransactionID: "trx_9XbC",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.SendPaymentConfirmation(ctx, order); err != nil {
		t.Fatalf("SendPaymentConfirmation: %v", err)
	}

	if len(provider.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(provider.sent))
	}
	msg := provider.sent[0]
	if msg.To != "afi@example.com" || !strings.Contains(msg.Subject, "CMD-1001") {
		t.Fatalf("unexpected email: %+v", msg)
	}
	if !strings.Contains(msg.Text, "62 000 XOF") {
		t.Fatalf("expected formatted amount in body, got %q", msg.Text)
	}
	if provider.ctx.Err() != nil {
		t.Fatal("send must not inherit the caller's cancellation")
	}
}

func TestProviderPaymentEmailSenderEdges(t *testing.T) {
	t.Parallel()

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()

		sender := NewProviderPaymentEmailSender(nil)
		if err := sender.SendPaymentConfirmation(context.Background(), &db.Order{OrderNumber: "CMD-1"}); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
	})

	t.Run("missing customer email", func(t *testing.T) {
		t.Parallel()

		provider := &recordingEmailProvider{}
		sender := NewProviderPaymentEmailSender(provider)
		if err := sender.SendPaymentConfirmation(context.Background(), &db.Order{OrderNumber: "CMD-1"}); err == nil {
			t.Fatal("expected error for order without customer email")
		}
		if len(provider.sent) != 0 {
			t.Fatalf("expected no email, got %d", len(provider.sent))
		}
	})
}
