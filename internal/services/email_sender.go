package services

import (
	"context"
	"fmt"
	"time"

	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/email"
)

type PaymentEmailSender interface {
	SendPaymentConfirmation(ctx context.Context, order *db.Order) error
}

// ProviderPaymentEmailSender sends confirmations through one configured provider.
type ProviderPaymentEmailSender struct {
	provider email.Provider
	timeout  time.Duration
}

func NewProviderPaymentEmailSender(provider email.Provider) *ProviderPaymentEmailSender {
	return &ProviderPaymentEmailSender{
		provider: provider,
		timeout:  10 * time.Second,
	}
}

func (s *ProviderPaymentEmailSender) SendPaymentConfirmation(ctx context.Context, order *db.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if s == nil || s.provider == nil {
		return nil
	}
	if order.CustomerEmail == "" {
		return fmt.Errorf("order %s has no customer email", order.OrderNumber)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	paidAt := order.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	return email.SendPaymentConfirmation(ctx, s.provider, &email.PaymentInfo{
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Amount:        order.Amount,
		Currency:      order.Currency,
		TransactionID: order.TransactionID,
		PaidAt:        paidAt,
	})
}

type noopPaymentEmailSender struct{}

func (noopPaymentEmailSender) SendPaymentConfirmation(context.Context, *db.Order) error {
	return nil
}
