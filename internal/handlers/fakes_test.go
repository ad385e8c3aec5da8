package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/paydesk/reconciler/internal/cache"
	"github.com/paydesk/reconciler/internal/config"
	"github.com/paydesk/reconciler/internal/services"
)

type fakePayments struct {
	mu sync.Mutex

	createInput services.CreatePaymentInput
	createRes   *services.CreatePaymentResult
	createErr   error

	verifyCalls  []string
	byGatewayID  []string
	verifyResult *services.VerifyPaymentResult
	verifyErr    error
	byGatewayErr error
}

func (f *fakePayments) CreatePayment(_ context.Context, input services.CreatePaymentInput) (*services.CreatePaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createInput = input
	return f.createRes, f.createErr
}

func (f *fakePayments) VerifyPayment(_ context.Context, identifier string) (*services.VerifyPaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls = append(f.verifyCalls, identifier)
	return f.verifyResult, f.verifyErr
}

func (f *fakePayments) VerifyPaymentByGatewayID(_ context.Context, gatewayID string) (*services.VerifyPaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byGatewayID = append(f.byGatewayID, gatewayID)
	if f.byGatewayErr != nil {
		return nil, f.byGatewayErr
	}
	return f.verifyResult, f.verifyErr
}

func (f *fakePayments) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifyCalls) + len(f.byGatewayID)
}

type fakeQuoter struct {
	input  services.ShippingQuoteInput
	result *services.ShippingQuoteResult
	err    error
}

func (f *fakeQuoter) Quote(_ context.Context, input services.ShippingQuoteInput) (*services.ShippingQuoteResult, error) {
	f.input = input
	return f.result, f.err
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func testConfig() *config.Config {
	return &config.Config{
		GatewayProvider:      "fedapay",
		FedaPayWebhookSecret: "wh_sandbox_secret",
		StripeWebhookSecret:  "whsec_test_secret",
		AllowedOrigins:       []string{"https://boutique.example.com"},
	}
}

func newTestHandlers(t *testing.T, cfg *config.Config, payments *fakePayments, quoter *fakeQuoter) *Handlers {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}
	if payments == nil {
		payments = &fakePayments{}
	}
	if quoter == nil {
		quoter = &fakeQuoter{}
	}
	provider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}

	h, err := New(Dependencies{
		Config:          cfg,
		DB:              fakePinger{},
		PaymentService:  payments,
		ShippingService: quoter,
		CacheProvider:   provider,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}
