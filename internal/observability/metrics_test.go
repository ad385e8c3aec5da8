package observability

import (
	"context"
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestMeterFromContext(t *testing.T) {
	t.Parallel()

	if MeterFromContext(context.Background()) == nil {
		t.Fatal("expected a meter without one on the context")
	}

	ctx := WithMeter(context.Background(), sentry.NewMeter(context.Background()))
	if MeterFromContext(ctx) == nil {
		t.Fatal("expected the request meter")
	}

	CountReason(nil, "payment.verify.failed", "gateway")
	CountReason(MeterFromContext(ctx), "payment.verify.failed", "gateway")
}

func TestNewHTTPClientWrapsTransport(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(0, "https://sandbox-api.fedapay.com")
	if client.Timeout != 0 {
		t.Fatalf("expected no client timeout, got %s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("expected instrumented transport")
	}
	if NewHTTPClient(5e9).Timeout.Seconds() != 5 {
		t.Fatal("expected 5s timeout")
	}
}

func TestTraceTargets(t *testing.T) {
	t.Parallel()

	got := TraceTargets(
		"https://sandbox-api.fedapay.com",
		"https://SANDBOX-API.fedapay.com/v1/",
		"",
		"http://[::1",
		"https://api.stripe.com",
	)
	want := []string{"sandbox-api.fedapay.com", "api.stripe.com"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
