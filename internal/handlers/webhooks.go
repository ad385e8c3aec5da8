package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go/attribute"

	"github.com/paydesk/reconciler/internal/cache"
	"github.com/paydesk/reconciler/internal/gateway"
	"github.com/paydesk/reconciler/internal/logging"
	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/services"
)

// reconcileWebhook runs one delivery through the same verification a client poll uses.
// The payload only says which order to look at: the state itself is re-read from the
// gateway. Retryable failures answer 500 so the gateway delivers again.
func (h *Handlers) reconcileWebhook(w http.ResponseWriter, r *http.Request, source string, event gateway.WebhookEvent) {
	ctx := logging.WithAttrs(r.Context(), h.logger, "source", source, "event_id", event.ID, "event_type", event.Type)
	logger := h.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.source", source))

	cacheKey := cache.WebhookKey(source, event.ID)
	processed, err := cache.WasProcessed(ctx, h.cacheProvider, cacheKey)
	if err != nil {
		logger.Warn("failed to read webhook idempotency cache", "error", err)
	}
	if processed {
		meter.Count("webhook.duplicate", 1)
		logger.Info("webhook already processed")
		w.WriteHeader(http.StatusOK)
		return
	}

	result, err := h.verifyWebhookEvent(ctx, event)

	var validationErr *services.ValidationError
	switch {
	case err == nil:
		logger.Info("webhook reconciled",
			"order_id", result.OrderID,
			"order_status", result.OrderStatus,
			"payment_status", result.PaymentStatus,
			"changed", result.Changed)
	case errors.Is(err, services.ErrNotFound), errors.As(err, &validationErr):
		observability.CountReason(meter, "webhook.ignored", "unknown_order")
		logger.Warn("webhook does not match a payable order", "error", err, "gateway_id", event.GatewayID, "order_id", event.OrderID)
	default:
		meter.Count("webhook.failed", 1)
		logger.Error("failed to process webhook", "error", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if err := cache.MarkProcessed(ctx, h.cacheProvider, cacheKey); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}
	meter.Count("webhook.processed", 1)
	w.WriteHeader(http.StatusOK)
}

// verifyWebhookEvent reconciles against the session the event is about, which may be an
// earlier session of the order than its current one. The order id in the metadata is the
// fallback for sessions this service has no record of.
func (h *Handlers) verifyWebhookEvent(ctx context.Context, event gateway.WebhookEvent) (*services.VerifyPaymentResult, error) {
	if event.GatewayID == "" {
		return h.payments.VerifyPayment(ctx, event.OrderID)
	}

	result, err := h.payments.VerifyPaymentByGatewayID(ctx, event.GatewayID)
	if errors.Is(err, services.ErrNotFound) && event.OrderID != "" {
		h.loggerFromContext(ctx).Info("no order recorded for webhook session, falling back to order id", "gateway_id", event.GatewayID)
		return h.payments.VerifyPayment(ctx, event.OrderID)
	}
	return result, err
}

func (h *Handlers) gatewayEnabled(w http.ResponseWriter, r *http.Request, provider string) bool {
	if h.config.GatewayProvider == provider {
		return true
	}
	h.loggerFromContext(r.Context()).Warn("webhook for inactive gateway", "provider", provider)
	http.Error(w, "Webhook handler not configured", http.StatusNotFound)
	return false
}
