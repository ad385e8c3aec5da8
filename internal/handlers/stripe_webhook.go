package handlers

import (
	"net/http"

	"github.com/paydesk/reconciler/internal/gateway"
)

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	if !h.gatewayEnabled(w, r, gateway.ProviderStripe) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := gateway.ReadStripeWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Error("failed to read Stripe webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if event == nil || event.ID == "" {
		logger.Error("missing Stripe event ID")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	webhookEvent, ok, err := gateway.StripeWebhookEvent(event)
	if err != nil {
		logger.Error("invalid Stripe checkout event", "error", err, "event_id", event.ID)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}
	if !ok {
		logger.Debug("ignoring Stripe event", "type", event.Type, "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.reconcileWebhook(w, r, gateway.ProviderStripe, webhookEvent)
}
