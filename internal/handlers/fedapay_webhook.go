package handlers

import (
	"net/http"
	"time"

	"github.com/paydesk/reconciler/internal/gateway"
)

func (h *Handlers) FedaPayWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	if !h.gatewayEnabled(w, r, gateway.ProviderFedaPay) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := gateway.ReadFedaPayWebhookEvent(r, h.config.FedaPayWebhookSecret, time.Now())
	if err != nil {
		logger.Error("failed to read FedaPay webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	h.reconcileWebhook(w, r, gateway.ProviderFedaPay, event)
}
