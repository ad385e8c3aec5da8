package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/paydesk/reconciler/internal/services"
)

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var input services.CreatePaymentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	result, err := h.payments.CreatePayment(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.loggerFromContext(r.Context()), http.StatusCreated, result)
}

type verifyPaymentRequest struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var input verifyPaymentRequest
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	identifier := strings.TrimSpace(input.OrderID)
	if identifier == "" {
		identifier = strings.TrimSpace(input.OrderNumber)
	}
	h.verify(w, r, identifier)
}

// GetPayment is the polling form of VerifyPayment.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, mux.Vars(r)["identifier"])
}

func (h *Handlers) verify(w http.ResponseWriter, r *http.Request, identifier string) {
	result, err := h.payments.VerifyPayment(r.Context(), identifier)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.loggerFromContext(r.Context()), http.StatusOK, result)
}
