package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/paydesk/reconciler/internal/services"
)

type shippingQuoteRequest struct {
	City             string      `json:"city"`
	Country          string      `json:"country"`
	CartTotal        json.Number `json:"cartTotal"`
	ShippingMethodID string      `json:"shippingMethodId"`
}

// ShippingQuote answers 200 whether or not a rate matched; see Found and Reason.
func (h *Handlers) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	var req shippingQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	cartTotal, err := wholeAmount("cartTotal", req.CartTotal)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.shipping.Quote(r.Context(), services.ShippingQuoteInput{
		City:             req.City,
		Country:          req.Country,
		CartTotal:        cartTotal,
		ShippingMethodID: req.ShippingMethodID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.loggerFromContext(r.Context()), http.StatusOK, result)
}

// wholeAmount reads an amount in the currency's smallest unit. 1500 and 1500.0 are
// accepted, 1500.5 is not.
func wholeAmount(field string, number json.Number) (int64, error) {
	if number == "" {
		return 0, nil
	}
	if value, err := number.Int64(); err == nil {
		return value, nil
	}

	value, err := number.Float64()
	if err != nil || value != math.Trunc(value) || math.Abs(value) >= math.MaxInt64 {
		return 0, &services.ValidationError{Fields: []string{field + " must be a whole amount in the smallest currency unit"}}
	}
	return int64(value), nil
}
