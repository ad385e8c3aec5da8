package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/paydesk/reconciler/internal/cache"
	"github.com/paydesk/reconciler/internal/config"
	"github.com/paydesk/reconciler/internal/logging"
	"github.com/paydesk/reconciler/internal/services"
)

const (
	maxWebhookBodyBytes = 1 << 20 // 1 MB
	maxRequestBodyBytes = 1 << 20
)

// PaymentService is the part of services.PaymentService the HTTP layer calls.
type PaymentService interface {
	CreatePayment(ctx context.Context, input services.CreatePaymentInput) (*services.CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, identifier string) (*services.VerifyPaymentResult, error)
	VerifyPaymentByGatewayID(ctx context.Context, gatewayID string) (*services.VerifyPaymentResult, error)
}

type ShippingQuoter interface {
	Quote(ctx context.Context, input services.ShippingQuoteInput) (*services.ShippingQuoteResult, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the payment, shipping and webhook endpoints.
type Handlers struct {
	config         *config.Config
	db             Pinger
	payments       PaymentService
	shipping       ShippingQuoter
	cacheProvider  cache.Provider
	allowedOrigins map[string]struct{}
	logger         *slog.Logger
}

type Dependencies struct {
	Config          *config.Config
	DB              Pinger
	PaymentService  PaymentService
	ShippingService ShippingQuoter
	CacheProvider   cache.Provider
	Logger          *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.PaymentService == nil {
		return nil, fmt.Errorf("handlers dependencies: paymentService is required")
	}
	if deps.ShippingService == nil {
		return nil, fmt.Errorf("handlers dependencies: shippingService is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		payments:       deps.PaymentService,
		shipping:       deps.ShippingService,
		cacheProvider:  deps.CacheProvider,
		allowedOrigins: originSet(deps.Config.AllowedOrigins),
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
		return
	}

	writeJSON(w, logger, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// NotFound answers unknown routes with a JSON body.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.loggerFromContext(r.Context()), http.StatusNotFound, errorResponse{
		Error:   "not_found",
		Message: "Route not found",
	})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func (h *Handlers) writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	message := "Invalid JSON body"
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		message = "Request body too large"
	}
	h.loggerFromContext(r.Context()).Warn("rejected request body", "error", err)
	writeJSON(w, h.loggerFromContext(r.Context()), http.StatusBadRequest, errorResponse{
		Error:   "invalid_request",
		Message: message,
		Fields:  []string{err.Error()},
	})
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Gateway and storage causes are logged, never returned to the caller.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())

	var validationErr *services.ValidationError
	var gatewayErr *services.GatewayError
	var persistenceErr *services.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, logger, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: "Request validation failed",
			Fields:  validationErr.Fields,
		})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, logger, http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: "Order not found",
		})
	case errors.As(err, &gatewayErr):
		logger.Error("payment gateway call failed", "error", err, "timeout", gatewayErr.Timeout)
		writeJSON(w, logger, http.StatusBadGateway, errorResponse{
			Error:   "gateway_error",
			Message: gatewayErr.UserMessage(),
		})
	case errors.As(err, &persistenceErr):
		logger.Error("storage operation failed", "error", err, "op", persistenceErr.Op)
		writeJSON(w, logger, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "The request could not be completed. Please try again.",
		})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, logger, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "The request could not be completed. Please try again.",
		})
	}
}
