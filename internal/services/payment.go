package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/gateway"
	"github.com/paydesk/reconciler/internal/logging"
	"github.com/paydesk/reconciler/internal/models"
	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/reconcile"
)

const (
	// maxReconcileAttempts bounds the re-read loop when the conditional write loses a race.
	maxReconcileAttempts = 3
	// maxSupersededSessions bounds how many earlier sessions a poll asks the gateway about.
	maxSupersededSessions = 5
)

type OrderRepository interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*db.Order, error)
	GetByGatewayID(ctx context.Context, gatewayID string) (*db.Order, error)
	ListGatewaySessions(ctx context.Context, orderID uuid.UUID) ([]string, error)
	AttachGateway(ctx context.Context, orderID uuid.UUID, gatewayID string, customer models.Customer) error
	CompareAndUpdate(ctx context.Context, orderID uuid.UUID, expected, next db.OrderState, transactionID string) error
}

type PaymentServiceConfig struct {
	DefaultCurrency  string
	DefaultReturnURL string
	WebhookURL       string
}

// PaymentService creates gateway sessions for orders and reconciles their payment state.
// Webhook deliveries and client polls both end in verifyOrder.
type PaymentService struct {
	orders      OrderRepository
	gateway     gateway.Client
	emailSender PaymentEmailSender
	validate    *validator.Validate
	cfg         PaymentServiceConfig
	logger      *slog.Logger
}

func NewPaymentService(orders OrderRepository, gw gateway.Client, emailSender PaymentEmailSender, cfg PaymentServiceConfig, logger *slog.Logger) (*PaymentService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if emailSender == nil {
		emailSender = noopPaymentEmailSender{}
	}
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		cfg.DefaultCurrency = "XOF"
	}

	return &PaymentService{
		orders:      orders,
		gateway:     gw,
		emailSender: emailSender,
		validate:    newInputValidator(),
		cfg:         cfg,
		logger:      logger,
	}, nil
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CustomerInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

func (c CustomerInput) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

type CreatePaymentInput struct {
	OrderID     string        `json:"orderId" validate:"required"`
	Amount      int64         `json:"amount" validate:"gt=0"`
	Customer    CustomerInput `json:"customer" validate:"required"`
	ReturnURL   string        `json:"returnUrl" validate:"omitempty,url"`
	Description string        `json:"description" validate:"max=255"`
}

type CreatePaymentResult struct {
	GatewayID  string `json:"gateway_id"`
	PaymentURL string `json:"payment_url"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type VerifyPaymentResult struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Status        string               `json:"status"`
	IsSuccessful  bool                 `json:"is_successful"`
	IsFailed      bool                 `json:"is_failed"`
	IsPending     bool                 `json:"is_pending"`
	OrderStatus   models.OrderStatus   `json:"order_status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Amount        int64                `json:"amount"`
	Currency      string               `json:"currency"`
	GatewayID     string               `json:"gateway_id"`
	TransactionID string               `json:"transaction_id"`
	Changed       bool                 `json:"changed"`
}

func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.create_payment",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("CreatePayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("gateway", s.gateway.Provider()))
	recordFailure := func(reason string) {
		observability.CountReason(meter, "payment.create.failed", reason)
	}

	if err := s.validate.Struct(input); err != nil {
		recordFailure("validation")
		return nil, validationErrorFrom(err)
	}

	order, err := s.lookupOrder(ctx, input.OrderID)
	if err != nil {
		recordFailure("order_lookup")
		return nil, err
	}
	if order.IsPaid() {
		recordFailure("already_paid")
		return nil, newValidationError("order is already paid")
	}
	if order.Amount > 0 && order.Amount != input.Amount {
		recordFailure("amount_mismatch")
		logger.Warn("payment amount differs from order amount",
			"order_id", order.ID,
			"order_amount", order.Amount,
			"requested_amount", input.Amount)
		return nil, newValidationError(fmt.Sprintf("amount must equal the order total of %d", order.Amount))
	}

	currency := strings.ToUpper(strings.TrimSpace(order.Currency))
	if currency == "" {
		currency = strings.ToUpper(s.cfg.DefaultCurrency)
	}
	returnURL := strings.TrimSpace(input.ReturnURL)
	if returnURL == "" {
		returnURL = s.cfg.DefaultReturnURL
	}

	customer := gateway.Customer{
		Name:  input.Customer.FullName(),
		Email: strings.TrimSpace(input.Customer.Email),
		Phone: strings.TrimSpace(input.Customer.Phone),
	}
	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		Amount:      input.Amount,
		Currency:    currency,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Customer:    customer,
		ReturnURL:   returnURL,
		WebhookURL:  s.cfg.WebhookURL,
		Description: input.Description,
	})
	if err != nil {
		recordFailure("gateway")
		logger.Error("failed to create payment session", "error", err, "order_id", order.ID)
		return nil, s.gatewayError(err)
	}

	if err := s.orders.AttachGateway(ctx, order.ID, session.GatewayID, models.Customer{
		Name:  customer.Name,
		Email: customer.Email,
		Phone: customer.Phone,
	}); err != nil {
		recordFailure("attach_gateway")
		logger.Error("failed to record gateway session on order", "error", err, "order_id", order.ID, "gateway_id", session.GatewayID)
		return nil, &PersistenceError{Op: "record gateway session", Err: err}
	}

	meter.Count("payment.session.created", 1)
	logger.Info("payment session created", "order_id", order.ID, "order_number", order.OrderNumber, "gateway_id", session.GatewayID)

	if session.Currency == "" {
		session.Currency = currency
	}
	return &CreatePaymentResult{
		GatewayID:  session.GatewayID,
		PaymentURL: session.PaymentURL,
		OrderID:    order.ID.String(),
		Amount:     session.Amount,
		Currency:   session.Currency,
	}, nil
}

// VerifyPayment looks the order up by id or order number and reconciles it with the gateway.
func (s *PaymentService) VerifyPayment(ctx context.Context, identifier string) (*VerifyPaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.verify_payment",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("VerifyPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	order, err := s.lookupOrder(ctx, identifier)
	if err != nil {
		observability.CountReason(observability.MeterFromContext(ctx), "payment.verify.failed", "order_lookup")
		return nil, err
	}
	return s.verifyOrder(ctx, order, "")
}

// VerifyPaymentByGatewayID reconciles the order a gateway session was created for,
// using that session's status even when a later session replaced it.
func (s *PaymentService) VerifyPaymentByGatewayID(ctx context.Context, gatewayID string) (*VerifyPaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.verify_payment_by_gateway_id",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("VerifyPaymentByGatewayID"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, newValidationError("gateway id is required")
	}

	order, err := s.orders.GetByGatewayID(ctx, gatewayID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: order for gateway session %s", ErrNotFound, gatewayID)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load order", Err: err}
	}
	return s.verifyOrder(ctx, order, gatewayID)
}

// verifyOrder reconciles order with the status of sessionID, or of the order's current
// session when sessionID is empty.
func (s *PaymentService) verifyOrder(ctx context.Context, order *db.Order, sessionID string) (*VerifyPaymentResult, error) {
	logger := s.loggerFromContext(ctx).With("order_id", order.ID, "order_number", order.OrderNumber)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("gateway", s.gateway.Provider()))
	recordFailure := func(reason string) {
		observability.CountReason(meter, "payment.verify.failed", reason)
	}

	if sessionID == "" {
		sessionID = strings.TrimSpace(order.GatewayID)
	}
	if sessionID == "" {
		recordFailure("no_gateway_session")
		return nil, newValidationError("order has no payment session")
	}

	observation, err := s.gateway.GetStatus(ctx, sessionID)
	if err != nil {
		recordFailure("gateway")
		logger.Error("failed to fetch payment status", "error", err, "gateway_id", sessionID)
		return nil, s.gatewayError(err)
	}
	if observation.GatewayID == "" {
		observation.GatewayID = sessionID
	}

	if !order.IsPaid() && !observation.IsSuccessful() && sessionID == order.GatewayID {
		if paid, ok := s.findSupersededPayment(ctx, order, logger); ok {
			observation = paid
		}
	}

	if outcome, reason := settledOutcome(order, observation); outcome != observation.Outcome {
		observability.CountReason(meter, "payment.observation.downgraded", reason)
		logger.Warn("gateway observation not applied as reported",
			"reason", reason,
			"gateway_id", observation.GatewayID,
			"gateway_status", observation.Status,
			"gateway_amount", observation.Amount,
			"gateway_currency", observation.Currency,
			"order_amount", order.Amount,
			"order_currency", order.Currency)
		observation.Outcome = outcome
	}

	decision, applied, err := s.applyObservation(ctx, order, observation)
	if err != nil {
		recordFailure("persistence")
		logger.Error("failed to persist reconciled order state", "error", err, "outcome", observation.Outcome)
		return nil, err
	}

	if applied {
		meter.Count("payment.order.transitioned", 1, sentry.WithAttributes(
			attribute.String("from", decision.Current.String()),
			attribute.String("to", decision.Next.String()),
		))
		logger.Info("order payment state updated",
			"from", decision.Current.String(),
			"to", decision.Next.String(),
			"gateway_status", observation.Status)

		if decision.ConfirmsPayment() {
			meter.Count("payment.confirmed", 1)
			if err := s.emailSender.SendPaymentConfirmation(ctx, order); err != nil {
				logger.Warn("failed to send payment confirmation email", "error", err)
			}
		}
	}

	transactionID := observation.TransactionID
	if transactionID == "" {
		transactionID = order.TransactionID
	}
	amount := observation.Amount
	if amount == 0 {
		amount = order.Amount
	}
	currency := observation.Currency
	if currency == "" {
		currency = order.Currency
	}

	return &VerifyPaymentResult{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		Status:        observation.Status,
		IsSuccessful:  observation.IsSuccessful(),
		IsFailed:      observation.IsFailed(),
		IsPending:     observation.IsPending(),
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		Amount:        amount,
		Currency:      currency,
		GatewayID:     observation.GatewayID,
		TransactionID: transactionID,
		Changed:       applied,
	}, nil
}

// findSupersededPayment asks the gateway about sessions an order had before its current
// one and returns the first that reports a successful payment.
func (s *PaymentService) findSupersededPayment(ctx context.Context, order *db.Order, logger *slog.Logger) (gateway.Observation, bool) {
	sessions, err := s.orders.ListGatewaySessions(ctx, order.ID)
	if err != nil {
		logger.Warn("failed to list earlier payment sessions", "error", err)
		return gateway.Observation{}, false
	}

	checked := 0
	for _, sessionID := range sessions {
		if sessionID == order.GatewayID {
			continue
		}
		if checked == maxSupersededSessions {
			break
		}
		checked++

		observation, err := s.gateway.GetStatus(ctx, sessionID)
		if err != nil {
			logger.Warn("failed to fetch status of earlier payment session", "error", err, "gateway_id", sessionID)
			continue
		}
		if observation.IsSuccessful() {
			if observation.GatewayID == "" {
				observation.GatewayID = sessionID
			}
			logger.Info("earlier payment session reports a payment", "gateway_id", sessionID)
			return observation, true
		}
	}
	return gateway.Observation{}, false
}

// settledOutcome is the outcome reconciliation acts on. A success that charged less than
// the order total, or in another currency, confirms nothing. A session other than the
// order's current one can confirm a payment but never fail the order.
func settledOutcome(order *db.Order, observation gateway.Observation) (reconcile.Outcome, string) {
	if observation.IsSuccessful() {
		if order.Amount > 0 && observation.Amount > 0 && observation.Amount < order.Amount {
			return reconcile.OutcomePending, "amount_mismatch"
		}
		if order.Currency != "" && observation.Currency != "" && !strings.EqualFold(order.Currency, observation.Currency) {
			return reconcile.OutcomePending, "currency_mismatch"
		}
		return observation.Outcome, ""
	}
	if observation.IsFailed() && observation.GatewayID != order.GatewayID {
		return reconcile.OutcomePending, "superseded_session"
	}
	return observation.Outcome, ""
}

// applyObservation reconciles and persists with compare-and-update. On a lost race it
// re-reads the row and derives again from the fresh state. order is updated in place
// to the state that ends up persisted.
func (s *PaymentService) applyObservation(ctx context.Context, order *db.Order, observation gateway.Observation) (reconcile.Decision, bool, error) {
	var decision reconcile.Decision
	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		decision = reconcile.Reconcile(order.State(), observation.Outcome)
		if !decision.Changed {
			return decision, false, nil
		}

		err := s.orders.CompareAndUpdate(ctx, order.ID, decision.Current, decision.Next, observation.TransactionID)
		if err == nil {
			order.Status = decision.Next.Status
			order.PaymentStatus = decision.Next.PaymentStatus
			if observation.TransactionID != "" {
				order.TransactionID = observation.TransactionID
			}
			return decision, true, nil
		}
		if !errors.Is(err, db.ErrStaleOrderState) {
			return decision, false, &PersistenceError{Op: "update order state", Err: err}
		}

		s.loggerFromContext(ctx).Debug("order state changed concurrently, re-reading", "order_id", order.ID, "attempt", attempt)
		fresh, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return decision, false, &PersistenceError{Op: "reload order", Err: err}
		}
		*order = *fresh
	}

	return decision, false, &PersistenceError{
		Op:  "update order state",
		Err: fmt.Errorf("%w after %d attempts", db.ErrStaleOrderState, maxReconcileAttempts),
	}
}

func (s *PaymentService) lookupOrder(ctx context.Context, identifier string) (*db.Order, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, newValidationError("orderId or orderNumber is required")
	}

	var (
		order *db.Order
		err   error
	)
	if id, parseErr := uuid.Parse(identifier); parseErr == nil {
		order, err = s.orders.GetByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			order, err = s.orders.GetByOrderNumber(ctx, identifier)
		}
	} else {
		order, err = s.orders.GetByOrderNumber(ctx, identifier)
	}

	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, identifier)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load order", Err: err}
	}
	return order, nil
}

func (s *PaymentService) gatewayError(err error) error {
	var validationErr *gateway.ValidationError
	if errors.As(err, &validationErr) {
		return newValidationError(validationErr.Fields...)
	}

	gwErr := &GatewayError{Provider: s.gateway.Provider(), Err: err}
	var apiErr *gateway.Error
	if errors.As(err, &apiErr) {
		gwErr.Message = apiErr.Message
		gwErr.Timeout = apiErr.Timeout
	}
	return gwErr
}
