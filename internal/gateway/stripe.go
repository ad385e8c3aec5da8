package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/reconcile"
)

// ClassifyStripeStatus maps the native status reported by StripeObservation.
// A complete session reports its payment status, any other session its own status.
func ClassifyStripeStatus(status string) reconcile.Outcome {
	switch status {
	case string(stripe.CheckoutSessionPaymentStatusPaid), string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired):
		return reconcile.OutcomeSuccessful
	case string(stripe.CheckoutSessionStatusExpired):
		return reconcile.OutcomeFailed
	default:
		return reconcile.OutcomePending
	}
}

type stripeSessionAPI interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	Retrieve(ctx context.Context, id string, params *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	SecretKey string
	AccountID string
	CancelURL string
	Timeout   time.Duration

	sessions stripeSessionAPI
}

// StripeClient creates Stripe Checkout sessions and reads their state back.
type StripeClient struct {
	sessions  stripeSessionAPI
	accountID string
	cancelURL string
	timeout   time.Duration
}

func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	sessions := cfg.sessions
	if sessions == nil {
		secretKey := strings.TrimSpace(cfg.SecretKey)
		if secretKey == "" {
			return nil, fmt.Errorf("stripe: secret key is required")
		}
		backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
			HTTPClient: observability.NewHTTPClient(0, stripe.APIURL, stripe.UploadsURL),
		})
		sessions = stripe.NewClient(secretKey, stripe.WithBackends(backends)).V1CheckoutSessions
	}

	return &StripeClient{
		sessions:  sessions,
		accountID: strings.TrimSpace(cfg.AccountID),
		cancelURL: strings.TrimSpace(cfg.CancelURL),
		timeout:   cfg.Timeout,
	}, nil
}

func (c *StripeClient) Provider() string {
	return ProviderStripe
}

func (c *StripeClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if err := ValidateSessionRequest(req); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		return Session{}, &ValidationError{Fields: []string{"return url is required"}}
	}

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "xof"
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Order %s", firstNonEmpty(req.OrderNumber, req.OrderID))
	}

	metadata := sessionMetadata(req)
	metadata["customer_name"] = strings.TrimSpace(req.Customer.Name)
	metadata["customer_phone"] = strings.TrimSpace(req.Customer.Phone)

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		CancelURL:         stripe.String(firstNonEmpty(c.cancelURL, req.ReturnURL)),
		ClientReferenceID: stripe.String(req.OrderID),
		CustomerEmail:     stripe.String(strings.TrimSpace(req.Customer.Email)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if c.accountID != "" {
		params.SetStripeAccount(c.accountID)
	}

	session, err := c.sessions.Create(ctx, params)
	if err != nil {
		return Session{}, stripeError(ctx, "create checkout session", err)
	}

	amount := session.AmountTotal
	if amount == 0 {
		amount = req.Amount
	}
	return Session{
		GatewayID:  session.ID,
		PaymentURL: session.URL,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
	}, nil
}

func (c *StripeClient) GetStatus(ctx context.Context, gatewayID string) (Observation, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return Observation{}, &ValidationError{Fields: []string{"gateway id is required"}}
	}

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionRetrieveParams{}
	if c.accountID != "" {
		params.SetStripeAccount(c.accountID)
	}
	session, err := c.sessions.Retrieve(ctx, gatewayID, params)
	if err != nil {
		return Observation{}, stripeError(ctx, "retrieve checkout session", err)
	}

	return StripeObservation(session), nil
}

// StripeObservation converts a checkout session into an observation.
func StripeObservation(session *stripe.CheckoutSession) Observation {
	if session == nil {
		return Observation{Status: "", Outcome: reconcile.OutcomePending}
	}

	status := string(session.Status)
	if session.Status == stripe.CheckoutSessionStatusComplete {
		status = string(session.PaymentStatus)
	}

	transactionID := ""
	if session.PaymentIntent != nil {
		transactionID = session.PaymentIntent.ID
	}

	orderID := session.ClientReferenceID
	if orderID == "" {
		orderID = session.Metadata["order_id"]
	}

	return Observation{
		Status:        status,
		Outcome:       ClassifyStripeStatus(status),
		Amount:        session.AmountTotal,
		Currency:      strings.ToUpper(string(session.Currency)),
		GatewayID:     session.ID,
		TransactionID: transactionID,
		OrderID:       orderID,
	}
}

func stripeError(ctx context.Context, op string, err error) error {
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Provider:   ProviderStripe,
			Op:         op,
			StatusCode: apiErr.HTTPStatusCode,
			Code:       string(apiErr.Code),
			Message:    apiErr.Msg,
			Detail:     apiErr.Error(),
			Err:        err,
		}
	}
	return transportError(ctx, ProviderStripe, op, err)
}
