package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/reconcile"
)

const (
	FedaPayLiveBaseURL    = "https://api.fedapay.com"
	FedaPaySandboxBaseURL = "https://sandbox-api.fedapay.com"

	maxFedaPayResponseBytes = 1 << 20
)

// FedaPay transaction statuses.
const (
	FedaPayStatusPending     = "pending"
	FedaPayStatusApproved    = "approved"
	FedaPayStatusTransferred = "transferred"
	FedaPayStatusDeclined    = "declined"
	FedaPayStatusCanceled    = "canceled"
	FedaPayStatusCancelled   = "cancelled"
	FedaPayStatusExpired     = "expired"
	FedaPayStatusRefunded    = "refunded"
)

// ClassifyFedaPayStatus maps a native FedaPay status onto exactly one outcome.
// Anything not known to be settled is pending.
func ClassifyFedaPayStatus(status string) reconcile.Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case FedaPayStatusApproved, FedaPayStatusTransferred:
		return reconcile.OutcomeSuccessful
	case FedaPayStatusDeclined, FedaPayStatusCanceled, FedaPayStatusCancelled, FedaPayStatusExpired, FedaPayStatusRefunded:
		return reconcile.OutcomeFailed
	default:
		return reconcile.OutcomePending
	}
}

type FedaPayConfig struct {
	SecretKey    string
	BaseURL      string
	PhoneCountry string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// FedaPayClient talks to the FedaPay transactions API.
type FedaPayClient struct {
	secretKey    string
	baseURL      string
	phoneCountry string
	timeout      time.Duration
	httpClient   *http.Client
}

func NewFedaPayClient(cfg FedaPayConfig) (*FedaPayClient, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("fedapay: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = FedaPaySandboxBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("fedapay: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(0, baseURL)
	}

	phoneCountry := strings.ToLower(strings.TrimSpace(cfg.PhoneCountry))
	if phoneCountry == "" {
		phoneCountry = "bj"
	}

	return &FedaPayClient{
		secretKey:    secretKey,
		baseURL:      baseURL,
		phoneCountry: phoneCountry,
		timeout:      cfg.Timeout,
		httpClient:   httpClient,
	}, nil
}

func (c *FedaPayClient) Provider() string {
	return ProviderFedaPay
}

type fedaPayCustomer struct {
	FirstName   string             `json:"firstname"`
	LastName    string             `json:"lastname"`
	Email       string             `json:"email"`
	PhoneNumber fedaPayPhoneNumber `json:"phone_number"`
}

type fedaPayPhoneNumber struct {
	Number  string `json:"number"`
	Country string `json:"country"`
}

type fedaPayCurrency struct {
	ISO string `json:"iso"`
}

type fedaPayCreateTransaction struct {
	Description    string            `json:"description"`
	Amount         int64             `json:"amount"`
	Currency       fedaPayCurrency   `json:"currency"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	Customer       fedaPayCustomer   `json:"customer"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// FedaPayTransaction is the subset of the transaction resource this service reads.
type FedaPayTransaction struct {
	ID             json.Number       `json:"id"`
	Reference      string            `json:"reference"`
	Status         string            `json:"status"`
	Amount         int64             `json:"amount"`
	Currency       *fedaPayCurrency  `json:"currency,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

type fedaPayTransactionEnvelope struct {
	Transaction FedaPayTransaction `json:"v1/transaction"`
}

type fedaPayToken struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type fedaPayErrorBody struct {
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// CreateSession creates a transaction and a payment token for it.
func (c *FedaPayClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if err := ValidateSessionRequest(req); err != nil {
		return Session{}, err
	}

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	firstName, lastName := splitName(req.Customer.Name)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "XOF"
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Order %s", firstNonEmpty(req.OrderNumber, req.OrderID))
	}

	body := fedaPayCreateTransaction{
		Description: description,
		Amount:      req.Amount,
		Currency:    fedaPayCurrency{ISO: currency},
		CallbackURL: firstNonEmpty(req.ReturnURL, req.WebhookURL),
		Customer: fedaPayCustomer{
			FirstName: firstName,
			LastName:  lastName,
			Email:     strings.TrimSpace(req.Customer.Email),
			PhoneNumber: fedaPayPhoneNumber{
				Number:  strings.TrimSpace(req.Customer.Phone),
				Country: c.phoneCountry,
			},
		},
		CustomMetadata: sessionMetadata(req),
	}

	var created fedaPayTransactionEnvelope
	if err := c.do(ctx, "create transaction", http.MethodPost, "/v1/transactions", body, &created); err != nil {
		return Session{}, err
	}
	transactionID := created.Transaction.ID.String()
	if transactionID == "" {
		return Session{}, &Error{Provider: ProviderFedaPay, Op: "create transaction", Message: "response did not include a transaction id"}
	}

	var token fedaPayToken
	if err := c.do(ctx, "create token", http.MethodPost, "/v1/transactions/"+url.PathEscape(transactionID)+"/token", struct{}{}, &token); err != nil {
		return Session{}, err
	}
	if token.URL == "" {
		return Session{}, &Error{Provider: ProviderFedaPay, Op: "create token", Message: "response did not include a payment url"}
	}

	return Session{
		GatewayID:  transactionID,
		PaymentURL: token.URL,
		Amount:     req.Amount,
		Currency:   currency,
	}, nil
}

// GetStatus fetches the transaction and classifies its status.
func (c *FedaPayClient) GetStatus(ctx context.Context, gatewayID string) (Observation, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return Observation{}, &ValidationError{Fields: []string{"gateway id is required"}}
	}

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	var envelope fedaPayTransactionEnvelope
	if err := c.do(ctx, "get transaction", http.MethodGet, "/v1/transactions/"+url.PathEscape(gatewayID), nil, &envelope); err != nil {
		return Observation{}, err
	}

	return FedaPayObservation(envelope.Transaction), nil
}

// FedaPayObservation converts a transaction resource into an observation.
func FedaPayObservation(trx FedaPayTransaction) Observation {
	currency := ""
	if trx.Currency != nil {
		currency = strings.ToUpper(trx.Currency.ISO)
	}
	return Observation{
		Status:        trx.Status,
		Outcome:       ClassifyFedaPayStatus(trx.Status),
		Amount:        trx.Amount,
		Currency:      currency,
		GatewayID:     trx.ID.String(),
		TransactionID: trx.Reference,
		OrderID:       trx.CustomMetadata["order_id"],
	}
}

func (c *FedaPayClient) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fedapay: failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("fedapay: failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, ProviderFedaPay, op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFedaPayResponseBytes))
	if err != nil {
		return transportError(ctx, ProviderFedaPay, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &Error{
			Provider:   ProviderFedaPay,
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     string(raw),
		}
		var errBody fedaPayErrorBody
		if jsonErr := json.Unmarshal(raw, &errBody); jsonErr == nil {
			gwErr.Message = errBody.Message
		}
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Provider: ProviderFedaPay, Op: op, StatusCode: resp.StatusCode, Detail: string(raw), Message: "unreadable response", Err: err}
	}
	return nil
}

func sessionMetadata(req SessionRequest) map[string]string {
	metadata := map[string]string{
		"order_id": req.OrderID,
	}
	if req.OrderNumber != "" {
		metadata["order_number"] = req.OrderNumber
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ParseFedaPayID normalises the numeric transaction id carried in webhooks.
func ParseFedaPayID(raw json.Number) (string, error) {
	if raw == "" {
		return "", errors.New("fedapay: missing transaction id")
	}
	if _, err := strconv.ParseInt(raw.String(), 10, 64); err != nil {
		return "", fmt.Errorf("fedapay: invalid transaction id %q", raw)
	}
	return raw.String(), nil
}
