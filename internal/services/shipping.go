package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/logging"
	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/shipping"
)

// Reasons reported when a quote finds nothing.
const (
	ShippingReasonNoZone = "no_zone"
	ShippingReasonNoRate = "no_rate"
)

// ShippingSnapshotSource returns the zone and rate tables a quote is computed against.
type ShippingSnapshotSource interface {
	Snapshot(ctx context.Context) (shipping.Snapshot, error)
}

type shippingTables interface {
	ActiveZones(ctx context.Context) ([]db.ShippingZone, error)
	ActiveRates(ctx context.Context) ([]db.ShippingRate, error)
}

// DBShippingSource reads the shipping tables on every quote.
type DBShippingSource struct {
	tables shippingTables
}

func NewDBShippingSource(tables shippingTables) *DBShippingSource {
	return &DBShippingSource{tables: tables}
}

func (s *DBShippingSource) Snapshot(ctx context.Context) (shipping.Snapshot, error) {
	zones, err := s.tables.ActiveZones(ctx)
	if err != nil {
		return shipping.Snapshot{}, err
	}
	rates, err := s.tables.ActiveRates(ctx)
	if err != nil {
		return shipping.Snapshot{}, err
	}
	return shipping.Snapshot{Zones: zones, Rates: rates}, nil
}

// CatalogShippingSource serves a catalog loaded once at startup.
type CatalogShippingSource struct {
	snapshot shipping.Snapshot
}

func NewCatalogShippingSource(catalog *shipping.Catalog) *CatalogShippingSource {
	return &CatalogShippingSource{snapshot: catalog.Snapshot()}
}

func (s *CatalogShippingSource) Snapshot(context.Context) (shipping.Snapshot, error) {
	return s.snapshot, nil
}

type ShippingQuoteInput struct {
	City             string `json:"city" validate:"required"`
	Country          string `json:"country"`
	CartTotal        int64  `json:"cartTotal" validate:"gte=0"`
	ShippingMethodID string `json:"shippingMethodId"`
}

type ShippingQuoteResult struct {
	Found            bool   `json:"found"`
	ShippingCost     int64  `json:"shippingCost"`
	FreeShipping     bool   `json:"freeShipping"`
	DeliveryTime     string `json:"deliveryTime"`
	ShippingMethodID string `json:"shippingMethodId,omitempty"`
	RateName         string `json:"rateName,omitempty"`
	ZoneName         string `json:"zoneName,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type ShippingQuoteService struct {
	source   ShippingSnapshotSource
	validate *validator.Validate
	logger   *slog.Logger
}

func NewShippingQuoteService(source ShippingSnapshotSource, logger *slog.Logger) *ShippingQuoteService {
	return &ShippingQuoteService{
		source:   source,
		validate: newInputValidator(),
		logger:   logger,
	}
}

// Quote resolves the shipping cost for an address. An address no zone or rate covers
// is a successful result with Found=false.
func (s *ShippingQuoteService) Quote(ctx context.Context, input ShippingQuoteInput) (*ShippingQuoteResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.shipping.quote",
		sentry.WithOpName("service.shipping"),
		sentry.WithDescription("Quote"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if err := s.validate.Struct(input); err != nil {
		return nil, validationErrorFrom(err)
	}

	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		logging.FromContext(ctx, s.logger).Error("failed to load shipping tables", "error", err)
		return nil, &PersistenceError{Op: "load shipping tables", Err: err}
	}

	quote, err := shipping.Resolve(snapshot, shipping.QuoteRequest{
		City:     input.City,
		Country:  input.Country,
		Subtotal: input.CartTotal,
		RateID:   input.ShippingMethodID,
	})
	meter := observability.MeterFromContext(ctx)
	if err != nil {
		if !shipping.IsNotFound(err) {
			return nil, fmt.Errorf("failed to resolve shipping rate: %w", err)
		}
		reason := ShippingReasonNoRate
		if errors.Is(err, shipping.ErrNoZone) {
			reason = ShippingReasonNoZone
		}
		observability.CountReason(meter, "shipping.quote.not_found", reason)
		return &ShippingQuoteResult{Found: false, Reason: reason}, nil
	}

	meter.Count("shipping.quote.resolved", 1)
	return &ShippingQuoteResult{
		Found:            true,
		ShippingCost:     quote.Cost,
		FreeShipping:     quote.FreeShipping,
		DeliveryTime:     quote.DeliveryTime,
		ShippingMethodID: quote.RateID,
		RateName:         quote.RateName,
		ZoneName:         quote.ZoneName,
	}, nil
}
