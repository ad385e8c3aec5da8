package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/paydesk/reconciler/internal/cache"
	"github.com/paydesk/reconciler/internal/config"
	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/email"
	"github.com/paydesk/reconciler/internal/gateway"
	"github.com/paydesk/reconciler/internal/handlers"
	"github.com/paydesk/reconciler/internal/logging"
	"github.com/paydesk/reconciler/internal/observability"
	"github.com/paydesk/reconciler/internal/services"
	"github.com/paydesk/reconciler/internal/shipping"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := initSentry(cfg); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(startupCtx, database); err != nil {
			database.Close()
			return nil, err
		}
		logger.Info("database schema ensured")
	}

	cacheProvider, err := cache.NewProvider(startupCtx, cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	paymentGateway, err := newGateway(cfg)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if emailProvider == nil {
		logger.Warn("no email provider configured, payment confirmations will not be sent")
	}

	shippingSource, err := newShippingSource(cfg, database)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize shipping source: %w", err)
	}

	paymentService, err := services.NewPaymentService(
		db.NewOrderStore(database),
		paymentGateway,
		services.NewProviderPaymentEmailSender(emailProvider),
		services.PaymentServiceConfig{
			DefaultCurrency:  cfg.DefaultCurrency,
			DefaultReturnURL: cfg.DefaultReturnURL,
			WebhookURL:       cfg.WebhookURL(),
		},
		logger.With("component", "payment_service"),
	)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize payment service: %w", err)
	}
	shippingService := services.NewShippingQuoteService(shippingSource, logger.With("component", "shipping_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:          cfg,
		DB:              database,
		PaymentService:  paymentService,
		ShippingService: shippingService,
		CacheProvider:   cacheProvider,
		Logger:          logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info("application initialized",
		"gateway", paymentGateway.Provider(),
		"shipping_source", cfg.ShippingSource,
		"cache_provider", cfg.CacheProvider)

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newGateway(cfg *config.Config) (gateway.Client, error) {
	switch cfg.GatewayProvider {
	case gateway.ProviderStripe:
		return gateway.NewStripeClient(gateway.StripeConfig{
			SecretKey: cfg.StripeSecretKey,
			AccountID: cfg.StripeAccountID,
			CancelURL: cfg.DefaultReturnURL,
			Timeout:   cfg.GatewayTimeout,
		})
	case gateway.ProviderFedaPay:
		return gateway.NewFedaPayClient(gateway.FedaPayConfig{
			SecretKey:    cfg.FedaPaySecretKey,
			BaseURL:      cfg.FedaPayBaseURL,
			PhoneCountry: cfg.FedaPayPhoneCountry,
			Timeout:      cfg.GatewayTimeout,
			HTTPClient:   observability.NewHTTPClient(cfg.GatewayTimeout, cfg.FedaPayBaseURL),
		})
	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", cfg.GatewayProvider)
	}
}

func newShippingSource(cfg *config.Config, database *pgxpool.Pool) (services.ShippingSnapshotSource, error) {
	if cfg.ShippingSource == "file" {
		catalog, err := shipping.LoadCatalogFile(cfg.ShippingCatalogPath)
		if err != nil {
			return nil, err
		}
		return services.NewCatalogShippingSource(catalog), nil
	}
	return services.NewDBShippingSource(db.NewShippingStore(database)), nil
}

func initSentry(cfg *config.Config) error {
	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		EnableTracing:    true,
		TracesSampleRate: cfg.SentrySampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return slog.New(console)
	}
	return slog.New(logging.MultiHandler(console, logging.NewSentryHandler(slog.LevelInfo)))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
