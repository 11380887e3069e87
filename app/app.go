package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/authz"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/cache"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/catalog"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/config"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/crypto"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/email"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/handlers"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/observability"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	Events         realtime.Broker
	AuthService    *services.AuthService
	OrderService   *services.OrderService
	MessageService *services.MessageService
	Handlers       *handlers.Handlers

	logFile io.Closer
	tracing bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, logFile: logFile}

	tracing, err := observability.Init(observability.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		TracesSampleRate: cfg.SentryTracesSampleRate,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracing = tracing
	if tracing {
		logger.Info("sentry tracing enabled", "environment", cfg.SentryEnvironment)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := a.init(startupCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	a.DB = database

	if err := db.Migrate(ctx, database, logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	orderStore := db.NewOrderStore(database, location)
	productStore := db.NewProductStore(database)
	accountStore := db.NewAccountStore(database)
	messageStore := db.NewMessageStore(database)

	if seedFile := strings.TrimSpace(cfg.CatalogSeedFile); seedFile != "" {
		result, err := catalog.NewSeeder(productStore, logger).SeedFile(ctx, seedFile)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		logger.Info("catalog seeded", "file", seedFile, "created", result.Created, "updated", result.Updated)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider

	events, err := realtime.NewBroker(realtime.Config{
		Provider:              cfg.RealtimeProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize realtime broker: %w", err)
	}
	a.Events = events

	emailSender, err := newOrderEmailSender(cfg, location)
	if err != nil {
		return err
	}

	hasher, err := crypto.NewHasher(0)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return fmt.Errorf("failed to initialize authorization: %w", err)
	}

	authService, err := services.NewAuthService(accountStore, hasher, tokens, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}
	a.AuthService = authService

	a.OrderService = services.NewOrderService(orderStore, productStore, accountStore, services.OrderServiceOptions{
		Events:            events,
		Idempotency:       cacheProvider,
		EmailSender:       emailSender,
		EstimatedDelivery: cfg.EstimatedDelivery,
	}, logger)
	a.MessageService = services.NewMessageService(messageStore, orderStore, accountStore, events, logger)

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		Tokens:         tokens,
		Authorizer:     enforcer,
		AuthService:    authService,
		OrderService:   a.OrderService,
		MessageService: a.MessageService,
		ProductService: services.NewProductService(productStore, logger),
		UserService:    services.NewUserService(accountStore, logger),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h

	return nil
}

func newOrderEmailSender(cfg *config.Config, location *time.Location) (services.OrderEmailSender, error) {
	provider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.ResendAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	sender, err := services.NewProviderOrderEmailSender(provider, cfg.FrontendURL, location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize order emails: %w", err)
	}
	return sender, nil
}

// Close waits for in-flight notifications and emails, then releases
// connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.OrderService != nil {
		a.OrderService.Wait()
	}
	if a.MessageService != nil {
		a.MessageService.Wait()
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn("failed to close realtime broker", "error", err)
		}
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.tracing {
		observability.Flush(2 * time.Second)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// NewLogger builds the process logger: tint or JSON on stdout, plus a JSON
// copy in LOG_FILE when set. The returned closer may be nil.
func NewLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return newLogger(cfg)
}

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel, TimeFormat: time.Kitchen})
	}

	path := strings.TrimSpace(cfg.LogFile)
	if path == "" {
		return slog.New(console), nil, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open LOG_FILE: %w", err)
	}
	return slog.New(logging.MultiHandler(console, slog.NewJSONHandler(file, opts))), file, nil
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
