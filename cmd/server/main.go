package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/billing"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/export"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/notification"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/printing"
	"github.com/erp/ledger/internal/infrastructure/receipt"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/storage"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/erp/ledger/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Invoice Payment Ledger API
//	@version		1.0
//	@description	Payment recording, reconciliation and settlement for customer invoices

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry comes first so the final logger can tee into the OTLP log bridge
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, version, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log, err := logger.New(logCfg,
		logger.WithCore(loggerProvider.Core(logger.ParseLevel(cfg.Log.Level))),
		logger.WithFields(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env)),
	)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting invoice ledger",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithRetryableErrors(persistence.IsRetryableTxError))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		applyMigrations(db, log)
	}

	// Redis backs idempotency claims, rate limiting and notifications when enabled
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process stores", zap.Error(err))
		} else {
			redisClient = client
			defer func() {
				_ = client.Close()
			}()
		}
	}
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Repositories and the transactional outbox
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	eventSerializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(eventSerializer)
	ledgerScope := persistence.NewGormLedgerScope(db.DB, event.NewOutboxPublisher(eventSerializer))

	// Application services
	ledgerService := appinvoicing.NewLedgerService(appinvoicing.LedgerServiceConfig{
		Scope:          ledgerScope,
		Invoices:       invoiceRepo,
		Payments:       paymentRepo,
		LateFeePercent: cfg.Ledger.LateFeePercent,
		RetryBudget:    cfg.Ledger.RetryBudget,
		RetryBackoff:   cfg.Ledger.RetryBackoff,
		Logger:         log.Named("ledger"),
	})
	checkoutService := appinvoicing.NewCheckoutService(appinvoicing.CheckoutServiceConfig{
		Invoices:  invoiceRepo,
		Payments:  paymentRepo,
		Processor: newPaymentProcessor(cfg, log),
		Timeout:   cfg.Ledger.ProcessorTimeout,
		Logger:    log.Named("checkout"),
	})
	settlementService := appinvoicing.NewSettlementService(appinvoicing.SettlementServiceConfig{
		Ledger: ledgerService,
		Store:  idempotencyStore,
		TTL:    cfg.Ledger.SettlementTTL,
		Logger: log.Named("settlement"),
	})
	exportService := appinvoicing.NewExportService(invoiceRepo, paymentRepo, export.NewXLSXWriter(cfg.App.Name), log.Named("export"))
	lateFeeSweeper := appinvoicing.NewLateFeeSweeper(appinvoicing.LateFeeSweeperConfig{
		Ledger:    ledgerService,
		Invoices:  invoiceRepo,
		BatchSize: cfg.Scheduler.BatchSize,
		Notify:    true,
		Logger:    log.Named("late_fee"),
	})

	notifier := notification.NewNotifier(cfg.Notification, redisClient, log)
	receiptGenerator, closeRenderer := newReceiptGenerator(ctx, cfg, invoiceRepo, paymentRepo, notifier, log)
	defer closeRenderer()

	// Live feed hub for connected browsers
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	hub := notification.NewHub(cfg.HTTP.CORSAllowOrigins, log)
	go hub.Run(runCtx)

	// Event bus and side-effect handlers
	eventBus := event.NewInMemoryEventBus(log)
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter("ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	sideEffects := []shared.EventHandler{
		appinvoicing.NewNotificationHandler(notifier, log),
		appinvoicing.NewLiveFeedHandler(ledgerService, hub, log),
	}
	if cfg.Printing.Enabled {
		sideEffects = append(sideEffects, appinvoicing.NewReceiptHandler(receiptGenerator, log))
	}
	idempotencyOpts := event.WithIdempotencyConfig(shared.IdempotencyConfig{
		TTL:     cfg.Event.IdempotencyTTL,
		Enabled: true,
	})
	for _, h := range event.WrapHandlersWithIdempotency(sideEffects, idempotencyStore, log, idempotencyOpts) {
		eventBus.Subscribe(h)
	}
	// Metrics count every delivery, retries included
	eventBus.Subscribe(ledgerMetrics)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Event.ProcessorEnabled {
		outboxConfig := event.DefaultOutboxProcessorConfig()
		if cfg.Event.BatchSize > 0 {
			outboxConfig.BatchSize = cfg.Event.BatchSize
		}
		if cfg.Event.PollInterval > 0 {
			outboxConfig.PollInterval = cfg.Event.PollInterval
		}
		outboxConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		if cfg.Event.CleanupRetention > 0 {
			outboxConfig.CleanupRetention = cfg.Event.CleanupRetention
		}
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxConfig, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		triggerConfig := scheduler.LateFeeTriggerConfig{
			Hour:          cfg.Scheduler.LateFeeHour,
			Minute:        cfg.Scheduler.LateFeeMinute,
			CheckInterval: cfg.Scheduler.CheckInterval,
			JobTimeout:    cfg.Scheduler.JobTimeout,
		}
		trigger, err := scheduler.NewLateFeeTrigger(triggerConfig, lateFeeSweeper, log)
		if err != nil {
			log.Fatal("Invalid late fee schedule", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start late fee trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping late fee trigger", zap.Error(err))
			}
		}()
		log.Info("Late fee sweep scheduled",
			zap.Int("hour", cfg.Scheduler.LateFeeHour),
			zap.Int("minute", cfg.Scheduler.LateFeeMinute),
		)
	}

	// HTTP handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService, checkoutService, exportService)
	receiptHandler := handler.NewReceiptHandler(receiptGenerator)
	streamHandler := handler.NewStreamHandler(hub)
	systemHandler := handler.NewSystemHandler(version, map[string]handler.Pinger{"database": db})
	webhookHandler := newWebhookHandler(cfg, settlementService, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID so every later layer can log it
	// 2. Logger and Recovery
	// 3. Tracing and metrics around the whole request
	// 4. CORS, security headers, body limit and timeout
	httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("http"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(httpMetrics)
	engine.Use(middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	engine.Use(middleware.Secure(cfg.App.Env == "production"))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	authMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.PublicRoutes(engine, r.BasePath(), systemHandler, webhookHandler)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, authMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r.Use(authMiddleware, middleware.SpanAttributes())
	if cfg.HTTP.RateLimitEnabled {
		r.Use(middleware.RateLimit(newRateLimiter(cfg.HTTP, redisClient)))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
			zap.Bool("shared", redisClient != nil),
		)
	}
	r.Use(middleware.RequireLedgerAccess())
	r.Register(router.LedgerRoutes(router.LedgerHandlers{
		Ledger:   ledgerHandler,
		Receipts: receiptHandler,
		Stream:   streamHandler,
	}, middleware.RequireAdmin())...)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
		// WriteTimeout is enforced per request by middleware.Timeout so the
		// live feed can stay open.
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopRun()

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("Error shutting down logger provider", zap.Error(err))
	}
}

func applyMigrations(db *persistence.Database, log *zap.Logger) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	// The migrator is not closed: closing it would close the shared pool
	m, err := migration.New(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to initialize migrations", zap.Error(err))
	}
	if err := m.Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}
	v, _, err := m.Version()
	if err == nil {
		log.Info("Database schema is current", zap.Uint("version", v))
	}
}

func newPaymentProcessor(cfg *config.Config, log *zap.Logger) invoicing.PaymentProcessor {
	if !cfg.Stripe.Enabled {
		log.Info("Online payments disabled")
		return billing.DisabledProcessor{}
	}
	adapter, err := billing.NewStripeCheckoutAdapter(stripeConfig(cfg), log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe", zap.Error(err))
	}
	return adapter
}

func newWebhookHandler(cfg *config.Config, settlement *appinvoicing.SettlementService, log *zap.Logger) *handler.StripeWebhookHandler {
	if !cfg.Stripe.Enabled {
		return nil
	}
	parser, err := billing.NewStripeWebhookParser(stripeConfig(cfg), log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe webhook parser", zap.Error(err))
	}
	return handler.NewStripeWebhookHandler(parser, settlement)
}

func stripeConfig(cfg *config.Config) *billing.StripeConfig {
	sc := billing.DefaultStripeConfig()
	sc.SecretKey = cfg.Stripe.SecretKey
	sc.WebhookSecret = cfg.Stripe.WebhookSecret
	sc.IsTestMode = cfg.Stripe.TestMode
	sc.SuccessURL = cfg.Stripe.SuccessURL
	sc.CancelURL = cfg.Stripe.CancelURL
	if cfg.Ledger.Currency != "" {
		sc.Currency = cfg.Ledger.Currency
	}
	return sc
}

func newRateLimiter(cfg config.HTTPConfig, client redis.UniversalClient) middleware.Limiter {
	if client != nil {
		return middleware.NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	return middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

// newReceiptGenerator builds the PDF pipeline. The renderer is always built
// so receipts can be downloaded on demand; printing.enabled only controls
// the automatic receipt on recorded payments.
func newReceiptGenerator(
	ctx context.Context,
	cfg *config.Config,
	invoices invoicing.InvoiceRepository,
	payments invoicing.PaymentRepository,
	notifier invoicing.Notifier,
	log *zap.Logger,
) (*receipt.Generator, func()) {
	tmpl, err := printing.NewReceiptTemplate("", cfg.Printing.Locale, cfg.Ledger.Currency)
	if err != nil {
		log.Fatal("Failed to parse receipt template", zap.Error(err))
	}
	renderer := printing.NewChromedpRenderer(&printing.ChromedpConfig{
		DefaultTimeout: cfg.Printing.RenderTimeout,
		RemoteURL:      cfg.Printing.ChromeURL,
		NoSandbox:      true,
		MaxConcurrency: cfg.Printing.MaxConcurrency,
		Logger:         log.Named("renderer"),
	})

	var store receipt.ObjectStore = storage.NewMemoryArchive()
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3Archive(&cfg.Storage, storage.WithLogger(log.Named("storage")))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Receipt bucket check failed", zap.Error(err))
		}
		store = archive
	}

	generator := receipt.NewGenerator(receipt.Config{
		Invoices:  invoices,
		Payments:  payments,
		Template:  tmpl,
		Renderer:  renderer,
		Store:     store,
		Notifier:  notifier,
		PaperSize: printing.PaperSizeLetter,
		LinkTTL:   cfg.Storage.PresignExpiration,
		Logger:    log.Named("receipt"),
	})
	return generator, func() {
		if err := renderer.Close(); err != nil {
			log.Error("Error closing renderer", zap.Error(err))
		}
	}
}
