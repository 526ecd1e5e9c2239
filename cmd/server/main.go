package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/erp/ledger/internal/application/event"
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/buildinfo"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//	@title			Ledger API
//	@version		1.0
//	@description	Double-entry journal posting engine: chart of accounts, journal entries, posting and balance propagation.

//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", buildinfo.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers are no-ops when disabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    buildinfo.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    buildinfo.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "meter provider", meterProvider.Shutdown)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    buildinfo.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "logger provider", loggerProvider.Shutdown)
	log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)

	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbMetrics, err := telemetry.InstrumentDB(db.DB, meterProvider, telemetry.DBConfig{
		TracingEnabled:     cfg.Telemetry.DBTraceEnabled,
		MetricsEnabled:     cfg.Telemetry.MetricsEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL && !cfg.IsProduction(),
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	// Event serializer with every ledger event registered
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Aggregates and their events commit in the same transaction
	outboxPublisher := event.NewOutboxPublisher(eventSerializer).WithMaxRetries(cfg.Event.MaxRetries)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	accountRepo := persistence.NewGormAccountRepository(db.DB)
	accountRepo.SetOutboxEventSaver(outboxPublisher)
	accountRepo.SetMaxHierarchyDepth(cfg.Ledger.HierarchyMaxDepth)

	entryRepo := persistence.NewGormJournalEntryRepository(db.DB, eventSerializer)
	entryRepo.SetOutboxEventSaver(outboxPublisher)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:         meterProvider.Meter("ledger"),
		Logger:        log,
		StatsProvider: telemetry.NewGormLedgerStatsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		ledgerMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}
	defer ledgerMetrics.Stop()

	// Application services
	accountService := ledgerapp.NewAccountService(accountRepo, log)
	accountService.SetMaxHierarchyDepth(cfg.Ledger.HierarchyMaxDepth)

	entryService := ledgerapp.NewJournalEntryService(entryRepo, accountRepo, log)
	entryService.SetLedgerMetrics(ledgerMetrics)

	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Idempotency store guards handlers against redelivered outbox entries
	idempotencyStore, redisClient, err := cache.OpenIdempotencyStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	idempotencyConfig := shared.IdempotencyConfig{TTL: cfg.Ledger.IdempotencyTTL, Enabled: true}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	postedHandler := ledgerapp.NewJournalEntryPostedHandler(entryRepo, accountRepo, log)
	postedHandler.SetRetryConfig(ledgerapp.RetryConfig{
		InitialInterval: cfg.Ledger.BalanceRetryInitialInterval,
		MaxElapsedTime:  cfg.Ledger.BalanceRetryMaxElapsed,
	})
	postedHandler.SetLedgerMetrics(ledgerMetrics)
	postedHandler.SetEventPublisher(eventBus)
	eventBus.Subscribe(event.NewIdempotentHandler(postedHandler, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyConfig),
		event.WithIdempotencyKeyPrefix("balance:"),
		event.WithOutcomeRecorder(ledgerMetrics),
	))

	auditHandler := ledgerapp.NewAuditLogHandler(log)
	eventBus.Subscribe(event.NewIdempotentHandler(auditHandler, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyConfig),
		event.WithIdempotencyKeyPrefix("audit:"),
		event.WithOutcomeRecorder(ledgerMetrics),
	))

	log.Info("Event handlers registered",
		zap.Strings("balance_events", postedHandler.EventTypes()),
		zap.Strings("audit_events", auditHandler.EventTypes()),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// The outbox processor delivers committed entries to the event bus
	if cfg.Event.ProcessorEnabled {
		processorConfig := event.DefaultOutboxProcessorConfig()
		processorConfig.BatchSize = cfg.Event.BatchSize
		processorConfig.PollInterval = cfg.Event.PollInterval
		processorConfig.ProcessingTimeout = cfg.Event.ProcessingTimeout
		processorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		processorConfig.CleanupRetention = cfg.Event.CleanupRetention

		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, processorConfig, log)
		outboxProcessor.SetDeliveryRecorder(ledgerMetrics)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
		)
	} else {
		log.Warn("Outbox processor disabled; posted entries will not reach account balances")
	}

	engine, err := newEngine(cfg, log, meterProvider, redisClient)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, buildinfo.Version, sqlDB)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.NewLedgerRoutes(
		handler.NewAccountHandler(accountService),
		handler.NewJournalEntryHandler(entryService),
	)).Register(router.NewSystemRoutes(
		systemHandler,
		handler.NewOutboxHandler(outboxService),
	))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the middleware chain applied in order
func newEngine(cfg *config.Config, log *zap.Logger, meterProvider *telemetry.MeterProvider, redisClient *redis.Client) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{"/health"},
		}),
		logger.GinMiddleware(log),
		middleware.SpanAnnotator(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.MetricsEnabled,
			Logger:        log,
		}),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	if cfg.HTTP.RateLimit != "" {
		l, err := middleware.NewRateLimiter(cfg.HTTP.RateLimit, redisClient)
		if err != nil {
			return nil, err
		}
		engine.Use(middleware.RateLimit(l, log))
		log.Info("Rate limiting enabled",
			zap.String("rate", cfg.HTTP.RateLimit),
			zap.Bool("shared", redisClient != nil),
		)
	}

	return engine, nil
}

func shutdownWithTimeout(log *zap.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
