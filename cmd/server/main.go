package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/rentalops/backend/internal/application/billing"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/infrastructure/cache"
	"github.com/rentalops/backend/internal/infrastructure/config"
	"github.com/rentalops/backend/internal/infrastructure/event"
	"github.com/rentalops/backend/internal/infrastructure/logger"
	"github.com/rentalops/backend/internal/infrastructure/migration"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/rentalops/backend/internal/infrastructure/storage"
	"github.com/rentalops/backend/internal/infrastructure/telemetry"
	"github.com/rentalops/backend/internal/interfaces/http/handler"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
	"github.com/rentalops/backend/internal/interfaces/http/router"
	"github.com/rentalops/backend/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.Telemetry.ServiceName,
	}
	core, err := logger.NewCore(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	bootLog := logger.Build(core, logCfg)

	ctx := context.Background()

	// OTLP log export is teed into the zap core, so it must exist before the real logger
	exportLevel, err := logger.ParseLevel(cfg.Telemetry.LogsLevel)
	if err != nil {
		bootLog.Fatal("Invalid telemetry log level", zap.Error(err))
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             exportLevel,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log := logger.Build(logProvider.Bridge(core), logCfg)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting rental billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
		BasicAuthUser:   cfg.Telemetry.ProfilingUser,
		BasicAuthPass:   cfg.Telemetry.ProfilingPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down log provider", zap.Error(err))
		}
	}()

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:           cfg.Database.DBName,
		IncludeVariables: cfg.Telemetry.DBLogFullSQL,
	}, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access connection pool", zap.Error(err))
	}
	warnOnPendingMigrations(db.DB, log)

	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStores()
	if err != nil {
		log.Fatal("Failed to create cache stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache stores", zap.Error(err))
		}
	}()

	objects, err := newObjectStore(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize slip storage", zap.Error(err))
	}
	evidence := storage.NewEvidenceStore(
		objects,
		storage.NewSlipNormalizer(cfg.Billing.SlipMaxDimension, cfg.Billing.WebPQuality),
		cfg.Storage.KeyPrefix,
		cfg.Storage.PresignTTL,
	)

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter("rentalops/billing"))
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	eventBus := event.NewInMemoryEventBus(log)
	invalidation := reportapp.NewSummaryInvalidationHandler(stores.Summary, log)
	eventBus.Subscribe(invalidation)
	log.Info("Event handlers registered",
		zap.Strings("summary_invalidation_events", invalidation.EventTypes()),
	)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	prefix := cfg.Billing.InvoiceNumberPrefix
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB, prefix)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	reconciler := paymentapp.NewReconciliationService(paymentapp.ReconciliationServiceConfig{
		TxScope:        persistence.NewGormTransactionScope(db.DB, prefix),
		EventPublisher: eventBus,
		Metrics:        billingMetrics,
		Logger:         log,
	})
	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceConfig{
		InvoiceRepo:    invoiceRepo,
		Terms:          persistence.NewGormContractTermsReader(db.DB),
		Meters:         persistence.NewGormMeterReadingReader(db.DB),
		Reconciler:     reconciler,
		EventPublisher: eventBus,
		Metrics:        billingMetrics,
		Logger:         log,
	})
	paymentService := paymentapp.NewPaymentService(paymentapp.PaymentServiceConfig{
		Reconciler:     reconciler,
		PaymentRepo:    paymentRepo,
		InvoiceRepo:    invoiceRepo,
		Evidence:       evidence,
		Idempotency:    stores.Idempotency,
		IdempotencyTTL: cfg.Billing.IdempotencyTTL,
		MaxSlipBytes:   int(cfg.Billing.MaxSlipBytes),
		EventPublisher: eventBus,
		Metrics:        billingMetrics,
		Logger:         log,
	})
	summaryService := reportapp.NewSummaryService(reportapp.SummaryServiceConfig{
		Source:   persistence.NewGormSnapshotSource(db.DB),
		Cache:    stores.Summary,
		CacheTTL: cfg.Billing.SummaryCacheTTL,
		Logger:   log,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Profiling: middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: []string{"/health"},
		},
		Meter:       meterProvider.Meter("rentalops/http"),
		RateLimiter: limiter,
	}, router.Handlers{
		Invoice: handler.NewInvoiceHandler(invoiceService, reconciler),
		Payment: handler.NewPaymentHandler(paymentService),
		Summary: handler.NewSummaryHandler(summaryService),
		System:  handler.NewSystemHandler(sqlDB, cfg.App.Name, Version),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
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
		return
	}

	log.Info("Server exited gracefully")
}

// newObjectStore returns S3 storage when a bucket is configured and process memory otherwise
func newObjectStore(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (storage.ObjectStore, error) {
	if cfg.Bucket == "" {
		log.Warn("Storage bucket not configured, slips are kept in memory and lost on restart")
		return storage.NewMemoryObjectStorage(), nil
	}
	s3, err := storage.NewS3ObjectStorage(ctx, cfg, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("Slip storage ready", zap.String("bucket", s3.GetBucket()))
	return s3, nil
}

// warnOnPendingMigrations logs when the schema is behind the embedded migrations. The server never migrates;
// cmd/migrate owns schema changes.
func warnOnPendingMigrations(db *gorm.DB, log *zap.Logger) {
	latest, err := migration.LatestVersion(migrations.FS)
	if err != nil {
		log.Warn("Could not read embedded migrations", zap.Error(err))
		return
	}
	var applied struct {
		Version uint
		Dirty   bool
	}
	if err := db.Raw("SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&applied).Error; err != nil {
		log.Warn("Could not read schema version", zap.Error(err))
		return
	}
	switch {
	case applied.Dirty:
		log.Warn("Schema is dirty, run the migrate tool", zap.Uint("version", applied.Version))
	case applied.Version < latest:
		log.Warn("Schema has pending migrations",
			zap.Uint("version", applied.Version),
			zap.Uint("latest", latest),
		)
	}
}
