package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/storesync/backend/docs"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
	"github.com/storesync/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Store Sync Engine API
//	@version		1.0
//	@description	Multi-tenant store synchronization and reconciliation engine

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// The bootstrap logger only reports telemetry start-up; the OTEL log
	// bridge core is attached to the main logger below.
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(cfg.Telemetry), bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	var extraCores []zapcore.Core
	if loggerProvider.IsEnabled() {
		extraCores = append(extraCores, loggerProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting store sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := profiler.Stop(); err != nil {
			log.Warn("Error stopping profiler", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Error shutting down tracer provider", zap.Error(err))
		}
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Error shutting down log exporter", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel,
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)

	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry, "postgres"), log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	registrationRepo := persistence.NewGormWebhookRegistrationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	var syncMetrics *telemetry.SyncMetrics
	if meterProvider.IsEnabled() {
		meter := meterProvider.Meter("store-sync")

		if sqlDB, err := db.DB.DB(); err == nil {
			dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, log)
			if err != nil {
				log.Warn("Failed to create database metrics", zap.Error(err))
			} else if err := dbMetrics.Register(db.DB); err != nil {
				log.Warn("Failed to register database metrics", zap.Error(err))
			} else {
				defer dbMetrics.Stop()
			}
		}

		syncMetrics, err = telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:         meter,
			Logger:        log,
			CountProvider: telemetry.NewRepositoryStoreCountProvider(customerRepo, productRepo, orderRepo),
		})
		if err != nil {
			log.Warn("Failed to create sync metrics", zap.Error(err))
		} else {
			syncMetrics.StartPeriodicCollection(ctx, telemetry.NewRepositoryTenantProvider(tenantRepo), cfg.Telemetry.MetricsInterval)
			defer syncMetrics.Stop()
		}
	}

	// Locks and delivery de-duplication
	coordination, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize coordination stores", zap.Error(err))
	}
	defer func() {
		if err := coordination.Close(); err != nil {
			log.Warn("Error closing coordination stores", zap.Error(err))
		}
	}()

	// Upstream store client
	shopifyClient, err := ecommerce.NewShopifyClient(
		ecommerce.ShopifyConfigFrom(cfg.Shopify),
		ecommerce.WithLogger(log.Named("shopify")),
	)
	if err != nil {
		log.Fatal("Invalid store client configuration", zap.Error(err))
	}
	codec := ecommerce.NewCodec()
	verifier := ecommerce.NewHMACVerifier(cfg.Webhook.Secret)

	// Initialize application services
	reconciler := appcommerce.NewReconciler(customerRepo, productRepo, txScope, log)

	syncService := appcommerce.NewSyncService(tenantRepo, shopifyClient, codec, reconciler, appcommerce.SyncOptions{
		Workers:       cfg.Sync.Workers,
		TenantTimeout: cfg.Sync.TenantTimeout,
	}, log)
	syncService.SetSyncMetrics(syncMetrics)

	ingestor := appcommerce.NewWebhookIngestor(verifier, tenantRepo, codec, reconciler, log)
	ingestor.SetSyncMetrics(syncMetrics)
	if cfg.Webhook.DedupDeliveries {
		ingestor.EnableDeduplication(coordination.Deliveries, cfg.Webhook.DedupTTL)
		log.Info("Webhook delivery de-duplication enabled",
			zap.Duration("ttl", cfg.Webhook.DedupTTL),
			zap.Bool("distributed", coordination.Distributed()),
		)
	}

	registrar := appcommerce.NewWebhookRegistrar(tenantRepo, shopifyClient, registrationRepo, cfg.Webhook.PublicBaseURL, log)

	// Schedulers
	cronTrigger := scheduler.NewSyncCronTrigger(
		scheduler.SyncCronTriggerConfigFrom(cfg.Scheduler),
		syncService,
		coordination.Locks,
		log.Named("fleet_sync"),
	)
	if cfg.Scheduler.Enabled {
		if err := cronTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start fleet sync trigger", zap.Error(err))
		}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cronTrigger.Stop(stopCtx); err != nil {
			log.Warn("Fleet sync trigger did not stop cleanly", zap.Error(err))
		}
	}()

	jobScheduler, err := scheduler.NewSyncJobScheduler(
		scheduler.SyncJobSchedulerConfigFrom(cfg.Scheduler),
		syncService,
		log.Named("sync_jobs"),
	)
	if err != nil {
		log.Fatal("Invalid sync job scheduler configuration", zap.Error(err))
	}
	if err := jobScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sync job scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := jobScheduler.Stop(stopCtx); err != nil {
			log.Warn("Sync job scheduler did not stop cleanly", zap.Error(err))
		}
	}()

	// Initialize handlers
	webhookHandler := handler.NewWebhookHandler(ingestor, registrar, cfg.Webhook.MaxBodySize)
	syncHandler := handler.NewSyncHandler(syncService, jobScheduler, cronTrigger)
	systemHandler := handler.NewSystemHandler(db, version)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Server span per request, annotated with tenant and topic
	// 5. Metrics - Request counters and latency
	// 6. Profiling - Pyroscope labels per route
	// 7. Security - Add security headers
	// 8. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanAnnotator())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = profiler.IsEnabled()
	engine.Use(middleware.ProfilingWithConfig(profilingConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Store webhook callbacks (authenticated by HMAC, outside API versioning)
	engine.POST("/webhook/:tenantId", middleware.Timeout(cfg.HTTP.WriteTimeout), webhookHandler.Receive)

	tenantRoutes := router.NewRouteGroup("tenants", "/tenants/:tenantId").
		POST("/sync", syncHandler.SyncTenant).
		POST("/webhooks/register", webhookHandler.Register)

	syncRoutes := router.NewRouteGroup("sync", "/sync").
		POST("/fleet", syncHandler.SyncFleet).
		GET("/jobs", syncHandler.ListJobs).
		GET("/jobs/:jobId", syncHandler.GetJob)

	systemRoutes := router.NewRouteGroup("system", "/system").
		GET("/info", systemHandler.GetSystemInfo)

	routes := router.NewRouter(engine, router.WithAPIVersion("v1")).
		Mount(tenantRoutes, syncRoutes, systemRoutes).
		Setup()
	for _, rt := range routes {
		log.Debug("Route registered",
			zap.String("group", rt.Group),
			zap.String("method", rt.Method),
			zap.String("path", rt.Path),
		)
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	log.Info("Server exited gracefully")
}
