package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	integrationapp "github.com/sellerbridge/backend/internal/application/integration"
	syncapp "github.com/sellerbridge/backend/internal/application/sync"
	tokenapp "github.com/sellerbridge/backend/internal/application/token"
	webhookapp "github.com/sellerbridge/backend/internal/application/webhook"
	"github.com/sellerbridge/backend/internal/infrastructure/cache"
	"github.com/sellerbridge/backend/internal/infrastructure/config"
	"github.com/sellerbridge/backend/internal/infrastructure/crypto"
	"github.com/sellerbridge/backend/internal/infrastructure/logger"
	"github.com/sellerbridge/backend/internal/infrastructure/marketplaceapi"
	"github.com/sellerbridge/backend/internal/infrastructure/persistence"
	"github.com/sellerbridge/backend/internal/infrastructure/telemetry"
	"github.com/sellerbridge/backend/internal/interfaces/http/handler"
	"github.com/sellerbridge/backend/internal/interfaces/http/middleware"
	"github.com/sellerbridge/backend/internal/interfaces/http/router"
)

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

	log.Info("Starting SellerBridge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry tracing and metrics
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     1.0,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled {
		if err := db.EnableTracing(cfg.Database.DBName); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis backs both the cache layer and the webhook fast-path dedup.
	// When it is unreachable we degrade to in-process implementations so a
	// cache outage never takes the service down.
	var (
		redisClient *redis.Client
		appCache    cache.Cache
		idempotency cache.IdempotencyStore
	)
	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, degrading to in-process cache", zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
		appCache = cache.NewMemoryCache()
		idempotency = cache.NewMemoryIdempotencyStore()
	} else {
		appCache = cache.NewRedisCacheWithClient(redisClient, "cache:", log)
		idempotency = cache.NewRedisIdempotencyStore(redisClient, "webhook:idempotency:")
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
	}
	cancelPing()

	// Platform client
	apiClient, err := marketplaceapi.NewClient(&marketplaceapi.Config{
		APIBaseURL:     cfg.Marketplace.APIBaseURL,
		TokenURL:       cfg.Marketplace.TokenURL,
		ClientID:       cfg.Marketplace.ClientID,
		ClientSecret:   cfg.Marketplace.ClientSecret,
		TimeoutSeconds: cfg.Marketplace.TimeoutSeconds,
	}, marketplaceapi.DefaultRetryPolicy(log), log)
	if err != nil {
		log.Fatal("Failed to create marketplace client", zap.Error(err))
	}

	// Token cipher for credentials at rest
	tokenCipher, err := crypto.NewTokenCipher(cfg.Token.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to create token cipher", zap.Error(err))
	}

	// Initialize repositories
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	catalogItemRepo := persistence.NewGormCatalogItemRepository(db.DB)
	webhookLogRepo := persistence.NewGormWebhookLogRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)

	// Domain metrics
	marketplaceMetrics, err := telemetry.NewMarketplaceMetrics(telemetry.MarketplaceMetricsConfig{
		Meter:           meterProvider.Meter("sellerbridge.marketplace"),
		Logger:          log,
		CatalogProvider: catalogItemRepo,
	})
	if err != nil {
		log.Fatal("Failed to create marketplace metrics", zap.Error(err))
	}
	marketplaceMetrics.StartPeriodicCollection(ctx, 0)
	defer marketplaceMetrics.Stop()

	// Initialize application services
	tokenService := tokenapp.NewService(tokenapp.ServiceConfig{
		Integrations: integrationRepo,
		Exchanger:    apiClient,
		Cipher:       tokenCipher,
		SyncLogs:     syncLogRepo,
		SafetyWindow: cfg.Token.SafetyWindow,
		Logger:       log,
	})

	syncService := syncapp.NewService(syncapp.ServiceConfig{
		Tokens:       tokenService,
		API:          apiClient,
		Integrations: integrationRepo,
		Items:        catalogItemRepo,
		SyncLogs:     syncLogRepo,
		Cache:        appCache,
		Recorder:     marketplaceMetrics,
		Config: syncapp.Config{
			PageSize:  cfg.Sync.PageSize,
			BatchSize: cfg.Sync.BatchSize,
			MaxItems:  cfg.Sync.MaxItems,
			Workers:   cfg.Sync.Workers,
		},
		Logger: log,
	})

	webhookService := webhookapp.NewService(webhookapp.ServiceConfig{
		Notifications: webhookLogRepo,
		Integrations:  integrationRepo,
		Syncer:        syncService,
		SyncLogs:      syncLogRepo,
		Idempotency:   idempotency,
		Recorder:      marketplaceMetrics,
		DedupTTL:      cfg.Webhook.DedupTTL,
		Logger:        log,
	})

	integrationService := integrationapp.NewService(integrationapp.ServiceConfig{
		Integrations: integrationRepo,
		Items:        catalogItemRepo,
		SyncLogs:     syncLogRepo,
		Exchanger:    apiClient,
		Cipher:       tokenCipher,
		Cache:        appCache,
		Logger:       log,
	})

	// Initialize HTTP handlers
	integrationHandler := handler.NewIntegrationHandler(integrationService)
	syncHandler := handler.NewSyncHandler(integrationRepo, syncService)
	webhookHandler := handler.NewWebhookHandler(webhookService, cfg.Webhook.VerifyToken)
	systemHandler := handler.NewSystemHandler(db, redisClient)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first: request id, panic recovery, request
	// logging, tracing, metrics, security headers, CORS, body limit, tenant
	// resolution.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/system", "/webhooks"},
		Required:  true,
		Logger:    log,
	}))

	// Health endpoints (outside API versioning)
	engine.GET("/health", systemHandler.Healthz)
	engine.GET("/healthz", systemHandler.Healthz)

	// Webhook endpoints. The platform calls these directly: no tenant header,
	// no auth, but rate limited so a misbehaving sender cannot flood us.
	webhookLimiter := middleware.NewRateLimiter(300, time.Minute)
	webhooks := engine.Group("/webhooks")
	webhooks.Use(middleware.RateLimit(webhookLimiter))
	webhooks.POST("/notifications", webhookHandler.Receive)
	webhooks.GET("/notifications", webhookHandler.Verify)

	// Versioned API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	integrationRoutes := router.NewDomainGroup("integrations", "/integrations")
	integrationRoutes.POST("/connect", integrationHandler.Connect)
	integrationRoutes.GET("/current", integrationHandler.GetCurrent)
	integrationRoutes.DELETE("/current", integrationHandler.Disconnect)
	integrationRoutes.GET("/current/items", integrationHandler.ListItems)
	integrationRoutes.GET("/current/sync-history", integrationHandler.SyncHistory)

	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/run", syncHandler.Run)
	syncRoutes.POST("/items/:external_item_id", syncHandler.SyncItem)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(integrationRoutes).
		Register(syncRoutes).
		Register(systemRoutes)

	r.Setup()

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
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := idempotency.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
