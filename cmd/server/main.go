package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	propertyapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/property"
	statementapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/auth"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/cache"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/config"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/extraction"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/logger"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/persistence"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/spreadsheet"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/storage"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/telemetry"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/handler"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/middleware"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/Jc7j/ProperlyOld-sub000/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Properly Statements API
//	@version		1.0
//	@description	Owner statement reconciliation engine for the Properly property-management dashboard
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/Jc7j/ProperlyOld-sub000
//	@contact.email	support@properly.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

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

	log.Info("Starting Properly Statements Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize OpenTelemetry providers. Each constructor returns a no-op
	// provider when its section is disabled, so the wiring below is
	// unconditional.
	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Bridge zap to the collector so logs, traces, and metrics share one
	// pipeline. The stdout core keeps working unchanged.
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          zapcore.InfoLevel,
		})
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
		log.Info("OTLP log export enabled")
	}

	// Continuous profiling via Pyroscope
	appName := cfg.Profiling.ApplicationName
	if appName == "" {
		appName = cfg.Telemetry.ServiceName
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   appName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileCPU:        cfg.Profiling.ProfileCPU,
		ProfileMemory:     cfg.Profiling.ProfileMemory,
		ProfileGoroutines: cfg.Profiling.ProfileGoroutines,
		ProfileMutex:      cfg.Profiling.ProfileMutex,
		ProfileBlock:      cfg.Profiling.ProfileBlock,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Link trace spans to profiles when both backends are up
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Database query tracing
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Database metrics (query duration, connection pool stats)
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	// Initialize repositories
	statementRepo := persistence.NewGormStatementRepository(db.DB)
	propertyRepo := persistence.NewGormPropertyRepository(db.DB)

	// Idempotency store for batch replay protection. Nil disables the check.
	var idempotencyStore shared.IdempotencyStore
	if cfg.Import.IdempotencyEnabled {
		storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		)
		idempotencyStore, err = storeFactory.CreateStore()
		if err != nil {
			log.Fatal("Failed to initialize idempotency store", zap.Error(err))
		}
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	// Workbook reader for vendor expense imports
	excelReader := spreadsheet.NewExcelReader()

	// Invoice extractor. The disabled variant keeps the parse endpoint
	// routable and answers with a clear error.
	var invoiceExtractor statementapp.InvoiceExtractor
	if cfg.Extraction.Enabled {
		gemini, err := extraction.NewGeminiExtractor(cfg.Extraction, extraction.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize invoice extractor", zap.Error(err))
		}
		invoiceExtractor = gemini
		log.Info("Invoice extraction enabled", zap.String("model", cfg.Extraction.Model))
	} else {
		invoiceExtractor = extraction.NewDisabledExtractor()
	}

	// Invoice archive. Nil disables archiving; parsed invoices are then
	// returned to the caller without an audit copy.
	var invoiceArchive statementapp.InvoiceArchive
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3InvoiceArchive(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to initialize invoice archive", zap.Error(err))
		}
		invoiceArchive = s3Archive
		log.Info("Invoice archival enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	// Initialize application services
	statementService := statementapp.NewService(statementRepo, propertyRepo)
	batchService := statementapp.NewBatchService(statementRepo, propertyRepo, idempotencyStore, log)
	batchService.SetConfig(statementapp.BatchConfig{
		MaxStatements:   cfg.Import.MaxBatchStatements,
		ChunkSize:       cfg.Import.StatementChunkSize,
		RetentionMonths: cfg.Import.RetentionMonths,
		IdempotencyTTL:  cfg.Import.IdempotencyTTL,
	})
	vendorExpenseService := statementapp.NewVendorExpenseService(
		statementRepo, propertyRepo, excelReader, invoiceExtractor, invoiceArchive, log,
	)
	vendorExpenseService.SetConfig(statementapp.VendorExpenseConfig{
		MaxRows:       cfg.Import.MaxWorkbookRows,
		RowChunkSize:  cfg.Import.ExpenseRowChunkSize,
		ArchivePrefix: cfg.Storage.ArchivePrefix,
	})
	propertyService := propertyapp.NewService(propertyRepo)

	// Business metrics for statement operations
	if meterProvider.IsEnabled() {
		statementMetrics, err := telemetry.NewStatementMetrics(telemetry.StatementMetricsConfig{
			Meter:           meterProvider.Meter("properly.statements"),
			Logger:          log,
			CollectInterval: cfg.Telemetry.MetricsInterval,
			VolumeProvider:  telemetry.NewGormStatementVolumeProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize statement metrics", zap.Error(err))
		}
		statementService.SetStatementMetrics(statementMetrics)
		batchService.SetStatementMetrics(statementMetrics)
		vendorExpenseService.SetStatementMetrics(statementMetrics)

		statementMetrics.StartPeriodicCollection(ctx, telemetry.NewGormOrgProvider(db.DB), cfg.Telemetry.MetricsInterval)
		defer statementMetrics.Stop()
		log.Info("Statement metrics collection started",
			zap.Duration("interval", cfg.Telemetry.MetricsInterval),
		)
	}

	// JWT validation for dashboard-issued tokens
	jwtService := auth.NewJWTService(cfg.JWT)

	// Token revocations are written by the upstream auth service; checking
	// them needs Redis. Without it the API still runs, trusting token
	// expiry alone.
	var tokenBlacklist auth.TokenBlacklist
	if blacklist, err := auth.NewRedisTokenBlacklist(cfg.Redis); err != nil {
		log.Warn("Token revocation checks disabled, Redis unavailable", zap.Error(err))
	} else {
		tokenBlacklist = blacklist
		defer func() {
			_ = blacklist.Close()
		}()
	}

	// Initialize HTTP handlers
	ownerStatementHandler := handler.NewOwnerStatementHandler(statementService, batchService)
	vendorExpenseHandler := handler.NewVendorExpenseHandler(vendorExpenseService)
	propertyHandler := handler.NewPropertyHandler(propertyService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
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
	// 4. Security - Add security headers
	// 5. Tracing - OTEL server spans
	// 6. Metrics - HTTP RED metrics
	// 7. Profiling - Pyroscope request labels
	// 8. CORS - Handle cross-origin requests
	// 9. BodyLimit - Limit request body size
	// 10. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = profiler.IsEnabled()
	engine.Use(middleware.ProfilingWithConfig(profilingConfig))

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Tighter per-org bucket for the import and parse endpoints. The
	// pass-through default keeps route registration uniform when disabled.
	importGuard := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	if cfg.HTTP.ImportRateLimitEnabled {
		importLimiter := middleware.NewRateLimiter(cfg.HTTP.ImportRateLimitRequests, cfg.HTTP.ImportRateLimitWindow)
		importGuard = middleware.ImportRateLimit(importLimiter)
		log.Info("Import rate limiting enabled",
			zap.Int("requests", cfg.HTTP.ImportRateLimitRequests),
			zap.Duration("window", cfg.HTTP.ImportRateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// JWT middleware configuration shared by the API group and the Swagger
	// endpoint's RequireAuth mode
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}

	// Swagger documentation endpoint, gated per config
	swaggerConfig := middleware.SwaggerConfig{
		Enabled:     cfg.Swagger.Enabled,
		RequireAuth: cfg.Swagger.RequireAuth,
		AllowedIPs:  cfg.Swagger.AllowedIPs,
	}
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(swaggerConfig, middleware.JWTAuthMiddlewareWithConfig(jwtConfig)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Statement domain (owner statements, batch creation, vendor expenses)
	statementRoutes := router.NewDomainGroup("statements", "/owner-statements")
	statementRoutes.GET("", ownerStatementHandler.List)
	statementRoutes.POST("", ownerStatementHandler.Create)
	statementRoutes.POST("/batch", ownerStatementHandler.CreateMonthlyBatch)
	statementRoutes.POST("/invoice/parse", importGuard, vendorExpenseHandler.ParseInvoice)
	statementRoutes.POST("/vendor-expenses/apply", vendorExpenseHandler.ApplyVendorExpenses)
	statementRoutes.GET("/:id", ownerStatementHandler.GetByID)
	statementRoutes.PUT("/:id", ownerStatementHandler.Update)
	statementRoutes.DELETE("/:id", ownerStatementHandler.Delete)
	statementRoutes.PATCH("/:id/items", ownerStatementHandler.UpdateItemField)
	statementRoutes.POST("/:id/items", ownerStatementHandler.AddItem)
	statementRoutes.DELETE("/:id/items", ownerStatementHandler.RemoveItem)
	statementRoutes.POST("/:id/vendor-expenses/import", importGuard, vendorExpenseHandler.ImportWorkbook)

	// Property directory
	propertyRoutes := router.NewDomainGroup("properties", "/properties")
	propertyRoutes.GET("", propertyHandler.List)
	propertyRoutes.POST("", propertyHandler.Create)
	propertyRoutes.GET("/:id", propertyHandler.GetByID)
	propertyRoutes.PUT("/:id", propertyHandler.Update)
	propertyRoutes.DELETE("/:id", propertyHandler.Delete)

	// Register all domain groups
	r.Register(statementRoutes).
		Register(propertyRoutes)

	// Register system routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

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

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
