package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	invoiceapp "github.com/sellerhub/invoicing/internal/application/invoice"
	domaininvoice "github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/sellerhub/invoicing/internal/infrastructure/cache"
	"github.com/sellerhub/invoicing/internal/infrastructure/config"
	"github.com/sellerhub/invoicing/internal/infrastructure/logger"
	"github.com/sellerhub/invoicing/internal/infrastructure/persistence"
	"github.com/sellerhub/invoicing/internal/infrastructure/rendering"
	"github.com/sellerhub/invoicing/internal/infrastructure/storage"
	"github.com/sellerhub/invoicing/internal/interfaces/http/handler"
	"github.com/sellerhub/invoicing/internal/interfaces/http/middleware"
	"github.com/sellerhub/invoicing/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting invoicing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("stage", cfg.App.Stage),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Dedup gate store: Redis when reachable, in-memory otherwise. The
	// in-memory fallback only dedupes within a single instance.
	var store cache.Store
	redisStore, err := cache.NewRedisStore(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory dedup store", zap.Error(err))
		store = cache.NewMemoryStore()
	} else {
		store = redisStore
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gateMetrics := cache.NewGateMetrics(registry)
	gate := cache.NewGate(store, cfg.Dedup.ProcessingTTL, gateMetrics, log)

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	invoiceRepo := persistence.NewGormSalesInvoiceRepository(db.DB, log)
	sequenceRepo := persistence.NewGormSequenceRepository(db.DB, persistence.SalesInvoiceSequence)

	// PDF rendering pipeline
	templateEngine, err := rendering.NewTemplateEngine()
	if err != nil {
		log.Fatal("Failed to parse invoice template", zap.Error(err))
	}
	pdfRenderer, err := rendering.NewChromedpRenderer(&rendering.ChromedpConfig{
		DefaultTimeout: cfg.Renderer.RenderTimeout,
		RemoteURL:      cfg.Renderer.RemoteURL,
		NoSandbox:      cfg.Renderer.NoSandbox,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to start PDF renderer", zap.Error(err))
	}
	defer pdfRenderer.Close()
	invoiceRenderer := rendering.NewInvoiceRenderer(templateEngine, pdfRenderer)

	// Object storage
	publisher, err := storage.NewS3Publisher(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Application service
	invoiceService := invoiceapp.NewInvoiceService(
		orderRepo,
		invoiceRepo,
		sequenceRepo,
		invoiceRenderer,
		publisher,
		gate,
		invoiceapp.ServiceConfig{
			Stage:   cfg.App.Stage,
			VatRate: decimal.NewFromFloat(cfg.Invoice.VatRate),
			Account: domaininvoice.AccountDetails{
				CompanyName:    cfg.Invoice.CompanyName,
				CompanyAddress: cfg.Invoice.CompanyAddress,
				TaxID:          cfg.Invoice.CompanyTaxID,
				BankName:       cfg.Invoice.BankName,
				BankAccount:    cfg.Invoice.BankAccount,
			},
			ResultTTL: cfg.Dedup.ResultTTL,
		},
		log,
	)

	// HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	systemHandler := handler.NewSystemHandler(map[string]handler.ContextPinger{
		"database": func(ctx context.Context) error { return db.Ping() },
		"cache": func(ctx context.Context) error {
			_, _, err := store.Get(ctx, "health")
			return err
		},
	})

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	// Health and metrics endpoints (outside API versioning)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(invoiceHandler)
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
