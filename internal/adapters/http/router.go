// Package http - router configuration for the REST API.
//
// The router is the composition point of the HTTP layer: it assembles the
// middleware chain and hands each handler exactly the use cases it needs.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Haleralex/walletledger/internal/adapters/http/common"
	"github.com/Haleralex/walletledger/internal/adapters/http/handlers"
	"github.com/Haleralex/walletledger/internal/adapters/http/middleware"
	"github.com/Haleralex/walletledger/internal/application/ports"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig configures the router.
type RouterConfig struct {
	// Logger for the middleware chain.
	Logger *slog.Logger
	// Pool for database health checks.
	Pool *pgxpool.Pool
	// Cache for cache health checks.
	Cache ports.CacheStore
	// Version of the application.
	Version string
	// BuildTime of the binary.
	BuildTime string
	// Environment (development, production, test).
	Environment string
	// AllowedOrigins for CORS in production.
	AllowedOrigins []string
	// TracingEnabled turns on the otelgin middleware.
	TracingEnabled bool
}

// DefaultRouterConfig returns the development defaults.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:         slog.Default(),
		Version:        "dev",
		BuildTime:      "unknown",
		Environment:    "development",
		AllowedOrigins: []string{"*"},
	}
}

// ============================================
// Use Case Providers
// ============================================

// TransferUseCases groups the transfer pipeline use cases.
type TransferUseCases struct {
	Transfer handlers.TransferUseCase
}

// WalletUseCases groups the wallet use cases.
type WalletUseCases struct {
	CreateWallet handlers.CreateWalletUseCase
	GetBalance   handlers.GetBalanceUseCase
	GetHistory   handlers.GetHistoryUseCase
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder assembles a configured gin engine step by step.
type RouterBuilder struct {
	config    *RouterConfig
	transfers *TransferUseCases
	wallets   *WalletUseCases
}

// NewRouterBuilder creates a new builder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = DefaultRouterConfig()
	}
	return &RouterBuilder{
		config: config,
	}
}

// WithTransferUseCases adds the transfer use cases.
func (b *RouterBuilder) WithTransferUseCases(useCases *TransferUseCases) *RouterBuilder {
	b.transfers = useCases
	return b
}

// WithWalletUseCases adds the wallet use cases.
func (b *RouterBuilder) WithWalletUseCases(useCases *WalletUseCases) *RouterBuilder {
	b.wallets = useCases
	return b
}

// Build creates the configured gin engine.
func (b *RouterBuilder) Build() *gin.Engine {
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	handlers.SetupValidator()

	// ============================================
	// Global Middleware
	// ============================================

	// 1. Recovery goes first so it catches everything downstream.
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: b.config.Environment != "production",
	}))

	// 2. Request ID
	router.Use(middleware.RequestID())

	// 3. Tracing, before logging so log records carry the span context.
	if b.config.TracingEnabled {
		router.Use(otelgin.Middleware("walletledger"))
	}

	// 4. CORS
	if b.config.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(b.config.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	// 5. Logging
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/health/live", "/health/ready", "/live", "/ready", "/metrics"},
	}))

	// 6. Metrics (Prometheus)
	router.Use(middleware.Metrics())

	// ============================================
	// Metrics Endpoint
	// ============================================

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// Health Check Routes
	// ============================================

	healthHandler := handlers.NewHealthHandler(
		b.config.Pool,
		b.config.Cache,
		b.config.Version,
		b.config.BuildTime,
	)
	healthHandler.RegisterRoutes(router)

	// ============================================
	// API Routes
	// ============================================

	api := router.Group("/api")
	{
		if b.transfers != nil {
			transferHandler := handlers.NewTransferHandler(b.transfers.Transfer)
			transferHandler.RegisterRoutes(api)
		}

		if b.wallets != nil {
			walletHandler := handlers.NewWalletHandler(
				b.wallets.CreateWallet,
				b.wallets.GetBalance,
				b.wallets.GetHistory,
			)
			walletHandler.RegisterRoutes(api)
		}
	}

	// ============================================
	// 404 Handler
	// ============================================

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, &common.APIError{
			Code:    common.ErrCodeNotFound,
			Message: "Endpoint not found",
			Details: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			},
		})
	})

	return router
}

// ============================================
// Quick Setup Functions
// ============================================

// NewRouter creates a router with the given configuration.
func NewRouter(config *RouterConfig) *gin.Engine {
	return NewRouterBuilder(config).Build()
}
