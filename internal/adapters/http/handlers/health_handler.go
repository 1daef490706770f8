// Package handlers - Health check handlers.
//
// Health checks let orchestrators (Kubernetes, Docker Swarm) observe the
// service. Three kinds:
// - Liveness: the process runs at all (restart it if not).
// - Readiness: the service may receive traffic (requires database and cache).
// - Health: the public status view; a dead cache degrades it, a dead
//   database fails it.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletledger/internal/adapters/http/middleware"
	"github.com/Haleralex/walletledger/internal/application/ports"
)

// pingTimeout bounds each dependency probe.
const pingTimeout = 2 * time.Second

// errNotConfigured marks a dependency that was never wired in.
var errNotConfigured = errors.New("not configured")

// ============================================
// Health Check Handler
// ============================================

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool      *pgxpool.Pool
	cache     ports.CacheStore
	version   string
	buildTime string
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. Either dependency may be nil
// (reported as "not configured" on the probe endpoints).
func NewHealthHandler(pool *pgxpool.Pool, cache ports.CacheStore, version, buildTime string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		cache:     cache,
		version:   version,
		buildTime: buildTime,
		startTime: time.Now(),
	}
}

// ============================================
// Response Types
// ============================================

// HealthStatus is the public health view.
type HealthStatus struct {
	Status   string            `json:"status"` // "ok", "degraded", "error"
	Services map[string]string `json:"services"`
}

// HealthResponse is the detailed health view.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	BuildTime string            `json:"build_time"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness probe view.
type ReadinessResponse struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// ============================================
// Dependency Probes
// ============================================

// checkDatabase pings the pool.
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.pool == nil {
		return errNotConfigured
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.pool.Ping(pingCtx)
}

// checkCache pings the cache store.
func (h *HealthHandler) checkCache(ctx context.Context) error {
	if h.cache == nil {
		return errNotConfigured
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.cache.Ping(pingCtx)
}

// ============================================
// HTTP Handlers
// ============================================

// Health returns the public health status.
//
// The database is load-bearing: when it is down the service cannot move
// money and reports 503. The cache only accelerates idempotency, so a dead
// cache degrades the status but the endpoint still answers 200.
//
// @Summary Health check
// @Description Public health status; degraded when the cache is down, 503 when the database is down
// @Tags Health
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	services := map[string]string{
		"database": "up",
		"cache":    "up",
	}
	status := "ok"
	statusCode := http.StatusOK

	if err := h.checkDatabase(c.Request.Context()); err != nil {
		services["database"] = "down"
		status = "error"
		statusCode = http.StatusServiceUnavailable
	}

	if err := h.checkCache(c.Request.Context()); err != nil {
		services["cache"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	}

	c.JSON(statusCode, HealthStatus{
		Status:   status,
		Services: services,
	})
}

// Ready checks whether the service may receive traffic.
//
// Stricter than Health: a degraded cache keeps existing traffic served but
// stops new traffic from being admitted.
//
// @Summary Readiness check
// @Description Readiness probe - requires both database and cache
// @Tags Health
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]string)
	allReady := true

	if h.pool != nil {
		if err := h.checkDatabase(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			allReady = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.cache != nil {
		if err := h.checkCache(c.Request.Context()); err != nil {
			checks["cache"] = "unhealthy: " + err.Error()
			allReady = false
		} else {
			checks["cache"] = "healthy"
		}
	} else {
		checks["cache"] = "not configured"
	}

	statusCode := http.StatusOK
	if !allReady {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Ready:     allReady,
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}

// Live reports that the process is alive.
//
// @Summary Liveness check
// @Description Simple liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// DetailedHealth returns detailed state including pool statistics.
//
// @Summary Detailed health check
// @Description Detailed health information including connection pool metrics
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health/detailed [get]
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	checks := make(map[string]string)

	if h.pool != nil {
		if err := h.checkDatabase(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
		} else {
			stats := h.pool.Stat()
			checks["database"] = "healthy"
			checks["db_total_conns"] = strconv.Itoa(int(stats.TotalConns()))
			checks["db_idle_conns"] = strconv.Itoa(int(stats.IdleConns()))
			checks["db_acquired_conns"] = strconv.Itoa(int(stats.AcquiredConns()))

			middleware.UpdateDBConnections(stats.IdleConns(), stats.AcquiredConns(), stats.MaxConns())
		}
	}

	if h.cache != nil {
		if err := h.checkCache(c.Request.Context()); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	status := "healthy"
	for _, v := range checks {
		if v == "unhealthy" {
			status = "unhealthy"
			break
		}
	}

	uptime := time.Since(h.startTime).Round(time.Second).String()

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Version:   h.version,
		BuildTime: h.buildTime,
		Uptime:    uptime,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// RegisterRoutes registers health check routes.
//
// Routes:
// - GET /health          - Public health status
// - GET /health/detailed - Detailed health with pool metrics
// - GET /health/ready    - Readiness probe
// - GET /health/live     - Liveness probe
// - GET /ready, /live    - Probe aliases for orchestrators
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/health/detailed", h.DetailedHealth)
	router.GET("/health/ready", h.Ready)
	router.GET("/health/live", h.Live)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
}
