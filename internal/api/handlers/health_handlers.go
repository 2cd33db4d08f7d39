package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/covest/covest-service/internal/infrastructure/cache"
	"github.com/covest/covest-service/internal/infrastructure/database"
	"github.com/covest/covest-service/pkg/logger"
)

// HealthHandlers serves liveness and readiness probes
type HealthHandlers struct {
	db        *sqlx.DB
	redis     cache.RedisClient
	logger    *logger.Logger
	version   string
	startTime time.Time
}

// NewHealthHandlers creates a new HealthHandlers instance
func NewHealthHandlers(db *sqlx.DB, redis cache.RedisClient, logger *logger.Logger, version string) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		redis:     redis,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Live handles GET /live. It only reports that the process is up.
func (h *HealthHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Ready handles GET /ready and checks the backing stores.
func (h *HealthHandlers) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		h.logger.Error("database health check failed", "error", err)
		checks["database"] = "unhealthy"
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", "error", err)
			checks["redis"] = "unhealthy"
			// Redis only backs the price cache; degraded, not down.
		} else {
			checks["redis"] = "healthy"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  checks,
		"version": h.version,
	})
}

// Version handles GET /version
func (h *HealthHandlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.version})
}
