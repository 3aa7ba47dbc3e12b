package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var serviceStart = time.Now()

// HealthHandler handles health check endpoints
type HealthHandler struct {
	redis  *redis.Client
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(redisClient *redis.Client, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		redis:  redisClient,
		logger: logger,
	}
}

// GetHealth returns the basic health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "rotation-engine",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	// Redis backs the schedule cache; the solver itself runs in-process,
	// so a Redis failure only degrades the service.
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			response.Status = "degraded"
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	} else {
		response.Checks["redis"] = "not_configured"
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}

	c.JSON(statusCode, response)
}

// GetReady returns the readiness status
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := HealthStatus{
		Status:    "ready",
		Service:   "rotation-engine",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			// Solves still work without the cache
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetMetrics returns basic service metrics
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	metrics := map[string]interface{}{
		"service":   "rotation-engine",
		"timestamp": time.Now(),
		"uptime":    time.Since(serviceStart).Seconds(),
	}

	if h.redis != nil {
		if dbSize, err := h.redis.DBSize(c.Request.Context()).Result(); err == nil {
			metrics["cache"] = map[string]interface{}{
				"total_keys": dbSize,
			}
		}
	}

	c.JSON(http.StatusOK, metrics)
}
