package server

import (
	"context"
	"net/http"

	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CreateHealthHandler reports worker health. The Temporal connection is
// probed on every request with a short timeout.
func CreateHealthHandler(health HealthChecker, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		ready := true
		response := gin.H{
			"status":  statusHealthy,
			"version": version,
		}
		if health != nil {
			if err := health.HealthCheck(ctx); err != nil {
				logger.FromContext(ctx).Warn("Health check failed", "error", err)
				ready = false
				response["status"] = statusUnhealthy
				response["error"] = err.Error()
			}
		}
		response["ready"] = ready
		c.JSON(determineHealthStatusCode(ready), response)
	}
}

func determineHealthStatusCode(ready bool) int {
	if !ready {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
