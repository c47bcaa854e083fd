package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/logger"
)

// RequestLogger logs every HTTP request once it has been served.
// Bodies are never logged since they carry passwords.
func RequestLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		// Skip logging for health checks and scrapes
		if p := c.Request.URL.Path; p == "/api/health" || p == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", status,
			"duration", time.Since(start).String(),
			"size", c.Writer.Size(),
			"ip", c.ClientIP(),
			"request_id", c.Writer.Header().Get(apperrors.RequestIDHeader),
		}

		switch {
		case status >= 500:
			log.Error("request failed", args...)
		case status >= 400:
			log.Info("request rejected", args...)
		default:
			log.Debug("request served", args...)
		}
	}
}

// ErrorLogger logs errors attached to the context with c.Error
func ErrorLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			log.Error("request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
				"type", err.Type,
			)
		}
	}
}
