package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
)

// RequestLogger logs one line per request with the trace-scoped logger.
// Server errors log at warn level.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		log := logger.FromContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Warn("Request failed", fields...)
		} else {
			log.Debug("Request completed", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 failure envelope.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.Named("http")

	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error("Handler panicked",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal error",
			"kind":    "internal",
		})
	})
}
