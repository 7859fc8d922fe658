package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

const loggerKey = "request_logger"

// RequestLogger tags each request with an id, attaches a scoped logger and
// records one access log line plus request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(HeaderRequestID, requestID)

		scoped := logger.With(zap.String("request_id", requestID))
		c.Locals(loggerKey, scoped)

		err := c.Next()

		status := c.Response().StatusCode()
		duration := time.Since(start)
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, duration)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if status >= fiber.StatusInternalServerError {
			scoped.Warn("request completed", fields...)
		} else {
			scoped.Info("request completed", fields...)
		}
		return err
	}
}

// LoggerFromContext returns the request-scoped logger, or fallback.
func LoggerFromContext(c *fiber.Ctx, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Locals(loggerKey).(*zap.Logger); ok {
		return l
	}
	return fallback
}
