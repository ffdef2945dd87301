package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SubjectFunc extracts the authenticated subject of a request, if any.
type SubjectFunc func(c *fiber.Ctx) string

// RequestLogger logs one line per request and records it in metrics. Register
// it ahead of the error middleware so the final status code is observed.
func RequestLogger(logger *zap.Logger, metrics *Metrics, subjectOf SubjectFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		}
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("ip", c.IP()),
		}
		if subjectOf != nil {
			if subject := subjectOf(c); subject != "" {
				fields = append(fields, zap.String("subject_id", subject))
			}
		}
		logger.Info("request", fields...)
		return err
	}
}
