// Package middleware contains Fiber middleware shared by all routes
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one structured access-log line per request.
// skip, when set, suppresses logging for matching requests (health checks).
func RequestLogger(log logrus.FieldLogger, skip func(c fiber.Ctx) bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		if skip != nil && skip(c) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		fields := logrus.Fields{
			"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			"method":     c.Method(),
			"path":       c.Path(),
			"route":      routeLabel(c),
			"status":     responseStatus(c, err),
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000,
			"ip":         c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
			"bytes_out":  len(c.Response().Body()),
		}
		if loc := c.GetRespHeader(fiber.HeaderLocation); loc != "" {
			fields["location"] = loc
		}

		entry := log.WithFields(fields)
		switch status := fields["status"].(int); {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
		return err
	}
}
