// Package middleware holds the fiber middleware of the v1 API
package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	log "github.com/celestiaorg/geoimport/internal/logger"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// userIDHeader mirrors handlers.UserIDHeader without importing the handlers
const userIDHeader = "X-User-ID"

// Logger returns a middleware that logs HTTP requests. Requests without an
// X-Request-ID header get a generated one. Health checks and the event
// stream are only logged at debug level.
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		// Continue chain
		err := c.Next()
		if err != nil {
			// Let the error handler write the status before it is logged
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		fields := map[string]interface{}{
			"request_id": requestID,
			"status":     c.Response().StatusCode(),
			"latency":    time.Since(start).String(),
			"ip":         c.IP(),
			"method":     c.Method(),
			"path":       c.Path(),
			"handler":    c.Route().Name,
		}
		if user := c.Get(userIDHeader); user != "" {
			fields["user_id"] = user
		}

		switch {
		case c.Path() == "/health", c.Get(fiber.HeaderAccept) == "text/event-stream":
			log.Debugf("request %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		case c.Response().StatusCode() >= fiber.StatusInternalServerError:
			log.ErrorWithFields("Request", fields)
		default:
			log.InfoWithFields("Request", fields)
		}
		return err
	}
}
