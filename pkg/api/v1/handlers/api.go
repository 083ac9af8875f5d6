package handlers

import (
	"errors"
	"fmt"
	"strconv"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/services"
	"github.com/celestiaorg/geoimport/internal/types"
)

// UserIDHeader carries the ID of the user a request acts for
const UserIDHeader = "X-User-ID"

// APIHandler is a handler for the API
type APIHandler struct {
	imports *services.Import
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(imports *services.Import) *APIHandler {
	return &APIHandler{
		imports: imports,
	}
}

// ownerID reads the acting user from the request headers
func ownerID(c *fiber.Ctx) (uint, error) {
	raw := c.Get(UserIDHeader)
	if raw == "" {
		return 0, errors.New(ErrMsgUserIDRequired)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New(ErrMsgInvalidUserID)
	}
	return uint(id), nil
}

// positiveID parses a path or form value as a non zero ID
func positiveID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(id), nil
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and answered with the generic failure message.
func respondError(c *fiber.Ctx, err error, notFoundMsg, failedMsg string) error {
	switch {
	case types.IsValidationError(err):
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrJobNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ErrNotFoundResponse(notFoundMsg))
	case errors.Is(err, types.ErrJobAlreadyRunning):
		return c.Status(fiber.StatusConflict).JSON(types.ErrConflict(ErrMsgJobRunning))
	case errors.Is(err, types.ErrQueueFull):
		return c.Status(fiber.StatusServiceUnavailable).JSON(types.ErrServer(ErrMsgQueueFull))
	case errors.Is(err, types.ErrRunnerClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(types.ErrServer(ErrMsgServiceStopping))
	}

	logger.ErrorWithFields(failedMsg, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
		"error":  err.Error(),
	})
	return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(failedMsg))
}
