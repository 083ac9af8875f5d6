package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/types"
)

// keepAliveInterval is how often an idle stream sends a comment line, which
// is also how a closed connection gets noticed
const keepAliveInterval = 15 * time.Second

// EventHandler streams pipeline events to the user as server-sent events
type EventHandler struct {
	bus *events.Bus
}

// NewEventHandler creates a new event handler instance
func NewEventHandler(bus *events.Bus) *EventHandler {
	return &EventHandler{
		bus: bus,
	}
}

// Stream keeps the connection open and writes every event of the user
func (h *EventHandler) Stream(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ch, release := h.bus.Listen(owner)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer release()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					logger.Debugf("event stream of user %d closed: %v", owner, err)
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

// writeEvent writes one event in the text/event-stream format and flushes it
func writeEvent(w *bufio.Writer, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
