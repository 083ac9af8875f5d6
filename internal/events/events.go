// Package events provides the in-process notification bus jobs publish to
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/celestiaorg/geoimport/internal/logger"
)

// EventType represents the type of import pipeline event
type EventType string

const (
	// EventJobStatus is emitted whenever a job changes status or progress
	EventJobStatus EventType = "job_status"
	// EventItemAdded is emitted when an upload placeholder is created
	EventItemAdded EventType = "item_added"
	// EventItemUpdated is emitted when an upload finished processing
	EventItemUpdated EventType = "item_updated"
	// EventItemDeleted is emitted when an import item is removed
	EventItemDeleted EventType = "item_deleted"
	// EventFeaturesCommitted is emitted when staged features are committed to the library
	EventFeaturesCommitted EventType = "features_committed"
	// EventFeaturesDeleted is emitted when library features are deleted
	EventFeaturesDeleted EventType = "features_deleted"
	// EventChannelSize is the default buffer size for the event channel
	EventChannelSize = 100
	// listenerBufferSize is the buffer of each per-owner listener
	listenerBufferSize = 32
)

// Event is a notification for the listeners of one user
type Event struct {
	Type      EventType   `json:"type"`
	OwnerID   uint        `json:"owner_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

// Bus fans published events out to handlers and per-owner listeners.
// Publishing never blocks: when the buffer is full the event is dropped.
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[EventType][]Handler
	all        []Handler

	listenersMu sync.RWMutex
	listeners   map[uint]map[int]chan Event
	nextID      int

	eventChan chan Event
	dropped   atomic.Int64
}

// NewBus creates a bus with the given buffer size
func NewBus(size int) *Bus {
	if size <= 0 {
		size = EventChannelSize
	}
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		listeners: make(map[uint]map[int]chan Event),
		eventChan: make(chan Event, size),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	logger.Debugf("📝 Registered handler for event type: %s", eventType)
}

// SubscribeAll registers a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.all = append(b.all, handler)
}

// Listen returns a channel receiving the events of one owner and a function
// releasing it. Slow listeners miss events rather than stall the bus.
func (b *Bus) Listen(ownerID uint) (<-chan Event, func()) {
	ch := make(chan Event, listenerBufferSize)

	b.listenersMu.Lock()
	id := b.nextID
	b.nextID++
	if b.listeners[ownerID] == nil {
		b.listeners[ownerID] = make(map[int]chan Event)
	}
	b.listeners[ownerID][id] = ch
	b.listenersMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.listenersMu.Lock()
			delete(b.listeners[ownerID], id)
			if len(b.listeners[ownerID]) == 0 {
				delete(b.listeners, ownerID)
			}
			b.listenersMu.Unlock()
			close(ch)
		})
	}
}

// Publish queues an event for delivery without blocking
func (b *Bus) Publish(ownerID uint, eventType EventType, payload interface{}) {
	event := Event{Type: eventType, OwnerID: ownerID, Payload: payload, Timestamp: time.Now()}
	select {
	case b.eventChan <- event:
		logger.Debugf("📢 Published event: %s (owner: %d)", eventType, ownerID)
	default:
		b.dropped.Add(1)
		logger.WarnWithFields("event buffer full, dropping event", map[string]interface{}{
			"type":     eventType,
			"owner_id": ownerID,
		})
	}
}

// Dropped returns how many events were dropped because the buffer was full
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Start starts the event processing loop
func (b *Bus) Start(ctx context.Context) {
	go b.processEvents(ctx)
	logger.Info("🎯 Started event processing loop")
}

// processEvents handles events in the background
func (b *Bus) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Stopping event processing loop")
			return
		case event := <-b.eventChan:
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.handlersMu.RLock()
	eventHandlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.all))
	eventHandlers = append(eventHandlers, b.handlers[event.Type]...)
	eventHandlers = append(eventHandlers, b.all...)
	b.handlersMu.RUnlock()

	for _, handler := range eventHandlers {
		go func(h Handler, e Event) {
			if err := h(ctx, e); err != nil {
				logger.Errorf("❌ Failed to handle event %s: %v", e.Type, err)
			}
		}(handler, event)
	}

	b.listenersMu.RLock()
	defer b.listenersMu.RUnlock()
	for _, ch := range b.listeners[event.OwnerID] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}
