package ports

import "github.com/celestiaorg/geoimport/internal/events"

// NotificationSink delivers events to listeners of a user. Publish never blocks.
type NotificationSink interface {
	Publish(ownerID uint, eventType events.EventType, payload interface{})
}
