// Package pubsub provides the in-process transports used by tabfetch: a lossy
// fan-out Broker for notifications (log lines, config reloads) and a lossless
// single-consumer Queue that carries session events to the UI loop.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// Sender enqueues a value without blocking. Implemented by Queue.
type Sender[T any] interface {
	Send(v T) error
}
