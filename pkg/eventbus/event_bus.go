// Package eventbus provides the event publishing infrastructure used to
// broadcast import/sync/reset lifecycle events to interested consumers,
// such as the dashboard.
package eventbus

import (
	"context"

	"github.com/prodfactory/flowsync/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
