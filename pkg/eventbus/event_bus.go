// Package eventbus provides the detached dispatch channel between domain
// event producers and the event trigger engine. Producers publish and return;
// a subscriber goroutine delivers each event to its handler with its own
// error logging, so the producing request path never blocks on trigger
// evaluation.
package eventbus

import (
	"context"

	"github.com/practiq/automation/pkg/events"
	"github.com/practiq/automation/pkg/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType models.DomainEvent, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
