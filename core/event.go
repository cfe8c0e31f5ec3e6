package core

import (
	"context"
	"reflect"
	"time"
)

// Event represents a fact that already happened inside the domain. Entities
// collect pending events; the orchestration layer publishes them after the
// state change has been persisted.
type Event interface {
	EventID() string
	EventName() string
	OccurredOn() time.Time
}

// EventHandler defines how a specific event is processed.
type EventHandler[E Event] interface {
	Handle(ctx context.Context, event E) error
}

// EventHandlerFunc is the type-erased handler signature used by middlewares.
type EventHandlerFunc func(context.Context, Event) error

// EventMiddlewareFunc wraps an event handler with cross-cutting behaviour.
type EventMiddlewareFunc func(next EventHandlerFunc) EventHandlerFunc

// EventBus publishes domain events and delivers them to subscribers.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(prototype Event, handler EventHandler[Event]) error
	Run(ctx context.Context) error
}

// SubscribeEvent registers a type-safe subscriber for events of type E.
func SubscribeEvent[E Event](bus EventBus, handler EventHandler[E]) error {
	var zero E
	// If E is a pointer type the zero value is nil; build a fresh instance so
	// the prototype's EventName method can be called.
	val := reflect.ValueOf(zero)
	if val.Kind() == reflect.Ptr && val.IsNil() {
		val = reflect.New(val.Type().Elem())
		zero = val.Interface().(E)
	}

	return bus.Subscribe(zero, &eventHandlerWrapper[E]{handler: handler})
}

type eventHandlerWrapper[E Event] struct {
	handler EventHandler[E]
}

func (w *eventHandlerWrapper[E]) Handle(ctx context.Context, event Event) error {
	return w.handler.Handle(ctx, event.(E))
}
