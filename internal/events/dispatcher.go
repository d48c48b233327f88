package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrHandlerPanic marks a handler that panicked during delivery.
var ErrHandlerPanic = errors.New("event handler panicked")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher routes user events to the handlers subscribed to their type.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// Registry is a synchronous Dispatcher. Delivery order follows subscription order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

var _ Dispatcher = (*Registry)(nil)

// NewInMemoryDispatcher returns an empty Registry.
func NewInMemoryDispatcher() *Registry {
	return &Registry{handlers: make(map[EventType][]EventHandler)}
}

// Subscribe appends handler to the list for eventType.
func (r *Registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Publish delivers event to every handler of its type. A failing or panicking
// handler does not stop delivery to the rest; all failures are joined.
func (r *Registry) Publish(ctx context.Context, event Event) error {
	r.mu.RLock()
	subscribed := r.handlers[event.Type]
	handlers := make([]EventHandler, len(subscribed))
	copy(handlers, subscribed)
	r.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := deliver(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	return handler(ctx, event)
}
