package events

import (
	"context"
	"fmt"
	"sync"

	"estatebot_backend/platform/logger"
)

// InMemoryBus is a simple in-process event bus. Handlers registered for an
// event name receive every published event of that name. Publish is
// fire-and-forget; PublishSync waits and returns the first handler error.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
// Handler errors and panics are logged, never propagated to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	// Detach from the request context so in-flight handlers survive the
	// HTTP response.
	detached := context.WithoutCancel(ctx)

	for _, h := range handlers {
		go func(h Handler) {
			defer b.recoverPanic(event)
			if err := h.Handle(detached, event); err != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}(h)
	}
}

// PublishSync dispatches the event to all handlers in registration order and
// returns the first error encountered.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return fmt.Errorf("handler for %s failed: %w", event.EventName(), err)
		}
	}
	return nil
}

func (b *InMemoryBus) recoverPanic(event Event) {
	if r := recover(); r != nil {
		b.log.Error("event handler panicked",
			"event", event.EventName(),
			"panic", fmt.Sprintf("%v", r),
		)
	}
}

var _ Bus = (*InMemoryBus)(nil)
