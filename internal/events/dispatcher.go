package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidEvent is returned by Publish for events that do not name a known
// type and an existing ticket.
var ErrInvalidEvent = errors.New("invalid ticket event")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	// SubscribeAll registers handler for every type in AllEventTypes.
	SubscribeAll(handler EventHandler)
}

type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous, process-local dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{handlers: make(map[EventType][]EventHandler, len(AllEventTypes))}
}

// Publish runs the handlers for event.Type in subscription order. Every
// handler runs even if an earlier one fails; failures come back joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	if !slices.Contains(AllEventTypes, event.Type) || event.TicketID <= 0 {
		return fmt.Errorf("%w: type %q ticket %d", ErrInvalidEvent, event.Type, event.TicketID)
	}

	d.mu.RLock()
	handlers := slices.Clone(d.handlers[event.Type])
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s for ticket %d: %w", event.Type, event.TicketID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *inMemoryDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, eventType := range AllEventTypes {
		d.handlers[eventType] = append(d.handlers[eventType], handler)
	}
}
