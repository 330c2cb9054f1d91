package store

import (
	"context"
	"sync"
)

// FocusEvent is the event name the list store listens to for refetch-on-focus.
const FocusEvent = "focus"

// Listener receives events from an EventSource. Implementations must be comparable so
// they can be removed again.
type Listener interface {
	HandleEvent(ctx context.Context, event string)
}

// EventSource is an external signal such as window focus.
type EventSource interface {
	AddListener(event string, listener Listener)
	RemoveListener(event string, listener Listener)
}

// EventBus is an in-process EventSource. Emit delivers synchronously in registration order.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[string][]Listener)}
}

// AddListener registers listener for event. Adding the same listener twice is a no-op.
func (b *EventBus) AddListener(event string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners[event] {
		if existing == listener {
			return
		}
	}

	b.listeners[event] = append(b.listeners[event], listener)
}

// RemoveListener unregisters listener for event.
func (b *EventBus) RemoveListener(event string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners := b.listeners[event]
	for i, existing := range listeners {
		if existing == listener {
			b.listeners[event] = append(listeners[:i:i], listeners[i+1:]...)

			break
		}
	}

	if len(b.listeners[event]) == 0 {
		delete(b.listeners, event)
	}
}

// Emit delivers event to its listeners.
func (b *EventBus) Emit(ctx context.Context, event string) {
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners[event]...)
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener.HandleEvent(ctx, event)
	}
}

// ListenerCount returns how many listeners are registered for event.
func (b *EventBus) ListenerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.listeners[event])
}
