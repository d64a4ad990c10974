// Package event provides the synchronous dispatch used to route presentation
// change notifications to the components that care about them.
//
// A presentation engine publishes one event per change (slide.changed,
// fragment.shown, ...). Subscribers register per event type or for every
// type. Handlers run on the publisher's goroutine in registration order, and
// a panicking handler is logged and skipped so it cannot starve the others.
package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thruflo/slidesync/internal/logging"
)

// Event is implemented by everything published on a Bus.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

// Handler handles a published event.
type Handler func(Event)

// Basic is a payload-free Event.
type Basic struct {
	eventType string
	timestamp time.Time
}

func (e Basic) EventType() string    { return e.eventType }
func (e Basic) Timestamp() time.Time { return e.timestamp }

// New creates a Basic event of the given type stamped with the current time.
func New(eventType string) Basic {
	return Basic{eventType: eventType, timestamp: time.Now()}
}

// wildcard is the subscription key used by SubscribeAll.
const wildcard = "*"

type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a synchronous pub-sub event bus, safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// Subscribe registers handler for eventType and returns a subscription ID.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription by ID. Returns false if it was unknown.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches e to the handlers subscribed to its type, then to the
// wildcard handlers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[e.EventType()]...)
	all := append([]subscription(nil), b.subscriptions[wildcard]...)
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, e)
	}
	for _, sub := range all {
		b.safeCall(sub.handler, e)
	}
}

func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("event handler panicked",
				"event", e.EventType(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	handler(e)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}
