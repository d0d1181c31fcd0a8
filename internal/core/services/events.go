package services

import (
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// Verify interface compliance.
var _ driving.EventSource = (*EventBus)(nil)

type subscription struct {
	id int
	fn func(domain.Event)
}

// EventBus is a process-scoped, typed publish/subscribe hub.
// A nil *EventBus is valid and drops every event.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every published event.
func (b *EventBus) Subscribe(fn func(domain.Event)) func() {
	if b == nil || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber in subscription order.
// Handlers run on the caller's goroutine, outside the bus lock.
func (b *EventBus) Publish(ev domain.Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Emit publishes an event with no payload.
func (b *EventBus) Emit(kind domain.EventKind) {
	b.Publish(domain.Event{Kind: kind})
}

// Notify publishes a one-shot user-visible notice.
func (b *EventBus) Notify(message string, err error) {
	b.Publish(domain.Event{Kind: domain.EventNotice, Message: message, Err: err})
}
