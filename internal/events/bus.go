// Package events is the in-process publish/subscribe bus modules use to
// announce lifecycle and import progress.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mantonx/medialibrary/internal/logger"
)

// EventType names a kind of event
type EventType string

// Event is a single published message
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent builds an event stamped with a fresh id and the current time
func NewEvent(eventType EventType, source string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// EventFilter selects events for a subscription. Empty Types matches everything.
type EventFilter struct {
	Types []EventType
}

func (f EventFilter) matches(e Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Subscription delivers matching events on Events until cancelled
type Subscription struct {
	ID     string
	Events <-chan Event

	filter EventFilter
	ch     chan Event
}

// EventBus is implemented by Bus
type EventBus interface {
	Publish(event Event)
	Subscribe(filter EventFilter) *Subscription
	Unsubscribe(sub *Subscription)
}

// Bus fans events out to subscribers. Slow subscribers drop events rather
// than block publishers.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
}

// NewEventBus creates a bus whose subscriptions buffer up to bufferSize events
func NewEventBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

// Publish delivers event to every matching subscription
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			logger.Debug("dropping event for slow subscriber", "subscription", sub.ID, "type", event.Type)
		}
	}
}

// Subscribe registers a new subscription
func (b *Bus) Subscribe(filter EventFilter) *Subscription {
	ch := make(chan Event, b.bufferSize)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Events: ch,
		filter: filter,
		ch:     ch,
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; ok {
		delete(b.subs, sub.ID)
		close(sub.ch)
	}
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
