// Package events provides the in-process broadcast bus that carries store
// changes and timer completions to observers.
package events

import (
	"sync"
	"time"

	"github.com/fentz26/cbclipper/internal/models"
)

// Type defines the kind of broadcast.
type Type string

const (
	// StateChanged follows every persisted write of a record.
	StateChanged Type = "state_change"
	// TimerComplete fires once when a countdown finishes naturally.
	TimerComplete Type = "TIMER_COMPLETE"
)

// Event is a single broadcast. No acknowledgement is expected.
type Event struct {
	Type Type        `json:"type"`
	Key  string      `json:"key,omitempty"`
	Mode models.Mode `json:"mode,omitempty"`
	At   time.Time   `json:"at"`
}

// Bus fans events out to subscribers. Delivery never blocks the publisher:
// a subscriber whose buffer is full misses the event and is expected to
// catch up by polling.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer channel. The returned function
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber that has room for it.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of registered observers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
