// Package events carries advisory lobby lifecycle events to in-process
// subscribers such as the admin websocket feed. Delivery is best-effort:
// a backlogged subscriber drops events rather than stalling the publisher.
package events

import (
	"sync"
	"time"
)

// Kind enumerates the lobby lifecycle events.
type Kind string

const (
	KindRoomCreated  Kind = "room_created"
	KindRoomStarted  Kind = "room_started"
	KindRoomFinished Kind = "room_finished"
)

// Event is one lifecycle notification.
type Event struct {
	Kind   Kind      `json:"kind"`
	RoomID int       `json:"room_id"`
	GameID int       `json:"game_id,omitempty"`
	Host   string    `json:"host,omitempty"`
	Port   int       `json:"port,omitempty"`
	At     time.Time `json:"at"`
}

// Bus fans events out to subscriber channels.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	now    func() time.Time
}

// Option configures optional bus behaviour.
type Option func(*Bus)

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewBus constructs an empty bus.
func NewBus(opts ...Option) *Bus {
	bus := &Bus{subs: make(map[int]chan Event), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(bus)
		}
	}
	return bus
}

// Subscribe registers a buffered subscriber channel and returns it with a
// cancel function. The channel is closed on cancellation.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish stamps and delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	event.At = b.now()
	b.mu.Lock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		//1.- Drop on backlog so a stuck dashboard cannot stall lobby handlers.
		select {
		case ch <- event:
		default:
		}
	}
}
