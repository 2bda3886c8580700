package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event is a single change notification.
type Event struct {
	Reason  Reason
	At      time.Time
	Payload any  // optional, e.g. a sync summary
	Remote  bool // change was applied while merging remote data
}

// TriggersSync reports whether the event should schedule an outgoing sync.
// Remote merges and sync bookkeeping never do, or every sync would queue another.
func (e Event) TriggersSync() bool {
	return !e.Remote && IsLocalMutation(e.Reason)
}

// Handler receives published events.
type Handler func(Event)

// Bus is a small synchronous publish/subscribe channel. Handlers run in
// subscription order on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber. A panicking handler is logged and
// does not prevent delivery to the others.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic", "reason", ev.Reason, "panic", r)
		}
	}()
	h(ev)
}
