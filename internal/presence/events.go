package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies what happened to a device.
type EventKind string

// Event kinds.
const (
	// EventSighting is emitted for every accepted observation.
	EventSighting EventKind = "sighting"

	// EventAcquired is emitted when a device is seen for the first time
	// since the registry was created or cleared.
	EventAcquired EventKind = "acquired"

	// EventLost is emitted when a sweep opens a loss episode.
	EventLost EventKind = "lost"

	// EventReacquired is emitted when an observation closes a loss episode.
	EventReacquired EventKind = "reacquired"

	// EventCleared is emitted once per Clear. Device is the zero value.
	EventCleared EventKind = "cleared"
)

// Episode reports whether the kind marks a state transition rather than a
// routine sighting.
func (k EventKind) Episode() bool {
	return k != EventSighting
}

// Event is a state change produced by the registry.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`
	// At is the instant the registry stored for the change: the lost or
	// reacquired instant of an episode, so it matches Device.LostAt or
	// Device.ReacquiredAt.
	At     time.Time  `json:"at"`
	Device DeviceView `json:"device"`

	// Removed is the number of devices dropped, set on EventCleared only.
	Removed int `json:"removed,omitempty"`
}

// Notifier receives events from the registry, one call at a time and in
// the order the registry applied them. Notify runs on the caller's
// goroutine while later state changes wait for it, so implementations must
// not block and must not call back into the registry.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

type noopNotifier struct{}

func (noopNotifier) Notify(Event) {}

// Handler consumes events delivered by an EventBus.
type Handler func(ctx context.Context, e Event)

// DefaultEventBuffer is the queue length used when NewEventBus is given
// a non-positive size.
const DefaultEventBuffer = 1024

// BusStats holds EventBus counters.
type BusStats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
}

// EventBus decouples the registry from slow consumers.
//
// Notify never blocks: events go into a bounded queue and are dropped (and
// counted) when it is full. Run delivers queued events to every subscribed
// handler, in order, from a single goroutine.
type EventBus struct {
	queue chan Event

	mu       sync.RWMutex
	handlers []Handler

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	logger Logger
}

// NewEventBus creates an EventBus with the given queue length.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &EventBus{
		queue:  make(chan Event, buffer),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bus.
func (b *EventBus) SetLogger(logger Logger) {
	b.logger = logger
}

// Subscribe registers a handler. Handlers added after Run has started
// receive only events dequeued after the call.
func (b *EventBus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Notify enqueues e, dropping it if the queue is full.
func (b *EventBus) Notify(e Event) {
	select {
	case b.queue <- e:
		b.published.Add(1)
	default:
		if b.dropped.Add(1)%100 == 1 {
			b.logger.Warn("event queue full, dropping events",
				"kind", e.Kind,
				"dropped_total", b.dropped.Load(),
			)
		}
	}
}

// Run delivers events until ctx is cancelled.
func (b *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.dispatch(ctx, e)
		}
	}
}

func (b *EventBus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ctx, h, e)
	}
	b.delivered.Add(1)
}

// invoke runs one handler, isolating the bus from handler panics.
func (b *EventBus) invoke(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"kind", e.Kind,
				"address", e.Device.Address,
				"panic", r,
			)
		}
	}()
	h(ctx, e)
}

// Stats returns the bus counters.
func (b *EventBus) Stats() BusStats {
	return BusStats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Queued:    len(b.queue),
		Capacity:  cap(b.queue),
	}
}
