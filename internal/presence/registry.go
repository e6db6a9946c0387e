package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the presence package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TimeoutFunc returns the inactivity timeout for an address.
// It is called with the registry lock held and must not block.
type TimeoutFunc func(MAC) time.Duration

// deviceState is the single record kept per address.
// Zero lostAt or reacquiredAt means "not set".
type deviceState struct {
	address MAC
	tracked *TrackedDevice
	tag     ManufacturerTag

	count    uint64
	rssi     int16
	distance float32
	trend    Trend
	lastSeen time.Duration

	lostAt       time.Time
	reacquiredAt time.Time

	localName   string
	serviceUUID string
}

// lossOpen reports whether the device is in an unresolved loss episode.
func (s *deviceState) lossOpen() bool {
	if s.lostAt.IsZero() {
		return false
	}
	return s.reacquiredAt.IsZero() || s.reacquiredAt.Before(s.lostAt)
}

func (s *deviceState) status() Status {
	if s.lossOpen() {
		return StatusLost
	}
	return StatusActive
}

// view copies the state into a DeviceView. mono is the current monotonic
// reading used for the last-seen age.
func (s *deviceState) view(mono time.Duration) DeviceView {
	v := DeviceView{
		Address:        s.address,
		Suffix:         s.address.Suffix(),
		Tag:            s.tag,
		DetectionCount: s.count,
		RSSI:           s.rssi,
		DistanceMeters: s.distance,
		DistanceKnown:  DistanceKnown(s.distance),
		Trend:          s.trend,
		TrendGlyph:     s.trend.Glyph(),
		Status:         s.status(),
		LocalName:      s.localName,
		ServiceUUID:    s.serviceUUID,
	}
	if s.tracked != nil {
		v.Tracked = true
		v.DisplayName = s.tracked.DisplayName
		v.WebName = s.tracked.WebName
	}
	if age := mono - s.lastSeen; age > 0 {
		v.LastSeenAgeMs = age.Milliseconds()
	}
	if !s.lostAt.IsZero() {
		t := s.lostAt
		v.LostAt = &t
	}
	if !s.reacquiredAt.IsZero() {
		t := s.reacquiredAt
		v.ReacquiredAt = &t
	}
	return v
}

// strictlyAfter returns t, or the instant just after floor when t does not
// come after it. Wall clocks can repeat or step backwards; episode instants
// must still be ordered.
func strictlyAfter(t, floor time.Time) time.Time {
	if floor.IsZero() || t.After(floor) {
		return t
	}
	return floor.Add(time.Nanosecond)
}

// pendingEvent is an event captured under the lock and published after it.
// at is the instant the registry recorded for it.
type pendingEvent struct {
	kind   EventKind
	at     time.Time
	device DeviceView
}

// Registry owns the presence state of every device heard since it was
// created or last cleared.
//
// Observe, SweepTimeouts and Clear take the write lock; Snapshot and Lookup
// take the read lock and return copies. No I/O happens under the lock.
//
// Events reach the Notifier in the order their state changes were applied:
// emitMu is taken before mu is released and held until delivery ends.
//
// All public methods are thread-safe.
type Registry struct {
	devices *DeviceList
	clock   Clock

	mu    sync.RWMutex
	state map[MAC]*deviceState

	emitMu sync.Mutex

	notifier Notifier
	logger   Logger
}

// NewRegistry creates an empty registry for the given tracked devices.
func NewRegistry(devices *DeviceList, clock Clock) *Registry {
	return &Registry{
		devices:  devices,
		clock:    clock,
		state:    make(map[MAC]*deviceState),
		notifier: noopNotifier{},
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNotifier sets where events are delivered. It must be called before
// the registry is shared between goroutines.
func (r *Registry) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	r.notifier = n
}

// Observe applies an accepted observation.
//
// The first observation of an address creates its state and records the
// initial acquisition. An observation of a lost device closes the loss
// episode with a reacquired instant strictly after the lost instant.
// RSSI, distance, trend and the detection count are always updated;
// the last-seen reading never moves backwards.
func (r *Registry) Observe(obs Observation) {
	wall := r.clock.Now()
	mono := r.clock.Monotonic()
	distance := EstimateMeters(obs.RSSI)

	events := make([]pendingEvent, 0, 2)

	r.mu.Lock()
	s, known := r.state[obs.Address]
	if !known {
		s = &deviceState{
			address:      obs.Address,
			reacquiredAt: wall,
			lastSeen:     obs.ObservedAt,
		}
		if td, ok := r.devices.Lookup(obs.Address); ok {
			s.tracked = &td
		}
		r.state[obs.Address] = s
	}

	reacquired := known && s.lossOpen()
	if reacquired {
		s.reacquiredAt = strictlyAfter(wall, s.lostAt)
	}

	s.trend = ClassifyTrend(s.rssi, s.count > 0, obs.RSSI)
	s.rssi = obs.RSSI
	s.distance = distance
	s.tag = obs.Tag
	s.count++
	if obs.ObservedAt > s.lastSeen {
		s.lastSeen = obs.ObservedAt
	}
	// Details describe the latest advertisement only.
	s.localName = obs.LocalName
	s.serviceUUID = obs.ServiceUUID

	v := s.view(mono)
	sightedAt := wall
	switch {
	case !known:
		events = append(events, pendingEvent{EventAcquired, s.reacquiredAt, v})
		sightedAt = s.reacquiredAt
	case reacquired:
		events = append(events, pendingEvent{EventReacquired, s.reacquiredAt, v})
		sightedAt = s.reacquiredAt
	}
	events = append(events, pendingEvent{EventSighting, sightedAt, v})

	r.emitMu.Lock()
	r.mu.Unlock()
	r.publish(events, 0)
}

// SweepTimeouts marks as lost every device that has not been heard for at
// least its timeout and is not already lost. now is a Clock.Monotonic
// reading. It never touches RSSI, distance or trend, and returns the number
// of devices that became lost. Sweeping twice without an intervening
// observation is a no-op the second time.
func (r *Registry) SweepTimeouts(now time.Duration, timeoutFor TimeoutFunc) int {
	if timeoutFor == nil {
		timeoutFor = r.devices.TimeoutFor
	}
	wall := r.clock.Now()

	var events []pendingEvent

	r.mu.Lock()
	for addr, s := range r.state {
		if s.lossOpen() {
			continue
		}
		if now-s.lastSeen < timeoutFor(addr) {
			continue
		}
		s.lostAt = strictlyAfter(wall, s.reacquiredAt)
		events = append(events, pendingEvent{EventLost, s.lostAt, s.view(now)})
	}
	r.emitMu.Lock()
	r.mu.Unlock()

	sort.Slice(events, func(i, j int) bool {
		return events[i].device.Address < events[j].device.Address
	})
	for _, e := range events {
		r.logger.Info("device lost",
			"address", e.device.Address,
			"name", e.device.Name(),
			"last_seen_age_ms", e.device.LastSeenAgeMs,
		)
	}
	r.publish(events, 0)
	return len(events)
}

// Snapshot returns a consistent copy of every device. Instants are left in
// the location the clock produced them in.
func (r *Registry) Snapshot() Snapshot {
	mono := r.clock.Monotonic()
	taken := r.clock.Now()

	r.mu.RLock()
	tracked := make([]DeviceView, 0, r.devices.Len())
	others := make([]DeviceView, 0, len(r.state))
	for _, s := range r.state {
		if s.tracked != nil {
			tracked = append(tracked, s.view(mono))
		} else {
			others = append(others, s.view(mono))
		}
	}
	r.mu.RUnlock()

	sort.Slice(tracked, func(i, j int) bool {
		return r.devices.position(tracked[i].Address) < r.devices.position(tracked[j].Address)
	})
	sort.Slice(others, func(i, j int) bool {
		return others[i].Address < others[j].Address
	})

	return Snapshot{Tracked: tracked, Others: others, TakenAt: taken}
}

// Lookup returns a copy of one device's state.
func (r *Registry) Lookup(addr MAC) (DeviceView, bool) {
	mono := r.clock.Monotonic()

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.state[addr]
	if !ok {
		return DeviceView{}, false
	}
	return s.view(mono), true
}

// Len returns the number of devices currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state)
}

// Clear drops all device state, tracked and anonymous alike, and returns
// how many devices were removed. The next observation of any device is an
// initial acquisition again.
func (r *Registry) Clear() int {
	wall := r.clock.Now()

	r.mu.Lock()
	removed := len(r.state)
	r.state = make(map[MAC]*deviceState)
	r.emitMu.Lock()
	r.mu.Unlock()

	r.logger.Info("presence registry cleared", "removed", removed)
	r.publish([]pendingEvent{{kind: EventCleared, at: wall}}, removed)
	return removed
}

// publish delivers events and releases emitMu, which the caller acquired
// while still holding mu.
func (r *Registry) publish(events []pendingEvent, removed int) {
	defer r.emitMu.Unlock()
	for _, p := range events {
		r.notifier.Notify(Event{
			ID:      uuid.NewString(),
			Kind:    p.kind,
			At:      p.at,
			Device:  p.device,
			Removed: removed,
		})
	}
}
