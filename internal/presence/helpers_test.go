package presence

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a Clock whose wall and monotonic readings are set by the test.
type fakeClock struct {
	mu   sync.Mutex
	wall time.Time
	mono time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{wall: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall
}

func (c *fakeClock) Monotonic() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mono
}

// Advance moves both clocks forward by d.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.wall = c.wall.Add(d)
	c.mono += d
	c.mu.Unlock()
}

// SetWall replaces the wall reading without touching the monotonic one.
func (c *fakeClock) SetWall(t time.Time) {
	c.mu.Lock()
	c.wall = t
	c.mu.Unlock()
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

const (
	addrCat   = MAC("e3:ed:26:c7:83:c4")
	addrDog   = MAC("d1:a2:b3:c4:d5:e6")
	addrStray = MAC("aa:bb:cc:dd:ee:ff")
)

// testSetup builds a registry with two tracked devices: the cat with a
// five-minute timeout and the dog using the one-minute default.
func testSetup(t *testing.T) (*Registry, *Reader, *fakeClock, *recorder) {
	t.Helper()

	devices, err := NewDeviceList([]DeviceConfig{
		{Address: "E3:ED:26:C7:83:C4", DisplayName: "Ziggy", WebName: "ziggy", Timeout: 5 * time.Minute},
		{Address: "d1-a2-b3-c4-d5-e6", DisplayName: "Rex"},
	}, time.Minute)
	if err != nil {
		t.Fatalf("NewDeviceList() error = %v", err)
	}

	clock := newFakeClock()
	reg := NewRegistry(devices, clock)
	rec := &recorder{}
	reg.SetNotifier(rec)
	return reg, NewReader(reg, devices, clock, time.UTC), clock, rec
}

func observe(reg *Registry, clock *fakeClock, addr MAC, rssi int16) {
	reg.Observe(Observation{
		Address:    addr,
		RSSI:       rssi,
		Tag:        TagAppleFindMy,
		ObservedAt: clock.Monotonic(),
	})
}

func mustLookup(t *testing.T, reg *Registry, addr MAC) DeviceView {
	t.Helper()
	v, ok := reg.Lookup(addr)
	if !ok {
		t.Fatalf("Lookup(%s) not found", addr)
	}
	return v
}
