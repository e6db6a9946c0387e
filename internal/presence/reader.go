package presence

import (
	"fmt"
	"time"
)

// Reader is the read side used by renderers and the host scheduler.
// It binds a Registry to its device list, clock and display time zone.
type Reader struct {
	registry *Registry
	devices  *DeviceList
	clock    Clock
	loc      *time.Location
}

// NewReader creates a Reader. A nil loc renders instants in UTC.
func NewReader(registry *Registry, devices *DeviceList, clock Clock, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.UTC
	}
	return &Reader{
		registry: registry,
		devices:  devices,
		clock:    clock,
		loc:      loc,
	}
}

// Snapshot returns a consistent copy of all devices with instants rendered
// in the reader's time zone.
func (r *Reader) Snapshot() Snapshot {
	snap := r.registry.Snapshot()
	for i := range snap.Tracked {
		snap.Tracked[i].localize(r.loc)
	}
	for i := range snap.Others {
		snap.Others[i].localize(r.loc)
	}
	snap.TakenAt = snap.TakenAt.In(r.loc)
	return snap
}

// Device returns the view of one device, or ErrDeviceNotFound.
func (r *Reader) Device(addr MAC) (DeviceView, error) {
	v, ok := r.registry.Lookup(addr)
	if !ok {
		return DeviceView{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	v.localize(r.loc)
	return v, nil
}

// Sweep runs a timeout sweep against the current monotonic time using each
// device's configured timeout. It returns the number of newly lost devices.
func (r *Reader) Sweep() int {
	return r.registry.SweepTimeouts(r.clock.Monotonic(), r.devices.TimeoutFor)
}

// Clear resets the registry and returns the number of devices removed.
func (r *Reader) Clear() int {
	return r.registry.Clear()
}

// Devices returns the tracked device list.
func (r *Reader) Devices() *DeviceList {
	return r.devices
}

// Location returns the time zone instants are rendered in.
func (r *Reader) Location() *time.Location {
	return r.loc
}

// Len returns the number of devices in the registry.
func (r *Reader) Len() int {
	return r.registry.Len()
}
