package presence

import (
	"errors"
	"fmt"
	"time"
)

// DeviceConfig is one tracked-device entry as read from configuration.
// A zero Timeout means "use the default timeout".
type DeviceConfig struct {
	Address     string
	DisplayName string
	WebName     string
	Timeout     time.Duration
}

// TrackedDevice is a named device the operator cares about.
// Values are immutable once the DeviceList has been built.
type TrackedDevice struct {
	Address     MAC
	DisplayName string
	WebName     string
	Timeout     time.Duration
}

// Name returns the display name, falling back to the web name and then the address.
func (d TrackedDevice) Name() string {
	switch {
	case d.DisplayName != "":
		return d.DisplayName
	case d.WebName != "":
		return d.WebName
	default:
		return d.Address.String()
	}
}

// DeviceList is the immutable, ordered set of tracked devices.
// It is safe for concurrent use.
type DeviceList struct {
	devices        []TrackedDevice
	index          map[MAC]int
	defaultTimeout time.Duration
}

// NewDeviceList validates configs and builds a DeviceList.
//
// Every problem is reported, joined into one error: malformed addresses wrap
// ErrInvalidAddress, repeated addresses wrap ErrDuplicateAddress and
// non-positive timeouts wrap ErrInvalidTimeout. defaultTimeout applies to
// anonymous devices and to entries without their own timeout.
func NewDeviceList(configs []DeviceConfig, defaultTimeout time.Duration) (*DeviceList, error) {
	if defaultTimeout <= 0 {
		return nil, fmt.Errorf("%w: default timeout %s", ErrInvalidTimeout, defaultTimeout)
	}

	l := &DeviceList{
		devices:        make([]TrackedDevice, 0, len(configs)),
		index:          make(map[MAC]int, len(configs)),
		defaultTimeout: defaultTimeout,
	}

	var errs []error
	for i, c := range configs {
		addr, err := ParseMAC(c.Address)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %d: %w", i, err))
			continue
		}
		if _, dup := l.index[addr]; dup {
			errs = append(errs, fmt.Errorf("device %d: %w: %s", i, ErrDuplicateAddress, addr))
			continue
		}

		timeout := c.Timeout
		switch {
		case timeout == 0:
			timeout = defaultTimeout
		case timeout < 0:
			errs = append(errs, fmt.Errorf("device %d (%s): %w: %s", i, addr, ErrInvalidTimeout, timeout))
			continue
		}

		l.devices = append(l.devices, TrackedDevice{
			Address:     addr,
			DisplayName: c.DisplayName,
			WebName:     c.WebName,
			Timeout:     timeout,
		})
		l.index[addr] = len(l.devices) - 1
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return l, nil
}

// Lookup returns the tracked device with the given address.
func (l *DeviceList) Lookup(addr MAC) (TrackedDevice, bool) {
	i, ok := l.index[addr]
	if !ok {
		return TrackedDevice{}, false
	}
	return l.devices[i], true
}

// position returns the configuration order of addr, or -1 when untracked.
func (l *DeviceList) position(addr MAC) int {
	if i, ok := l.index[addr]; ok {
		return i
	}
	return -1
}

// TimeoutFor returns the inactivity timeout for addr: the device's own
// timeout when tracked, the default otherwise.
func (l *DeviceList) TimeoutFor(addr MAC) time.Duration {
	if i, ok := l.index[addr]; ok {
		return l.devices[i].Timeout
	}
	return l.defaultTimeout
}

// DefaultTimeout returns the timeout applied to anonymous devices.
func (l *DeviceList) DefaultTimeout() time.Duration {
	return l.defaultTimeout
}

// All returns the tracked devices in configuration order.
func (l *DeviceList) All() []TrackedDevice {
	out := make([]TrackedDevice, len(l.devices))
	copy(out, l.devices)
	return out
}

// Len returns the number of tracked devices.
func (l *DeviceList) Len() int {
	return len(l.devices)
}
