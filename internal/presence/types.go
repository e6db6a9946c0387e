package presence

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// MAC is a normalised Bluetooth device address: six lower-case hex octets
// separated by colons, e.g. "e3:ed:26:c7:83:c4".
type MAC string

// macLength is the number of octets in a Bluetooth device address.
const macLength = 6

// suffixLength is how many trailing characters of an address are shown on
// space-constrained renderers.
const suffixLength = 5

// ParseMAC parses and normalises a Bluetooth device address.
// Colon, hyphen and dot separated forms are accepted in any case.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(hw) != macLength {
		return "", fmt.Errorf("%w: %q is not a 48-bit address", ErrInvalidAddress, s)
	}
	return MAC(hw.String()), nil
}

// String returns the address in its normalised form.
func (m MAC) String() string {
	return string(m)
}

// Suffix returns the last five characters of the address ("83:c4").
func (m MAC) Suffix() string {
	s := string(m)
	if len(s) <= suffixLength {
		return s
	}
	return s[len(s)-suffixLength:]
}

// ManufacturerTag identifies which family of beacon an advertisement belongs to.
type ManufacturerTag uint8

// Recognised beacon families.
const (
	TagUnknown ManufacturerTag = iota
	TagAppleFindMy
	TagLegacyTracker
)

// String returns the wire name of the tag.
func (t ManufacturerTag) String() string {
	switch t {
	case TagAppleFindMy:
		return "apple_find_my"
	case TagLegacyTracker:
		return "legacy_tracker"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ManufacturerTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Trend describes how a device's signal changed between its last two samples.
type Trend uint8

// Trend values. Stable is the zero value and the default for a first sample.
const (
	TrendStable Trend = iota
	TrendApproaching
	TrendReceding
)

// String returns the wire name of the trend.
func (t Trend) String() string {
	switch t {
	case TrendApproaching:
		return "approaching"
	case TrendReceding:
		return "receding"
	default:
		return "stable"
	}
}

// Glyph returns the single-character indicator used on compact displays:
// '+' when the signal is getting stronger, '-' when weaker, ' ' otherwise.
func (t Trend) Glyph() string {
	switch t {
	case TrendApproaching:
		return "+"
	case TrendReceding:
		return "-"
	default:
		return " "
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Status is the state-machine position of a device present in the registry.
type Status string

// Device statuses.
const (
	StatusActive Status = "active"
	StatusLost   Status = "lost"
)

// Advertisement is a raw BLE advertisement as delivered by a scanner.
// Only Address, RSSI and ManufacturerData take part in classification;
// LocalName and ServiceUUID are carried through for display.
type Advertisement struct {
	Address          MAC
	RSSI             int16
	ManufacturerData []byte
	LocalName        string
	ServiceUUID      string
}

// Observation is one accepted advertisement, ready to be applied to the registry.
type Observation struct {
	Address MAC
	RSSI    int16
	Tag     ManufacturerTag

	// ObservedAt is a reading of Clock.Monotonic taken when the
	// advertisement arrived.
	ObservedAt time.Duration

	// Optional descriptive fields from the advertisement.
	LocalName   string
	ServiceUUID string
}

// ObservationFrom builds an Observation from an accepted advertisement.
func ObservationFrom(adv Advertisement, tag ManufacturerTag, observedAt time.Duration) Observation {
	return Observation{
		Address:     adv.Address,
		RSSI:        adv.RSSI,
		Tag:         tag,
		ObservedAt:  observedAt,
		LocalName:   adv.LocalName,
		ServiceUUID: adv.ServiceUUID,
	}
}
