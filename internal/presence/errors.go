package presence

import "errors"

// Domain errors for the presence package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, presence.ErrDuplicateAddress) {
//	    // two configured devices share an address
//	}
var (
	// ErrInvalidAddress is returned when a MAC address cannot be parsed.
	ErrInvalidAddress = errors.New("presence: invalid address")

	// ErrDuplicateAddress is returned when the tracked device list contains
	// the same address more than once.
	ErrDuplicateAddress = errors.New("presence: duplicate tracked address")

	// ErrInvalidTimeout is returned when a tracked device or the default
	// timeout is not positive.
	ErrInvalidTimeout = errors.New("presence: invalid timeout")

	// ErrInvalidSignature is returned when a manufacturer signature is not
	// exactly two bytes of hex.
	ErrInvalidSignature = errors.New("presence: invalid manufacturer signature")

	// ErrDeviceNotFound is returned when a device has not been seen since
	// the registry was created or last cleared.
	ErrDeviceNotFound = errors.New("presence: device not found")
)
