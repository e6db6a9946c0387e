package discovery

import "errors"

var (
	// ErrNoAddresses is returned when no usable interface address exists.
	ErrNoAddresses = errors.New("discovery: no non-loopback interface addresses")

	// ErrInvalidPort is returned for a port outside 1-65535.
	ErrInvalidPort = errors.New("discovery: invalid port")
)
