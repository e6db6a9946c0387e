package feed

import "errors"

var (
	// ErrMalformed indicates a message that could not be decoded into an
	// advertisement.
	ErrMalformed = errors.New("feed: malformed advertisement")

	// ErrNoPort indicates a serial source with no device path.
	ErrNoPort = errors.New("feed: serial port not configured")

	// ErrNoCommand indicates a command source with no helper binary.
	ErrNoCommand = errors.New("feed: scanner command not configured")
)
