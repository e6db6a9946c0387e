package history

import "errors"

var (
	// ErrNotEpisode indicates an attempt to store a routine sighting.
	ErrNotEpisode = errors.New("history: event is not an episode")

	// ErrInvalidEntry indicates an entry missing its event ID or kind.
	ErrInvalidEntry = errors.New("history: invalid entry")

	// ErrInvalidRetention indicates a non-positive retention period.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
