package history

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

const recordTimeout = 5 * time.Second

// Recorder stores episode events from the presence event bus.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Handle is a presence.Handler. Sightings are ignored; storage failures are
// logged and do not propagate to the bus.
func (r *Recorder) Handle(ctx context.Context, e presence.Event) {
	entry, err := EntryFromEvent(e)
	if errors.Is(err, ErrNotEpisode) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, &entry); err != nil {
		r.logger.Error("recording presence episode failed",
			"event_id", e.ID,
			"kind", string(e.Kind),
			"address", string(e.Device.Address),
			"error", err,
		)
	}
}
