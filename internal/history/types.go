package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Entry is one stored presence episode.
type Entry struct {
	ID             int64              `json:"id"`
	EventID        string             `json:"event_id"`
	Kind           presence.EventKind `json:"kind"`
	Address        presence.MAC       `json:"address,omitempty"`
	Name           string             `json:"name,omitempty"`
	Tracked        bool               `json:"tracked"`
	Tag            string             `json:"tag"`
	RSSI           int16              `json:"rssi"`
	DistanceMeters *float32           `json:"distance_m,omitempty"`
	Removed        int                `json:"removed,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
	CreatedAt      time.Time          `json:"created_at"`
}

// EntryFromEvent converts a registry event into a history entry.
// Returns ErrNotEpisode for sightings.
func EntryFromEvent(e presence.Event) (Entry, error) {
	if !e.Kind.Episode() {
		return Entry{}, ErrNotEpisode
	}

	entry := Entry{
		EventID:    e.ID,
		Kind:       e.Kind,
		Removed:    e.Removed,
		OccurredAt: e.At,
		Tag:        presence.TagUnknown.String(),
	}
	if e.Kind == presence.EventCleared {
		return entry, nil
	}

	d := e.Device
	entry.Address = d.Address
	entry.Name = d.Name()
	entry.Tracked = d.Tracked
	entry.Tag = d.Tag.String()
	entry.RSSI = d.RSSI
	if d.DistanceKnown {
		dist := d.DistanceMeters
		entry.DistanceMeters = &dist
	}
	return entry, nil
}

// Filter selects entries to list. Zero fields do not filter.
type Filter struct {
	Address presence.MAC
	Kind    presence.EventKind
	Since   time.Time
	Limit   int // default 50, max 500
}

// Repository stores and queries presence episodes.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record stores one entry. The CreatedAt field is set when zero.
	Record(ctx context.Context, entry *Entry) error

	// List returns entries matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]Entry, error)

	// Prune deletes entries that occurred before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
