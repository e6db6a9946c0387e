package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timestampLayout is fixed-width so stored instants sort lexically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteRepository implements Repository on the presence_episodes table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts one entry and sets its ID. Re-recording an event ID that
// is already stored is a no-op.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.EventID == "" || entry.Kind == "" {
		return ErrInvalidEntry
	}
	if !entry.Kind.Episode() {
		return ErrNotEpisode
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	var distance any
	if entry.DistanceMeters != nil {
		distance = float64(*entry.DistanceMeters)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO presence_episodes
		    (event_id, kind, address, name, tracked, tag, rssi, distance_m, removed, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO NOTHING`,
		entry.EventID,
		string(entry.Kind),
		string(entry.Address),
		entry.Name,
		boolToInt(entry.Tracked),
		entry.Tag,
		entry.RSSI,
		distance,
		entry.Removed,
		formatTimestamp(entry.OccurredAt),
		formatTimestamp(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting presence episode: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 1 {
		if id, err := result.LastInsertId(); err == nil {
			entry.ID = id
		}
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, string(filter.Address))
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, formatTimestamp(filter.Since))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, event_id, kind, address, name, tracked, tag, rssi, distance_m, removed, occurred_at, created_at
		 FROM presence_episodes %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`,
		where,
	)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying presence episodes: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presence episodes: %w", err)
	}
	return entries, nil
}

// Prune deletes entries that occurred before cutoff.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM presence_episodes WHERE occurred_at < ?",
		formatTimestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting presence episodes: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		kind       string
		address    string
		tracked    int
		distance   sql.NullFloat64
		occurredAt string
		createdAt  string
	)
	if err := rows.Scan(&e.ID, &e.EventID, &kind, &address, &e.Name, &tracked,
		&e.Tag, &e.RSSI, &distance, &e.Removed, &occurredAt, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning presence episode: %w", err)
	}

	e.Kind = presence.EventKind(kind)
	e.Address = presence.MAC(address)
	e.Tracked = tracked != 0
	if distance.Valid {
		d := float32(distance.Float64)
		e.DistanceMeters = &d
	}

	var err error
	if e.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
		return Entry{}, err
	}
	if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if t, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
