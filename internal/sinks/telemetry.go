package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-presence/internal/feed"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// DefaultIngestInterval is how often feed counters are written.
const DefaultIngestInterval = 30 * time.Second

// PointWriter queues time-series points. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// TelemetryRecorder writes presence telemetry to InfluxDB.
type TelemetryRecorder struct {
	writer   PointWriter
	stats    func() feed.Stats
	interval time.Duration
	now      func() time.Time

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewTelemetryRecorder creates a recorder. stats may be nil, in which case
// no ingest points are written.
func NewTelemetryRecorder(writer PointWriter, stats func() feed.Stats, interval time.Duration) *TelemetryRecorder {
	if interval <= 0 {
		interval = DefaultIngestInterval
	}
	return &TelemetryRecorder{
		writer:   writer,
		stats:    stats,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Handle is a presence.Handler. Sightings become presence_sighting points
// and transitions become presence_episode points.
func (r *TelemetryRecorder) Handle(_ context.Context, e presence.Event) {
	switch e.Kind {
	case presence.EventSighting:
		r.writer.WritePoint(influxdb.SightingPoint(e.Device, e.At))
	case presence.EventAcquired, presence.EventLost, presence.EventReacquired:
		r.writer.WritePoint(influxdb.EpisodePoint(e.Kind, e.Device, e.At))
	}
}

// RecordIngest writes the current feed counters.
func (r *TelemetryRecorder) RecordIngest() {
	if r.stats == nil {
		return
	}
	s := r.stats()
	r.writer.WritePoint(influxdb.IngestPoint("all", s.Received, s.Accepted, s.Rejected, s.Malformed, r.now()))
}

// Start writes ingest counters every interval until ctx is cancelled or
// Stop is called.
func (r *TelemetryRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				r.RecordIngest()
			}
		}
	}()
}

// Stop halts the ingest loop. Safe to call multiple times.
func (r *TelemetryRecorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
