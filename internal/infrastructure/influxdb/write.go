package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Measurement names.
const (
	MeasurementSighting = "presence_sighting"
	MeasurementEpisode  = "presence_episode"
	MeasurementIngest   = "presence_ingest"
)

// SightingPoint builds the point recorded for one accepted advertisement.
//
// Tags: address, name, tag, trend, tracked.
// Fields: rssi, detection_count, and distance_m when the distance is known.
func SightingPoint(v presence.DeviceView, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"rssi":            int64(v.RSSI),
		"detection_count": int64(v.DetectionCount), // #nosec G115 -- counts stay far below MaxInt64
	}
	if v.DistanceKnown {
		fields["distance_m"] = float64(v.DistanceMeters)
	}
	return write.NewPoint(MeasurementSighting, deviceTags(v), fields, at)
}

// EpisodePoint builds the point recorded for a state transition
// (acquired, lost, reacquired).
func EpisodePoint(kind presence.EventKind, v presence.DeviceView, at time.Time) *write.Point {
	tags := deviceTags(v)
	tags["kind"] = string(kind)

	fields := map[string]interface{}{
		"lost":             v.Lost(),
		"last_seen_age_ms": v.LastSeenAgeMs,
	}
	return write.NewPoint(MeasurementEpisode, tags, fields, at)
}

// IngestPoint builds a point from feed counters.
func IngestPoint(source string, received, accepted, rejected, malformed uint64, at time.Time) *write.Point {
	// #nosec G115 -- counters stay far below MaxInt64
	return write.NewPoint(MeasurementIngest,
		map[string]string{"source": source},
		map[string]interface{}{
			"received":  int64(received),
			"accepted":  int64(accepted),
			"rejected":  int64(rejected),
			"malformed": int64(malformed),
		},
		at,
	)
}

func deviceTags(v presence.DeviceView) map[string]string {
	tracked := "false"
	if v.Tracked {
		tracked = "true"
	}
	return map[string]string{
		"address": v.Address.String(),
		"name":    v.Name(),
		"tag":     v.Tag.String(),
		"trend":   v.Trend.String(),
		"tracked": tracked,
	}
}

// WriteSighting records one sighting. Non-blocking.
func (c *Client) WriteSighting(v presence.DeviceView, at time.Time) {
	c.WritePoint(SightingPoint(v, at))
}

// WriteEpisode records one state transition. Non-blocking.
func (c *Client) WriteEpisode(kind presence.EventKind, v presence.DeviceView, at time.Time) {
	c.WritePoint(EpisodePoint(kind, v, at))
}

// WritePoint queues a prepared point. Points written while disconnected
// are discarded.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
