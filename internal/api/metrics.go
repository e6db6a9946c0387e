package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/feed"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     HubStats           `json:"websocket"`
	MQTT          ConnMetrics        `json:"mqtt"`
	InfluxDB      ConnMetrics        `json:"influxdb"`
	Presence      PresenceMetrics    `json:"presence"`
	Ingest        *feed.Stats        `json:"ingest,omitempty"`
	Events        *presence.BusStats `json:"events,omitempty"`
	Database      *DatabaseMetrics   `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// ConnMetrics reports an optional outbound connection.
type ConnMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// PresenceMetrics summarises the registry.
type PresenceMetrics struct {
	Configured  int `json:"configured"`
	Seen        int `json:"seen"`
	TrackedSeen int `json:"tracked_seen"`
	Lost        int `json:"lost"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: s.hub.Stats(),
		MQTT:      connMetrics(s.mqtt),
		InfluxDB:  connMetrics(s.influx),
		Presence:  s.presenceMetrics(),
	}

	if s.ingest != nil {
		st := s.ingest()
		metrics.Ingest = &st
	}

	if s.bus != nil {
		st := s.bus.Stats()
		metrics.Events = &st
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) presenceMetrics() PresenceMetrics {
	snap := s.reader.Snapshot()
	m := PresenceMetrics{
		Configured:  s.reader.Devices().Len(),
		Seen:        snap.Len(),
		TrackedSeen: len(snap.Tracked),
	}
	for _, v := range snap.Tracked {
		if v.Lost() {
			m.Lost++
		}
	}
	return m
}

func connMetrics(c ConnectionStatus) ConnMetrics {
	if c == nil {
		return ConnMetrics{}
	}
	return ConnMetrics{Enabled: true, Connected: c.IsConnected()}
}
