// Package api implements the HTTP REST API and WebSocket server for Gray Logic Presence.
//
// This package provides:
//   - REST endpoints for the presence snapshot, single devices and episode history
//   - A manual clear operation (POST /api/v1/presence/clear, legacy GET /clear)
//   - WebSocket hub broadcasting presence events and periodic snapshots
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Graceful Degradation
//
// History, MQTT, ingest statistics and the database are optional. Without
// history the history endpoints return 503; everything else keeps working.
//
// # Rendering
//
// Distances of -1 are unknown and are also flagged by distance_known.
// Each device carries a trend_colour for dashboards: red while the signal
// strengthens, blue while it weakens, green when stable.
package api
