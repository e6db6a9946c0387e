// Package sinks delivers presence events to external systems.
//
// Each sink exposes a Handle method with the presence.Handler signature and
// is subscribed to the presence.EventBus. Sinks run on the bus goroutine,
// never under the registry lock, and log rather than return delivery
// failures.
//
//   - MQTTPublisher: retained per-device state and episode events.
//   - TelemetryRecorder: InfluxDB sighting, episode and ingest points.
package sinks
