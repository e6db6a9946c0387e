// Package influxdb provides InfluxDB connectivity for Gray Logic Presence.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing, and health monitoring.
//
// # Measurements
//
//   - presence_sighting: rssi, distance_m, detection_count per accepted advertisement
//   - presence_episode: acquired, lost and reacquired transitions
//   - presence_ingest: feed counters (received, accepted, rejected, malformed)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSighting(view, time.Now())
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
