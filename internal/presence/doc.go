// Package presence provides the presence-tracking engine for Gray Logic Presence.
//
// It turns raw Bluetooth Low-Energy advertisements into per-device presence
// state: how often a beacon has been seen, how strong its last signal was,
// roughly how far away it is, whether it is approaching or receding, and
// whether it is currently considered lost.
//
// # Architecture
//
//	┌──────────────┐   ┌──────────────┐   ┌────────────────────────────────┐
//	│ Advertisement│──▶│  Classifier  │──▶│            Registry            │
//	│  (feed pkg)  │   │ (classify.go)│   │  Observe / SweepTimeouts /     │
//	└──────────────┘   └──────────────┘   │  Snapshot / Clear              │
//	                                      │  EstimateMeters, ClassifyTrend │
//	                                      └───────┬───────────────┬────────┘
//	                                              │ events        │ views
//	                                              ▼               ▼
//	                                      ┌──────────────┐ ┌──────────────┐
//	                                      │   EventBus   │ │    Reader    │◀── Sweeper
//	                                      │ (events.go)  │ │ (reader.go)  │
//	                                      └──────────────┘ └──────────────┘
//
// # State machine
//
// A device is absent until its first accepted observation, which creates its
// state and records an initial acquisition. A periodic sweep marks a device
// lost once nothing has been heard from it for its timeout. The next
// observation of a lost device closes the loss episode by recording a
// reacquisition. Clear drops every device.
//
//	absent ──Observe──▶ ACTIVE ──SweepTimeouts (timed out)──▶ LOST
//	                      ▲                                     │
//	                      └──────────────Observe────────────────┘
//
// # Thread Safety
//
// Registry is the only mutable shared state. All four operations are safe
// for concurrent use; writes take an exclusive lock, snapshots take a shared
// lock and copy. Events are handed to the Notifier after the lock is
// released, so slow consumers never hold up the advertisement producer.
//
// # Usage
//
//	devices, err := presence.NewDeviceList(tracked, 5*time.Minute)
//	if err != nil {
//	    return err // duplicate or malformed address
//	}
//	clock := presence.NewSystemClock()
//	registry := presence.NewRegistry(devices, clock)
//	reader := presence.NewReader(registry, devices, clock, time.UTC)
//
//	tag, ok := presence.DefaultClassifier().Classify(adv)
//	if ok {
//	    registry.Observe(presence.Observation{
//	        Address:    adv.Address,
//	        RSSI:       adv.RSSI,
//	        Tag:        tag,
//	        ObservedAt: clock.Monotonic(),
//	    })
//	}
//
//	snap := reader.Snapshot()
package presence
