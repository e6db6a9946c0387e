package sinks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-presence/internal/feed"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, v, retained})
	return f.err
}

func (f *fakePublisher) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, true})
	return f.err
}

type fakeWriter struct {
	mu     sync.Mutex
	points []string
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, write.PointToLineProtocol(p, time.Nanosecond))
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func view(addr presence.MAC, tracked bool) presence.DeviceView {
	return presence.DeviceView{
		Address: addr,
		Tracked: tracked,
		RSSI:    -60,
		Status:  presence.StatusActive,
	}
}

func TestMQTTPublisher(t *testing.T) {
	tests := []struct {
		name   string
		event  presence.Event
		topics []string
	}{
		{
			name:   "tracked sighting publishes retained state only",
			event:  presence.Event{Kind: presence.EventSighting, At: at, Device: view("e3:ed:26:c7:83:c4", true)},
			topics: []string{"graylogic/presence/device/e3ed26c783c4/state"},
		},
		{
			name:   "anonymous sighting publishes nothing",
			event:  presence.Event{Kind: presence.EventSighting, At: at, Device: view("f1:22:33:44:55:66", false)},
			topics: nil,
		},
		{
			name:   "tracked loss publishes state and event",
			event:  presence.Event{Kind: presence.EventLost, At: at, Device: view("e3:ed:26:c7:83:c4", true)},
			topics: []string{"graylogic/presence/device/e3ed26c783c4/state", "graylogic/presence/event/lost"},
		},
		{
			name:   "anonymous acquisition publishes event",
			event:  presence.Event{Kind: presence.EventAcquired, At: at, Device: view("f1:22:33:44:55:66", false)},
			topics: []string{"graylogic/presence/event/acquired"},
		},
		{
			name:   "clear publishes event",
			event:  presence.Event{Kind: presence.EventCleared, At: at, Removed: 3},
			topics: []string{"graylogic/presence/event/cleared"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			NewMQTTPublisher(pub).Handle(context.Background(), tt.event)

			if len(pub.msgs) != len(tt.topics) {
				t.Fatalf("published %d messages, want %d: %+v", len(pub.msgs), len(tt.topics), pub.msgs)
			}
			for i, want := range tt.topics {
				msg := pub.msgs[i]
				if msg.topic != want {
					t.Errorf("msg[%d].topic = %q, want %q", i, msg.topic, want)
				}
				isState := strings.HasSuffix(want, "/state")
				if msg.retained != isState {
					t.Errorf("msg[%d].retained = %v, want %v", i, msg.retained, isState)
				}
				if isState {
					state, ok := msg.payload.(StatePayload)
					if !ok || !state.Timestamp.Equal(at) {
						t.Errorf("state payload = %#v", msg.payload)
					}
				}
			}
		})
	}
}

func TestMQTTPublisher_ClearRemovesRetainedState(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub)
	ctx := context.Background()

	p.Handle(ctx, presence.Event{Kind: presence.EventSighting, At: at, Device: view("e3:ed:26:c7:83:c4", true)})
	p.Handle(ctx, presence.Event{Kind: presence.EventSighting, At: at, Device: view("d1:a2:b3:c4:d5:e6", true)})
	p.Handle(ctx, presence.Event{Kind: presence.EventSighting, At: at, Device: view("e3:ed:26:c7:83:c4", true)})
	pub.msgs = nil

	p.Handle(ctx, presence.Event{Kind: presence.EventCleared, At: at, Removed: 2})

	want := []published{
		{"graylogic/presence/device/d1a2b3c4d5e6/state", []byte(nil), true},
		{"graylogic/presence/device/e3ed26c783c4/state", []byte(nil), true},
		{"graylogic/presence/event/cleared", nil, false},
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d: %+v", len(pub.msgs), len(want), pub.msgs)
	}
	for i, w := range want[:2] {
		got := pub.msgs[i]
		payload, _ := got.payload.([]byte)
		if got.topic != w.topic || !got.retained || len(payload) != 0 {
			t.Errorf("msg[%d] = %+v, want empty retained payload on %s", i, got, w.topic)
		}
	}
	if got := pub.msgs[2]; got.topic != want[2].topic || got.retained {
		t.Errorf("msg[2] = %+v, want cleared event", got)
	}

	// A second clear has nothing retained left to remove.
	pub.msgs = nil
	p.Handle(ctx, presence.Event{Kind: presence.EventCleared, At: at})
	if len(pub.msgs) != 1 {
		t.Errorf("second clear published %d messages, want 1", len(pub.msgs))
	}
}

func TestMQTTPublisher_ErrorsAreLogged(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	p := NewMQTTPublisher(pub)

	// Must not panic or stop after a failure.
	p.Handle(context.Background(), presence.Event{Kind: presence.EventLost, At: at, Device: view("e3:ed:26:c7:83:c4", true)})
	if len(pub.msgs) != 2 {
		t.Errorf("published %d messages, want 2 attempts", len(pub.msgs))
	}
}

func TestTelemetryRecorder_Handle(t *testing.T) {
	w := &fakeWriter{}
	r := NewTelemetryRecorder(w, nil, 0)
	ctx := context.Background()

	r.Handle(ctx, presence.Event{Kind: presence.EventSighting, At: at, Device: view("e3:ed:26:c7:83:c4", true)})
	r.Handle(ctx, presence.Event{Kind: presence.EventReacquired, At: at, Device: view("e3:ed:26:c7:83:c4", true)})
	r.Handle(ctx, presence.Event{Kind: presence.EventCleared, At: at, Removed: 1})

	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}
	if !strings.HasPrefix(w.points[0], "presence_sighting,") {
		t.Errorf("points[0] = %s", w.points[0])
	}
	if !strings.HasPrefix(w.points[1], "presence_episode,") || !strings.Contains(w.points[1], "kind=reacquired") {
		t.Errorf("points[1] = %s", w.points[1])
	}
}

func TestTelemetryRecorder_Ingest(t *testing.T) {
	w := &fakeWriter{}
	stats := func() feed.Stats { return feed.Stats{Received: 4, Accepted: 2, Rejected: 1, Malformed: 1} }

	r := NewTelemetryRecorder(w, stats, 5*time.Millisecond)
	r.now = func() time.Time { return at }

	r.RecordIngest()
	if w.count() != 1 {
		t.Fatalf("wrote %d points, want 1", w.count())
	}
	if !strings.Contains(w.points[0], "received=4i") {
		t.Errorf("ingest point = %s", w.points[0])
	}

	r.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for w.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("ingest loop did not write points")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	// Nothing written without a stats source.
	quiet := &fakeWriter{}
	NewTelemetryRecorder(quiet, nil, 0).RecordIngest()
	if quiet.count() != 0 {
		t.Errorf("wrote %d points without stats", quiet.count())
	}
}
