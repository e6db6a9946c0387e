package presence

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEventBusDelivers(t *testing.T) {
	bus := NewEventBus(8)

	var (
		mu  sync.Mutex
		got []EventKind
	)
	done := make(chan struct{})
	bus.Subscribe(func(_ context.Context, e Event) {
		mu.Lock()
		got = append(got, e.Kind)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Notify(Event{Kind: EventAcquired})
	bus.Notify(Event{Kind: EventSighting})
	bus.Notify(Event{Kind: EventLost})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []EventKind{EventAcquired, EventSighting, EventLost}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus(2)

	// Not running: the queue fills and further events are dropped.
	for i := 0; i < 5; i++ {
		bus.Notify(Event{Kind: EventSighting})
	}

	stats := bus.Stats()
	if stats.Published != 2 || stats.Dropped != 3 {
		t.Errorf("Stats() = %+v, want 2 published, 3 dropped", stats)
	}
	if stats.Queued != 2 || stats.Capacity != 2 {
		t.Errorf("Stats() queue = %d/%d, want 2/2", stats.Queued, stats.Capacity)
	}
}

func TestEventBusSurvivesHandlerPanic(t *testing.T) {
	bus := NewEventBus(4)
	delivered := make(chan struct{}, 1)

	bus.Subscribe(func(context.Context, Event) { panic("boom") })
	bus.Subscribe(func(context.Context, Event) { delivered <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Notify(Event{Kind: EventLost})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler not called after first panicked")
	}
}

func TestRegistryWithEventBus(t *testing.T) {
	reg, _, clock, _ := testSetup(t)
	bus := NewEventBus(16)
	reg.SetNotifier(bus)

	observe(reg, clock, addrCat, -60)

	if got := bus.Stats().Published; got != 2 {
		t.Errorf("Published = %d, want 2 (acquired + sighting)", got)
	}
	if !EventLost.Episode() || EventSighting.Episode() {
		t.Error("Episode() classification wrong")
	}
}

func TestSweeperMarksLost(t *testing.T) {
	reg, reader, clock, rec := testSetup(t)
	observe(reg, clock, addrDog, -70)
	clock.Advance(2 * time.Minute)

	sweeper := NewSweeper(reader, 5*time.Millisecond)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if v, ok := reg.Lookup(addrDog); ok && v.Status == StatusLost {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("device not marked lost; events = %v", rec.kinds())
		case <-time.After(5 * time.Millisecond):
		}
	}

	sweeper.Stop()
	sweeper.Stop()
}
