package presence

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestReaderSnapshotOrdering(t *testing.T) {
	reg, reader, clock, _ := testSetup(t)

	// Observed in reverse configuration order, strays out of address order.
	observe(reg, clock, addrStray, -80)
	observe(reg, clock, "11:22:33:44:55:66", -85)
	observe(reg, clock, addrDog, -70)
	observe(reg, clock, addrCat, -60)

	snap := reader.Snapshot()

	gotTracked := make([]MAC, 0, len(snap.Tracked))
	for _, v := range snap.Tracked {
		gotTracked = append(gotTracked, v.Address)
	}
	if diff := cmp.Diff([]MAC{addrCat, addrDog}, gotTracked); diff != "" {
		t.Errorf("tracked order mismatch (-want +got):\n%s", diff)
	}

	gotOthers := make([]MAC, 0, len(snap.Others))
	for _, v := range snap.Others {
		gotOthers = append(gotOthers, v.Address)
	}
	if diff := cmp.Diff([]MAC{"11:22:33:44:55:66", addrStray}, gotOthers); diff != "" {
		t.Errorf("others order mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderSnapshotOnlySeenTrackedDevices(t *testing.T) {
	reg, reader, clock, _ := testSetup(t)

	observe(reg, clock, addrDog, -70)

	snap := reader.Snapshot()
	if len(snap.Tracked) != 1 || snap.Tracked[0].Address != addrDog {
		t.Errorf("Tracked = %+v, want only the dog", snap.Tracked)
	}
	if snap.Others == nil {
		t.Error("Others is nil, want empty slice")
	}
}

func TestReaderSnapshotView(t *testing.T) {
	reg, reader, clock, _ := testSetup(t)
	start := clock.Now()

	reg.Observe(Observation{
		Address:     addrCat,
		RSSI:        -60,
		Tag:         TagAppleFindMy,
		ObservedAt:  clock.Monotonic(),
		LocalName:   "Ziggy tag",
		ServiceUUID: "fd44",
	})
	clock.Advance(3 * time.Second)

	got, err := reader.Device(addrCat)
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}

	want := DeviceView{
		Address:          addrCat,
		Suffix:           "83:c4",
		Tracked:          true,
		DisplayName:      "Ziggy",
		WebName:          "ziggy",
		Tag:              TagAppleFindMy,
		DetectionCount:   1,
		RSSI:             -60,
		DistanceMeters:   EstimateMeters(-60),
		DistanceKnown:    true,
		Trend:            TrendStable,
		TrendGlyph:       " ",
		Status:           StatusActive,
		LastSeenAgeMs:    3000,
		ReacquiredAt:     &start,
		ReacquiredAtText: "2026-03-01 12:00:00 UTC",
		LocalName:        "Ziggy tag",
		ServiceUUID:      "fd44",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Device() mismatch (-want +got):\n%s", diff)
	}
	if got.Summary() != "83:c4 -60 dBm 1.1 m  " {
		t.Errorf("Summary() = %q", got.Summary())
	}
}

func TestReaderTimeZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	reg, _, clock, _ := testSetup(t)
	reader := NewReader(reg, reg.devices, clock, loc)

	observe(reg, clock, addrDog, -70)
	clock.Advance(2 * time.Minute)
	reader.Sweep()

	v, err := reader.Device(addrDog)
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if v.ReacquiredAtText != "2026-03-01 13:00:00 CET" {
		t.Errorf("ReacquiredAtText = %q, want CET rendering", v.ReacquiredAtText)
	}
	if v.LostAtText != "2026-03-01 13:02:00 CET" {
		t.Errorf("LostAtText = %q, want CET rendering", v.LostAtText)
	}
}

func TestReaderDeviceNotFound(t *testing.T) {
	_, reader, _, _ := testSetup(t)

	_, err := reader.Device(addrCat)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Device() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestReaderSweepIdempotent(t *testing.T) {
	reg, reader, clock, _ := testSetup(t)
	observe(reg, clock, addrDog, -70)
	observe(reg, clock, addrStray, -75)
	clock.Advance(90 * time.Second)

	reader.Sweep()
	first := reader.Snapshot()
	if n := reader.Sweep(); n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
	second := reader.Snapshot()

	ignore := cmpopts.IgnoreFields(Snapshot{}, "TakenAt")
	if diff := cmp.Diff(first, second, ignore); diff != "" {
		t.Errorf("state changed on repeated sweep (-first +second):\n%s", diff)
	}
}

func TestDeviceViewSummaryUnknownDistance(t *testing.T) {
	v := DeviceView{Suffix: "ee:ff", RSSI: 0, DistanceMeters: UnknownDistance, TrendGlyph: "-"}
	if got := v.Summary(); got != "ee:ff 0 dBm ? m -" {
		t.Errorf("Summary() = %q", got)
	}
}
