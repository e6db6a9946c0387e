package presence

import (
	"fmt"
	"testing"
	"time"
)

// setupBenchRegistry creates a registry pre-populated with n anonymous devices.
func setupBenchRegistry(b *testing.B, n int) (*Registry, *fakeClock) {
	b.Helper()

	devices, err := NewDeviceList(nil, 5*time.Minute)
	if err != nil {
		b.Fatalf("NewDeviceList() error = %v", err)
	}
	clock := newFakeClock()
	reg := NewRegistry(devices, clock)
	for i := 0; i < n; i++ {
		reg.Observe(Observation{
			Address: MAC(fmt.Sprintf("aa:bb:cc:dd:%02x:%02x", i/256, i%256)),
			RSSI:    int16(-40 - i%50),
			Tag:     TagAppleFindMy,
		})
	}
	return reg, clock
}

func BenchmarkRegistryObserve(b *testing.B) {
	reg, clock := setupBenchRegistry(b, 100)
	obs := Observation{Address: "aa:bb:cc:dd:00:32", RSSI: -61, Tag: TagAppleFindMy}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		obs.ObservedAt = clock.Monotonic()
		reg.Observe(obs)
	}
}

func BenchmarkRegistrySnapshot(b *testing.B) {
	reg, _ := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Snapshot()
	}
}

func BenchmarkRegistrySweep(b *testing.B) {
	reg, clock := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.SweepTimeouts(clock.Monotonic(), nil)
	}
}

func BenchmarkClassify(b *testing.B) {
	c := DefaultClassifier()
	adv := Advertisement{Address: addrCat, RSSI: -60, ManufacturerData: []byte{0x4C, 0x00, 0x12, 0x19, 0x10}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(adv)
	}
}
