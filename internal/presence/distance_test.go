package presence

import (
	"math"
	"testing"
)

func TestEstimateMeters(t *testing.T) {
	tests := []struct {
		name string
		rssi int16
		want float64
	}{
		{"boundary uses far branch", -59, 1.01076},
		{"just past one metre", -60, 1.13524},
		{"near branch", -30, 0.0011553},
		{"just inside one metre", -58, 0.84287},
		{"far away", -90, 0.89976*math.Pow(90.0/59.0, 7.7095) + 0.111},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float64(EstimateMeters(tt.rssi))
			if math.Abs(got-tt.want) > 1e-4*math.Max(1, tt.want) {
				t.Errorf("EstimateMeters(%d) = %v, want %v", tt.rssi, got, tt.want)
			}
		})
	}
}

func TestEstimateMetersSentinel(t *testing.T) {
	if got := EstimateMeters(0); got != -1.0 {
		t.Errorf("EstimateMeters(0) = %v, want exactly -1.0", got)
	}
	if DistanceKnown(EstimateMeters(0)) {
		t.Error("DistanceKnown(EstimateMeters(0)) = true, want false")
	}
	if !DistanceKnown(EstimateMeters(-70)) {
		t.Error("DistanceKnown(EstimateMeters(-70)) = false, want true")
	}
}

func TestEstimateMetersMonotonic(t *testing.T) {
	prev := EstimateMeters(-1)
	for rssi := int16(-2); rssi >= -127; rssi-- {
		got := EstimateMeters(rssi)
		if got < prev {
			t.Fatalf("EstimateMeters(%d) = %v < EstimateMeters(%d) = %v", rssi, got, rssi+1, prev)
		}
		prev = got
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name        string
		previous    int16
		hasPrevious bool
		current     int16
		want        Trend
	}{
		{"first sample", 0, false, -70, TrendStable},
		{"first sample ignores previous value", -90, false, -40, TrendStable},
		{"stronger", -60, true, -55, TrendApproaching},
		{"weaker", -55, true, -60, TrendReceding},
		{"equal", -60, true, -60, TrendStable},
		{"one dB stronger", -61, true, -60, TrendApproaching},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTrend(tt.previous, tt.hasPrevious, tt.current); got != tt.want {
				t.Errorf("ClassifyTrend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrendGlyph(t *testing.T) {
	for trend, want := range map[Trend]string{
		TrendApproaching: "+",
		TrendReceding:    "-",
		TrendStable:      " ",
	} {
		if got := trend.Glyph(); got != want {
			t.Errorf("%v.Glyph() = %q, want %q", trend, got, want)
		}
	}
}
