package presence

import "math"

// Distance model constants. Display thresholds downstream depend on the shape
// of this curve, so the constants are fixed rather than configurable.
const (
	// TxPowerAt1m is the calibrated RSSI, in dBm, of a beacon one metre away.
	TxPowerAt1m = -59

	// UnknownDistance is returned when the RSSI reading is invalid (zero).
	// Renderers must show it as "unknown", never as zero metres.
	UnknownDistance float32 = -1.0

	farCoefficient = 0.89976
	farExponent    = 7.7095
	farOffset      = 0.111
	nearExponent   = 10
)

// EstimateMeters converts an RSSI reading into an approximate distance in metres.
//
// The curve is a calibrated heuristic, monotonic in |rssi| and discontinuous
// at ratio 1.0 (rssi == TxPowerAt1m), which falls into the far branch:
//
//	ratio = rssi / TxPowerAt1m
//	ratio <  1.0: ratio^10
//	ratio >= 1.0: 0.89976 * ratio^7.7095 + 0.111
//
// An RSSI of exactly zero yields UnknownDistance.
func EstimateMeters(rssi int16) float32 {
	if rssi == 0 {
		return UnknownDistance
	}

	ratio := float64(rssi) / TxPowerAt1m
	if ratio < 1.0 {
		return float32(math.Pow(ratio, nearExponent))
	}
	return float32(farCoefficient*math.Pow(ratio, farExponent) + farOffset)
}

// DistanceKnown reports whether d is a real estimate rather than UnknownDistance.
func DistanceKnown(d float32) bool {
	return d != UnknownDistance
}
