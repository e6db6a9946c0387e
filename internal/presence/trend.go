package presence

// ClassifyTrend compares the current RSSI sample with the one before it.
//
// Only the immediately previous sample is considered and there is no
// hysteresis band: any increase is Approaching, any decrease is Receding,
// and only exact equality is Stable. Without a previous sample the result
// is Stable.
func ClassifyTrend(previous int16, hasPrevious bool, current int16) Trend {
	switch {
	case !hasPrevious:
		return TrendStable
	case current > previous:
		return TrendApproaching
	case current < previous:
		return TrendReceding
	default:
		return TrendStable
	}
}
