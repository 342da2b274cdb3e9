package passes

import (
	"math"
	"time"
)

// ReferenceDuration is the pass length that earns the full duration factor.
const ReferenceDuration = 10 * time.Minute

// Score rates a pass for viewing quality on [0, 1]: peak altitude scaled
// against 90° overhead, times duration scaled against the reference,
// capped at 1 and rounded to two decimals. Monotonic non-decreasing in
// both inputs, and identical for every satellite.
//
// Only passes at least MinPassDuration long are scored; the detector
// discards shorter ones before calling.
func Score(peakAltitudeDeg float64, duration time.Duration) float64 {
	if peakAltitudeDeg < 0 {
		peakAltitudeDeg = 0
	}

	altFactor := peakAltitudeDeg / 90.0
	durFactor := duration.Minutes() / ReferenceDuration.Minutes()

	score := altFactor * durFactor
	if score > 1.0 {
		score = 1.0
	}
	return math.Round(score*100) / 100
}
