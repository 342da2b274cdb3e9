package passes

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/nickng9/zenith/internal/propagation"
	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/transform"
)

// Real ISS element set from CelesTrak, epoch 2025-05-18T08:53:29Z.
const (
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

// Synthetic near-equatorial satellite (1° inclination, 15.5 rev/day,
// epoch 2026-08-28T12:00:00Z). From an equatorial observer it produces a
// near-overhead pass roughly every 99 minutes.
const (
	eqLine1 = "1 99999U 26001A   26240.50000000  .00000000  00000+0  00000+0 0  9991"
	eqLine2 = "2 99999   1.0000   0.0000 0001000   0.0000   0.0000 15.50000000  1001"
)

func newPropagator(t *testing.T, id, line1, line2 string) *propagation.Propagator {
	t.Helper()
	set, err := tle.ParseElementSet(id, id, line1, line2)
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	p, err := propagation.NewPropagator(set)
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}
	return p
}

// checkPassInvariants asserts the structural properties every returned
// pass must satisfy.
func checkPassInvariants(t *testing.T, p Pass, maskDeg float64) {
	t.Helper()

	if !p.StartTime.Before(p.MaxTime) || !p.MaxTime.Before(p.EndTime) {
		t.Errorf("time ordering violated: rise=%v peak=%v set=%v", p.StartTime, p.MaxTime, p.EndTime)
	}
	wantDur := p.EndTime.Sub(p.StartTime).Seconds()
	if d := p.DurationSeconds - wantDur; d < -0.5 || d > 0.5 {
		t.Errorf("DurationSeconds = %.1f, want %.1f", p.DurationSeconds, wantDur)
	}
	if p.DurationSeconds < MinPassDuration.Seconds() {
		t.Errorf("pass shorter than minimum: %.1f s", p.DurationSeconds)
	}
	if p.PeakAltitude < maskDeg || p.PeakAltitude > 90.0 {
		t.Errorf("PeakAltitude = %.2f, want within [%.1f, 90]", p.PeakAltitude, maskDeg)
	}
	for _, az := range []float64{p.StartAzimuth, p.AzimuthAtPeak, p.EndAzimuth} {
		if az < 0 || az >= 360 {
			t.Errorf("azimuth %.2f outside [0, 360)", az)
		}
	}
	if p.VisibilityScore < 0 || p.VisibilityScore > 1 {
		t.Errorf("VisibilityScore = %.2f outside [0, 1]", p.VisibilityScore)
	}
}

func TestDetectISSOverNewYork(t *testing.T) {
	prop := newPropagator(t, "ISS", issLine1, issLine2)
	obs := transform.NewObserver(40.7128, -74.006, 10)

	t0 := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	passes, err := Detect(context.Background(), prop, obs, t0, t1, DefaultElevationMask)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(passes) == 0 {
		t.Fatal("expected at least one pass in 24 hours")
	}

	for i, p := range passes {
		checkPassInvariants(t, p, DefaultElevationMask)

		if p.StartTime.Before(t0) || p.EndTime.After(t1) {
			t.Errorf("pass %d extends outside the window: %v - %v", i, p.StartTime, p.EndTime)
		}
		if i > 0 {
			prev := passes[i-1]
			if !prev.EndTime.Before(p.StartTime) {
				t.Errorf("passes %d and %d overlap or are unsorted", i-1, i)
			}
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	prop := newPropagator(t, "ISS", issLine1, issLine2)
	obs := transform.NewObserver(40.7128, -74.006, 10)

	t0 := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(12 * time.Hour)

	a, err := Detect(context.Background(), prop, obs, t0, t1, DefaultElevationMask)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	b, err := Detect(context.Background(), prop, obs, t0, t1, DefaultElevationMask)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different pass lists")
	}
}

// TestDetectMaskMonotonic raises the elevation mask and requires that no
// new passes appear and no pass gets longer.
func TestDetectMaskMonotonic(t *testing.T) {
	prop := newPropagator(t, "ISS", issLine1, issLine2)
	obs := transform.NewObserver(40.7128, -74.006, 10)

	t0 := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	low, err := Detect(context.Background(), prop, obs, t0, t1, 10.0)
	if err != nil {
		t.Fatalf("Detect mask=10: %v", err)
	}
	high, err := Detect(context.Background(), prop, obs, t0, t1, 30.0)
	if err != nil {
		t.Fatalf("Detect mask=30: %v", err)
	}

	if len(high) > len(low) {
		t.Errorf("raising the mask added passes: %d at 10°, %d at 30°", len(low), len(high))
	}

	maxDur := func(ps []Pass) float64 {
		m := 0.0
		for _, p := range ps {
			if p.DurationSeconds > m {
				m = p.DurationSeconds
			}
		}
		return m
	}
	if maxDur(high) > maxDur(low)+1 {
		t.Errorf("raising the mask lengthened a pass: max %.1fs at 10°, %.1fs at 30°", maxDur(low), maxDur(high))
	}

	// Every pass at the higher mask must lie inside some pass at the
	// lower mask.
	for _, hp := range high {
		contained := false
		for _, lp := range low {
			if !hp.StartTime.Before(lp.StartTime) && !hp.EndTime.After(lp.EndTime) {
				contained = true
				break
			}
		}
		if !contained {
			t.Errorf("pass at 30° (%v) not contained in any pass at 10°", hp.StartTime)
		}
	}
}

// TestDetectEquatorialScenario uses a 1°-inclination satellite and an
// equatorial observer: near-overhead passes recur every relative orbit,
// each a few minutes long.
func TestDetectEquatorialScenario(t *testing.T) {
	prop := newPropagator(t, "EQSAT", eqLine1, eqLine2)
	obs := transform.NewObserver(0, 0, 0)

	t0 := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	passes, err := Detect(context.Background(), prop, obs, t0, t1, 10.0)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	// 14.5 relative orbits per day, minus window truncation at the edges.
	if len(passes) < 4 || len(passes) > 30 {
		t.Fatalf("pass count = %d, want several per day", len(passes))
	}

	for i, p := range passes {
		checkPassInvariants(t, p, 10.0)

		if p.DurationSeconds > 15*60 {
			t.Errorf("pass %d lasts %.0f s, too long for this orbit", i, p.DurationSeconds)
		}
		// The satellite tracks within ~1° of the equator, so it passes
		// nearly overhead.
		if p.PeakAltitude < 45 {
			t.Errorf("pass %d peak altitude = %.1f°, want near overhead", i, p.PeakAltitude)
		}
	}
}

// TestDetectTruncatedAtWindowEnd ends the window at a known culmination;
// the pass that is still in progress must be discarded.
func TestDetectTruncatedAtWindowEnd(t *testing.T) {
	prop := newPropagator(t, "EQSAT", eqLine1, eqLine2)
	obs := transform.NewObserver(0, 0, 0)

	t0 := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	full, err := Detect(context.Background(), prop, obs, t0, t0.Add(24*time.Hour), 10.0)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(full) == 0 {
		t.Fatal("need at least one pass for the truncation test")
	}
	first := full[0]

	truncated, err := Detect(context.Background(), prop, obs, t0, first.MaxTime, 10.0)
	if err != nil {
		t.Fatalf("Detect truncated: %v", err)
	}
	for _, p := range truncated {
		if !p.EndTime.Before(first.StartTime) {
			t.Errorf("pass open at window end should be discarded, got %v - %v", p.StartTime, p.EndTime)
		}
	}
}

// TestDetectTruncatedAtWindowStart begins the window mid-pass; that pass
// has no observable rise and must be discarded.
func TestDetectTruncatedAtWindowStart(t *testing.T) {
	prop := newPropagator(t, "EQSAT", eqLine1, eqLine2)
	obs := transform.NewObserver(0, 0, 0)

	t0 := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	full, err := Detect(context.Background(), prop, obs, t0, t0.Add(24*time.Hour), 10.0)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(full) == 0 {
		t.Fatal("need at least one pass for the truncation test")
	}
	first := full[0]

	mid, err := Detect(context.Background(), prop, obs, first.MaxTime, first.MaxTime.Add(6*time.Hour), 10.0)
	if err != nil {
		t.Fatalf("Detect from mid-pass: %v", err)
	}
	for _, p := range mid {
		if p.StartTime.Before(first.EndTime) {
			t.Errorf("truncated leading pass should be discarded, got pass starting %v before %v", p.StartTime, first.EndTime)
		}
	}
}

func TestDetectEmptyWindow(t *testing.T) {
	prop := newPropagator(t, "ISS", issLine1, issLine2)
	obs := transform.NewObserver(40.7128, -74.006, 10)

	t0 := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	passes, err := Detect(context.Background(), prop, obs, t0, t0, DefaultElevationMask)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(passes) != 0 {
		t.Errorf("zero-length window returned %d passes", len(passes))
	}
}

func TestDetectCancellation(t *testing.T) {
	prop := newPropagator(t, "ISS", issLine1, issLine2)
	obs := transform.NewObserver(40.7128, -74.006, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t0 := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	_, err := Detect(ctx, prop, obs, t0, t0.Add(24*time.Hour), DefaultElevationMask)
	if err != context.Canceled {
		t.Errorf("Detect with canceled ctx = %v, want context.Canceled", err)
	}
}
