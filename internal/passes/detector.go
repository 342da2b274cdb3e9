// Package passes finds horizon-crossing events: the intervals during which
// a satellite sits above an observer's elevation mask, with rise, peak,
// and set times refined well below the sampling step.
package passes

import (
	"context"
	"time"

	"github.com/nickng9/zenith/internal/propagation"
	"github.com/nickng9/zenith/internal/transform"
)

const (
	// coarseStep is the scan sampling interval. A LEO pass lasts several
	// minutes, so 30 s cannot step over one.
	coarseStep = 30 * time.Second

	// crossingToleranceDeg is how close bisection drives the elevation to
	// the mask before a crossing time is accepted.
	crossingToleranceDeg = 0.01

	// MinPassDuration filters out passes too short to be useful
	// observation windows.
	MinPassDuration = 3 * time.Minute

	// DefaultElevationMask is the default minimum elevation in degrees.
	// Atmosphere and terrain make passes below ~10° unobservable, so the
	// mask, not the geometric horizon, defines a pass.
	DefaultElevationMask = 10.0
)

// Pass is one continuous above-mask interval. Immutable once returned.
type Pass struct {
	StartTime       time.Time `json:"start_time"`
	MaxTime         time.Time `json:"max_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	PeakAltitude    float64   `json:"peak_altitude"`
	StartAzimuth    float64   `json:"start_azimuth"`
	AzimuthAtPeak   float64   `json:"azimuth_at_peak"`
	EndAzimuth      float64   `json:"end_azimuth"`
	VisibilityScore float64   `json:"visibility_score"`
}

// Detect scans [t0, t1) and returns every complete pass above maskDeg,
// sorted by start time. A pass whose rise or set falls outside the window
// is discarded rather than reported with missing fields, so an empty
// result is a valid outcome.
//
// The scan aborts on the first propagation error: a corrupt element set
// invalidates every sample, and partial results would be misleading.
// Cancellation via ctx is cooperative and touches no shared state.
func Detect(ctx context.Context, prop *propagation.Propagator, obs transform.Observer, t0, t1 time.Time, maskDeg float64) ([]Pass, error) {
	var passes []Pass

	var (
		inPass    bool
		riseTime  time.Time
		riseAz    float64
		peakEl    float64
		peakTime  time.Time
		prevT     time.Time
		prevEl    float64
		havePrev  bool
		skipFirst bool // above the mask at t0: truncated pass, discard
	)

	for t := t0; t.Before(t1); t = t.Add(coarseStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		la, err := observeAt(prop, obs, t)
		if err != nil {
			return nil, err
		}
		el := la.ElevationDeg

		if !havePrev {
			havePrev = true
			if el >= maskDeg {
				// The window opened mid-pass; its rise is not captured.
				skipFirst = true
			}
			prevT, prevEl = t, el
			continue
		}

		switch {
		case skipFirst:
			if el < maskDeg {
				skipFirst = false
			}

		case !inPass && prevEl < maskDeg && el >= maskDeg:
			rT, rLA, err := refineCrossing(ctx, prop, obs, prevT, t, maskDeg)
			if err != nil {
				return nil, err
			}
			inPass = true
			riseTime = rT
			riseAz = rLA.AzimuthDeg
			peakEl = el
			peakTime = t

		case inPass && el >= maskDeg:
			if el > peakEl {
				peakEl = el
				peakTime = t
			}

		case inPass && el < maskDeg:
			sT, sLA, err := refineCrossing(ctx, prop, obs, prevT, t, maskDeg)
			if err != nil {
				return nil, err
			}
			p, err := closePass(ctx, prop, obs, riseTime, riseAz, peakTime, sT, sLA.AzimuthDeg)
			if err != nil {
				return nil, err
			}
			if p != nil {
				passes = append(passes, *p)
			}
			inPass = false
		}

		prevT, prevEl = t, el
	}

	// Still above the mask when the window closed: the set (and possibly
	// the true peak) was not observed, so the pass is incomplete.
	return passes, nil
}

// closePass refines the culmination, applies the minimum-duration filter,
// and scores the pass. Returns nil for passes that fail the filter.
func closePass(ctx context.Context, prop *propagation.Propagator, obs transform.Observer, rise time.Time, riseAz float64, coarsePeak, set time.Time, setAz float64) (*Pass, error) {
	dur := set.Sub(rise)
	if dur < MinPassDuration {
		return nil, nil
	}

	maxT, maxEl, err := refinePeak(ctx, prop, obs, rise, coarsePeak, set)
	if err != nil {
		return nil, err
	}

	// Rise < peak < set must hold; a degenerate fit falls back to the
	// interval midpoint.
	if !maxT.After(rise) || !maxT.Before(set) {
		maxT = rise.Add(dur / 2)
		la, err := observeAt(prop, obs, maxT)
		if err != nil {
			return nil, err
		}
		maxEl = la.ElevationDeg
	}

	peakLA, err := observeAt(prop, obs, maxT)
	if err != nil {
		return nil, err
	}

	return &Pass{
		StartTime:       rise,
		MaxTime:         maxT,
		EndTime:         set,
		DurationSeconds: dur.Seconds(),
		PeakAltitude:    maxEl,
		StartAzimuth:    riseAz,
		AzimuthAtPeak:   peakLA.AzimuthDeg,
		EndAzimuth:      setAz,
		VisibilityScore: Score(maxEl, dur),
	}, nil
}

// refineCrossing bisects (a, b] for the instant where elevation crosses the
// mask, to within crossingToleranceDeg.
func refineCrossing(ctx context.Context, prop *propagation.Propagator, obs transform.Observer, a, b time.Time, maskDeg float64) (time.Time, transform.LookAngles, error) {
	laA, err := observeAt(prop, obs, a)
	if err != nil {
		return time.Time{}, transform.LookAngles{}, err
	}
	belowAtA := laA.ElevationDeg < maskDeg

	lo, hi := a, b
	best := b
	bestLA, err := observeAt(prop, obs, b)
	if err != nil {
		return time.Time{}, transform.LookAngles{}, err
	}

	for i := 0; i < 40 && hi.Sub(lo) > 100*time.Millisecond; i++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, transform.LookAngles{}, err
		}

		mid := lo.Add(hi.Sub(lo) / 2)
		la, err := observeAt(prop, obs, mid)
		if err != nil {
			return time.Time{}, transform.LookAngles{}, err
		}

		diff := la.ElevationDeg - maskDeg
		if diff < 0 == belowAtA {
			lo = mid
		} else {
			hi = mid
			best, bestLA = mid, la
		}

		if diff >= -crossingToleranceDeg && diff <= crossingToleranceDeg {
			return mid, la, nil
		}
	}
	return best, bestLA, nil
}

// refinePeak improves the culmination estimate with a parabolic fit through
// three samples around the coarse maximum, then a short golden-section
// polish if the fit lands outside the bracket.
func refinePeak(ctx context.Context, prop *propagation.Propagator, obs transform.Observer, rise, coarsePeak, set time.Time) (time.Time, float64, error) {
	h := coarseStep
	a := coarsePeak.Add(-h)
	c := coarsePeak.Add(h)
	if a.Before(rise) {
		a = rise
	}
	if c.After(set) {
		c = set
	}

	elA, err := elevationAt(prop, obs, a)
	if err != nil {
		return time.Time{}, 0, err
	}
	elB, err := elevationAt(prop, obs, coarsePeak)
	if err != nil {
		return time.Time{}, 0, err
	}
	elC, err := elevationAt(prop, obs, c)
	if err != nil {
		return time.Time{}, 0, err
	}

	// Parabola through (a, elA), (b, elB), (c, elC); vertex in seconds
	// relative to b. With equal spacing the usual three-point formula
	// applies; unequal spacing (clamped bracket) still gives a usable
	// estimate via the general form.
	ta := a.Sub(coarsePeak).Seconds()
	tc := c.Sub(coarsePeak).Seconds()
	vertex := 0.0
	num := (elA-elB)*tc*tc - (elC-elB)*ta*ta
	den := 2 * ((elA-elB)*tc - (elC-elB)*ta)
	if den != 0 {
		vertex = num / den
	}

	best := coarsePeak.Add(time.Duration(vertex * float64(time.Second)))
	if best.Before(a) || best.After(c) {
		// Fit ran away; fall back to a golden-section search on [a, c].
		var gErr error
		best, gErr = goldenSection(ctx, prop, obs, a, c)
		if gErr != nil {
			return time.Time{}, 0, gErr
		}
	}

	el, err := elevationAt(prop, obs, best)
	if err != nil {
		return time.Time{}, 0, err
	}

	// The fit should only improve on the coarse sample.
	if elB > el {
		return coarsePeak, elB, nil
	}
	return best, el, nil
}

// goldenSection maximizes elevation on [a, b] down to sub-second width.
func goldenSection(ctx context.Context, prop *propagation.Propagator, obs transform.Observer, a, b time.Time) (time.Time, error) {
	const invPhi = 0.6180339887498949

	lo := a
	hi := b
	for i := 0; i < 40 && hi.Sub(lo) > 500*time.Millisecond; i++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}

		span := hi.Sub(lo)
		x1 := hi.Add(-time.Duration(float64(span) * invPhi))
		x2 := lo.Add(time.Duration(float64(span) * invPhi))

		e1, err := elevationAt(prop, obs, x1)
		if err != nil {
			return time.Time{}, err
		}
		e2, err := elevationAt(prop, obs, x2)
		if err != nil {
			return time.Time{}, err
		}

		if e1 < e2 {
			lo = x1
		} else {
			hi = x2
		}
	}
	return lo.Add(hi.Sub(lo) / 2), nil
}

func observeAt(prop *propagation.Propagator, obs transform.Observer, t time.Time) (transform.LookAngles, error) {
	state, err := prop.Propagate(t)
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.Observe(state, obs, t), nil
}

func elevationAt(prop *propagation.Propagator, obs transform.Observer, t time.Time) (float64, error) {
	la, err := observeAt(prop, obs, t)
	if err != nil {
		return 0, err
	}
	return la.ElevationDeg, nil
}
