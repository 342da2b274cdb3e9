// Package propagation wraps SGP4 orbital propagation for a single
// satellite: element set in, inertial-frame state vector out.
//
// SGP4 library: github.com/joshuaferrara/go-satellite. Pure Go, no CGO,
// explicit TEME output. Propagate() takes Satellite by value so the
// library's SGP4 error codes are not visible to the caller; failures are
// detected by checking the output for NaN/Inf and unreasonable position
// magnitudes instead.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/transform"
)

// StaleEpochThreshold is the epoch age past which element sets are
// considered unreliable predictors. Exceeding it is a data-quality
// warning, not a failure.
const StaleEpochThreshold = 14 * 24 * time.Hour

// PropagationError reports a numerically degenerate propagation: the model
// ran but produced garbage (NaN, Inf, or an impossible orbit radius).
// Not retryable; the element set itself is the problem. Degenerate orbits
// always fail this way rather than being approximated.
type PropagationError struct {
	NoradID int
	Reason  string
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("sgp4 propagation failed for NORAD %d: %s", e.NoradID, e.Reason)
}

// Propagator computes state vectors for one satellite. Immutable after
// construction and safe for concurrent use; Propagate is a pure function
// of the element set and the instant.
type Propagator struct {
	sat     satellite.Satellite
	noradID int
	epoch   time.Time
}

// NewPropagator initializes the SGP4 model from a parsed element set.
// Malformed lines fail with *tle.ParseError; a model that cannot
// initialize (e.g. eccentricity out of range) fails with
// *PropagationError.
//
// The line guard is kept even though parsed sets are pre-validated,
// because go-satellite calls log.Fatal on malformed input, which would
// kill the process.
func NewPropagator(set *tle.ElementSet) (*Propagator, error) {
	if err := guardLines(set.Line1, set.Line2); err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(set.Line1, set.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, &PropagationError{
			NoradID: set.NoradID,
			Reason:  fmt.Sprintf("sgp4 init code=%d %s", sat.Error, sat.ErrorStr),
		}
	}

	return &Propagator{sat: sat, noradID: set.NoradID, epoch: set.Epoch}, nil
}

// guardLines is a cheap pre-check before handing lines to the library.
func guardLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return &tle.ParseError{Line: 1, Reason: fmt.Sprintf("length %d, expected 69", len(line1))}
	}
	if len(line2) != 69 {
		return &tle.ParseError{Line: 2, Reason: fmt.Sprintf("length %d, expected 69", len(line2))}
	}
	if line1[0] != '1' {
		return &tle.ParseError{Line: 1, Reason: "must start with '1'"}
	}
	if line2[0] != '2' {
		return &tle.ParseError{Line: 2, Reason: "must start with '2'"}
	}
	return nil
}

// NoradID returns the satellite's catalog number.
func (p *Propagator) NoradID() int {
	return p.noradID
}

// EpochStale reports whether the instant is far enough from the element
// set's epoch that accuracy is degraded.
func (p *Propagator) EpochStale(at time.Time) bool {
	d := at.Sub(p.epoch)
	if d < 0 {
		d = -d
	}
	return d > StaleEpochThreshold
}

// Propagate computes the satellite's state vector at the given UTC instant.
// Deterministic: identical inputs produce bit-identical output.
func (p *Propagator) Propagate(t time.Time) (transform.StateTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if isUnphysical(pos.X) || isUnphysical(pos.Y) || isUnphysical(pos.Z) {
		return transform.StateTEME{}, &PropagationError{NoradID: p.noradID, Reason: "output is NaN/Inf"}
	}

	// Position magnitude should sit between ~6200 km (decayed LEO) and
	// ~50000 km (beyond GEO).
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.StateTEME{}, &PropagationError{
			NoradID: p.noradID,
			Reason:  fmt.Sprintf("unreasonable position magnitude %.1f km", mag),
		}
	}

	return transform.StateTEME{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		VX: vel.X, VY: vel.Y, VZ: vel.Z,
	}, nil
}

func isUnphysical(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
