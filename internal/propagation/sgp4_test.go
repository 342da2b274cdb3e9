package propagation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nickng9/zenith/internal/tle"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func issPropagator(t *testing.T) *Propagator {
	t.Helper()
	set, err := tle.ParseElementSet("ISS", issName, issLine1, issLine2)
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	p, err := NewPropagator(set)
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}
	return p
}

func TestNewPropagatorMalformedLines(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"short line 1", issLine1[:40], issLine2},
		{"short line 2", issLine1, issLine2[:40]},
		{"swapped lines", issLine2, issLine1},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &tle.ElementSet{
				SatelliteID: "BAD",
				NoradID:     1,
				Line1:       tt.line1,
				Line2:       tt.line2,
			}
			_, err := NewPropagator(set)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var pe *tle.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error type = %T, want *tle.ParseError", err)
			}
		})
	}
}

// TestPropagateNearEpoch propagates the ISS at its element epoch and checks
// the state vector is physically sensible for a ~420 km orbit.
func TestPropagateNearEpoch(t *testing.T) {
	p := issPropagator(t)
	at := time.Date(2025, 5, 18, 8, 53, 30, 0, time.UTC) // fixture epoch

	s, err := p.Propagate(at)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	rMag := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	if rMag < 6700 || rMag > 6850 {
		t.Errorf("position magnitude = %.1f km, want ISS-like 6700-6850", rMag)
	}

	vMag := math.Sqrt(s.VX*s.VX + s.VY*s.VY + s.VZ*s.VZ)
	if vMag < 7.4 || vMag > 7.9 {
		t.Errorf("velocity magnitude = %.3f km/s, want ISS-like 7.4-7.9", vMag)
	}

	// Inclination 51.6° bounds the Z excursion.
	if math.Abs(s.Z) > rMag*math.Sin(52.0*math.Pi/180.0)+1 {
		t.Errorf("Z = %.1f km exceeds inclination bound", s.Z)
	}
}

// TestPropagateDeterministic requires bit-identical output for identical
// inputs, including across separately constructed propagators.
func TestPropagateDeterministic(t *testing.T) {
	at := time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)

	a, err := issPropagator(t).Propagate(at)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	b, err := issPropagator(t).Propagate(at)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	if a != b {
		t.Errorf("propagation not deterministic:\n  a = %+v\n  b = %+v", a, b)
	}
}

func TestPropagateAcrossDays(t *testing.T) {
	p := issPropagator(t)
	start := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)

	// Orbit radius should stay ISS-like over several days of propagation.
	for d := 0; d < 7; d++ {
		at := start.AddDate(0, 0, d)
		s, err := p.Propagate(at)
		if err != nil {
			t.Fatalf("Propagate day %d: %v", d, err)
		}
		rMag := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
		if rMag < 6650 || rMag > 6900 {
			t.Errorf("day %d: position magnitude = %.1f km out of range", d, rMag)
		}
	}
}

func TestEpochStale(t *testing.T) {
	p := issPropagator(t)
	epoch := time.Date(2025, 5, 18, 8, 53, 29, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"at epoch", epoch, false},
		{"one day later", epoch.AddDate(0, 0, 1), false},
		{"thirteen days later", epoch.AddDate(0, 0, 13), false},
		{"fifteen days later", epoch.AddDate(0, 0, 15), true},
		{"fifteen days earlier", epoch.AddDate(0, 0, -15), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.EpochStale(tt.at); got != tt.want {
				t.Errorf("EpochStale(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNoradID(t *testing.T) {
	if got := issPropagator(t).NoradID(); got != 25544 {
		t.Errorf("NoradID = %d, want 25544", got)
	}
}
