// Zenith-diag predicts passes offline from a TLE file, without the daemon
// or any network access. Useful for sanity-checking element data and the
// detection pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nickng9/zenith/internal/passes"
	"github.com/nickng9/zenith/internal/propagation"
	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/transform"
)

func main() {
	var (
		tlePath = pflag.StringP("tle", "t", "", "Path to a 3-line TLE file (name, line1, line2)")
		lat     = pflag.Float64("lat", 39.7392, "Observer latitude (degrees)")
		lon     = pflag.Float64("lon", -104.9903, "Observer longitude (degrees)")
		alt     = pflag.Float64("alt", 0, "Observer altitude (meters)")
		hours   = pflag.Int("hours", 24, "Prediction window (hours)")
		mask    = pflag.Float64("mask", passes.DefaultElevationMask, "Elevation mask (degrees)")
	)
	pflag.Parse()

	if *tlePath == "" {
		fmt.Fprintln(os.Stderr, "usage: zenith-diag --tle <file> [--lat --lon --alt --hours --mask]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*tlePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR reading TLE file:", err)
		os.Exit(1)
	}

	set, err := tle.ParseFeed("diag", string(raw))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR parsing TLE:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s (NORAD %d) epoch %v\n", set.Name, set.NoradID, set.Epoch.Format(time.RFC3339))

	prop, err := propagation.NewPropagator(set)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR initializing propagator:", err)
		os.Exit(1)
	}

	obs := transform.NewObserver(*lat, *lon, *alt)
	t0 := time.Now().UTC()
	t1 := t0.Add(time.Duration(*hours) * time.Hour)

	if prop.EpochStale(t0) {
		fmt.Println("WARNING: element set epoch is more than two weeks old; accuracy degraded")
	}

	result, err := passes.Detect(context.Background(), prop, obs, t0, t1, *mask)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR during scan:", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d passes over (%.4f, %.4f) in the next %dh (mask %.1f°)\n",
		len(result), *lat, *lon, *hours, *mask)
	for i, p := range result {
		fmt.Printf("  pass %d: rise=%s peak=%.1f° at %s set=%s dur=%.0fs score=%.2f\n",
			i+1,
			p.StartTime.Format(time.RFC3339),
			p.PeakAltitude,
			p.MaxTime.Format(time.RFC3339),
			p.EndTime.Format(time.RFC3339),
			p.DurationSeconds,
			p.VisibilityScore,
		)
	}
}
