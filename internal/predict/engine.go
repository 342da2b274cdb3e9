// Package predict ties the element-set cache, the SGP4 propagator, and the
// event detector into the two operations the API serves: pass prediction
// over a time window and the current sub-satellite point.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/nickng9/zenith/internal/metrics"
	"github.com/nickng9/zenith/internal/passes"
	"github.com/nickng9/zenith/internal/propagation"
	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/transform"
)

// Subpoint is the satellite's ground position at one instant.
type Subpoint struct {
	SatelliteID string    `json:"satellite_id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	AltitudeKm  float64   `json:"alt"`
	Timestamp   time.Time `json:"timestamp"`
}

// SatellitePasses holds one satellite's prediction result within a
// multi-satellite request.
type SatellitePasses struct {
	SatelliteID string        `json:"satellite_id"`
	Passes      []passes.Pass `json:"passes"`
	Error       string        `json:"error,omitempty"`
}

// Engine runs predictions against cached element sets. Stateless apart
// from the cache, so independent requests are safe to run in parallel.
type Engine struct {
	cache   *tle.Cache
	sources []tle.Source
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an engine over the given cache and satellite sources.
// now is injectable for tests; nil means time.Now.
func NewEngine(cache *tle.Cache, sources []tle.Source, logger *slog.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{cache: cache, sources: sources, logger: logger, now: now}
}

// Satellites returns the configured satellite sources.
func (e *Engine) Satellites() []tle.Source {
	return e.sources
}

// PredictPasses finds every complete pass of the satellite over the
// observer within [t0, t1), sorted by start time. maskDeg <= 0 selects the
// default elevation mask.
func (e *Engine) PredictPasses(ctx context.Context, satelliteID string, obs transform.Observer, t0, t1 time.Time, maskDeg float64) ([]passes.Pass, error) {
	if !t1.After(t0) {
		return nil, fmt.Errorf("window end %s not after start %s", t1.Format(time.RFC3339), t0.Format(time.RFC3339))
	}
	if maskDeg <= 0 {
		maskDeg = passes.DefaultElevationMask
	}

	prop, set, err := e.propagator(ctx, satelliteID)
	if err != nil {
		return nil, err
	}

	if prop.EpochStale(t0) {
		e.logger.Warn("element set epoch is stale, accuracy degraded",
			"satellite_id", satelliteID,
			"epoch", set.Epoch.Format(time.RFC3339),
		)
	}

	start := time.Now()
	result, err := passes.Detect(ctx, prop, obs, t0, t1, maskDeg)
	if err != nil {
		return nil, err
	}
	metrics.RecordPrediction(time.Since(start), len(result))

	e.logger.Debug("prediction scan complete",
		"satellite_id", satelliteID,
		"passes", len(result),
		"window_hours", t1.Sub(t0).Hours(),
		"mask_deg", maskDeg,
	)
	return result, nil
}

// PredictAll runs PredictPasses for every configured satellite in
// parallel, bounded by a semaphore. Per-satellite failures are reported in
// the result rather than aborting the whole request.
func (e *Engine) PredictAll(ctx context.Context, obs transform.Observer, t0, t1 time.Time, maskDeg float64) []SatellitePasses {
	results := make([]SatellitePasses, len(e.sources))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, src := range e.sources {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SatellitePasses{SatelliteID: id, Error: "cancelled"}
				return
			}

			ps, err := e.PredictPasses(ctx, id, obs, t0, t1, maskDeg)
			if err != nil {
				results[idx] = SatellitePasses{SatelliteID: id, Error: err.Error()}
				return
			}
			results[idx] = SatellitePasses{SatelliteID: id, Passes: ps}
		}(i, src.SatelliteID)
	}

	wg.Wait()
	return results
}

// Subpoint returns the satellite's ground position at the given instant
// (zero means now): propagate, rotate to the Earth-fixed frame, convert to
// geodetic. No event detection involved.
func (e *Engine) Subpoint(ctx context.Context, satelliteID string, at time.Time) (Subpoint, error) {
	if at.IsZero() {
		at = e.now()
	}
	at = at.UTC()

	prop, set, err := e.propagator(ctx, satelliteID)
	if err != nil {
		return Subpoint{}, err
	}

	state, err := prop.Propagate(at)
	if err != nil {
		return Subpoint{}, err
	}

	ecef := transform.TEMEToECEF(state, at)
	geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)

	return Subpoint{
		SatelliteID: satelliteID,
		Name:        set.Name,
		Latitude:    geo.LatDeg,
		Longitude:   geo.LonDeg,
		AltitudeKm:  geo.AltM / 1000.0,
		Timestamp:   at,
	}, nil
}

// RefreshAll force-refreshes every configured satellite's element set.
// Used by the scheduled refresh job and the refresh endpoint. Returns the
// number of sets updated and the first error encountered.
func (e *Engine) RefreshAll(ctx context.Context) (int, error) {
	var updated int
	var firstErr error
	for _, src := range e.sources {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		set, err := e.cache.ForceRefresh(ctx, src.SatelliteID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.SetTLEAge(src.SatelliteID, set.Age(e.now()).Seconds())
		updated++
	}
	return updated, firstErr
}

// ElementSet returns the cached element set for the satellite id without
// triggering a refresh, or nil.
func (e *Engine) ElementSet(satelliteID string) *tle.ElementSet {
	return e.cache.Peek(satelliteID)
}

func (e *Engine) propagator(ctx context.Context, satelliteID string) (*propagation.Propagator, *tle.ElementSet, error) {
	set, err := e.cache.Get(ctx, satelliteID)
	if err != nil {
		return nil, nil, err
	}
	metrics.SetTLEAge(satelliteID, set.Age(e.now()).Seconds())

	prop, err := propagation.NewPropagator(set)
	if err != nil {
		return nil, nil, err
	}
	return prop, set, nil
}
