package tle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nickng9/zenith/internal/metrics"
)

// DefaultMaxAge is the freshness horizon: a stored element set older than
// this triggers a refresh before it is handed to the propagator.
const DefaultMaxAge = 24 * time.Hour

// DefaultFetchTimeout bounds a single refresh attempt.
const DefaultFetchTimeout = 30 * time.Second

// Cache owns the freshness policy for element sets. Reads are served from
// memory; a stale or missing set triggers a refresh through the injected
// Fetcher before Get returns. Concurrent Gets for the same satellite id
// coalesce into a single in-flight refresh, and refreshes for different ids
// never block each other.
//
// The clock is injected so freshness is testable without real time passing.
type Cache struct {
	fetcher Fetcher
	store   *Store // optional persistence; nil disables
	logger  *slog.Logger
	now     func() time.Time
	maxAge  time.Duration
	timeout time.Duration

	mu       sync.Mutex
	entries  map[string]*ElementSet
	inflight map[string]*refreshCall
}

// refreshCall is one in-flight refresh; joiners wait on done.
type refreshCall struct {
	done chan struct{}
	set  *ElementSet
	err  error
}

// CacheOptions configures a Cache. Zero values fall back to defaults.
type CacheOptions struct {
	Store        *Store
	Now          func() time.Time
	MaxAge       time.Duration
	FetchTimeout time.Duration
}

// NewCache creates a cache backed by the given fetcher.
func NewCache(fetcher Fetcher, logger *slog.Logger, opts CacheOptions) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		fetcher:  fetcher,
		store:    opts.Store,
		logger:   logger,
		now:      opts.Now,
		maxAge:   opts.MaxAge,
		timeout:  opts.FetchTimeout,
		entries:  make(map[string]*ElementSet),
		inflight: make(map[string]*refreshCall),
	}
}

// Seed loads previously stored element sets into memory, typically at
// startup from Store.LoadAll. Freshness still applies: a seeded set past
// the max age is refreshed on first use.
func (c *Cache) Seed(sets []*ElementSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range sets {
		c.entries[s.SatelliteID] = s
	}
}

// Get returns a fresh element set for the satellite id, refreshing first
// if the stored one is stale or absent. A stale set is served (with a
// warning) when the refresh fails; with nothing stored at all the refresh
// error surfaces as ErrNotFound or ErrRefreshTimeout.
func (c *Cache) Get(ctx context.Context, satelliteID string) (*ElementSet, error) {
	return c.get(ctx, satelliteID, false)
}

// ForceRefresh fetches regardless of the stored set's age. Used by the
// refresh endpoint and the background refresh job.
func (c *Cache) ForceRefresh(ctx context.Context, satelliteID string) (*ElementSet, error) {
	return c.get(ctx, satelliteID, true)
}

// Peek returns the currently stored set without triggering a refresh,
// or nil if nothing is stored.
func (c *Cache) Peek(satelliteID string) *ElementSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[satelliteID]
}

func (c *Cache) get(ctx context.Context, satelliteID string, force bool) (*ElementSet, error) {
	c.mu.Lock()

	stale := c.entries[satelliteID]
	if !force && stale != nil && stale.Age(c.now()) < c.maxAge {
		c.mu.Unlock()
		return stale, nil
	}

	// Join an in-flight refresh for this id instead of starting another.
	if call, ok := c.inflight[satelliteID]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return c.resolve(satelliteID, call.set, call.err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight[satelliteID] = call
	c.mu.Unlock()

	set, err := c.refresh(ctx, satelliteID)

	c.mu.Lock()
	if set != nil {
		// The whole set is swapped in one assignment: no reader can ever
		// see line 1 from one refresh and line 2 from another.
		c.entries[satelliteID] = set
	}
	delete(c.inflight, satelliteID)
	c.mu.Unlock()

	call.set, call.err = set, err
	close(call.done)

	if set != nil && c.store != nil {
		if werr := c.store.Write(set); werr != nil {
			c.logger.Warn("persisting element set failed", "satellite_id", satelliteID, "error", werr)
		}
	}

	return c.resolve(satelliteID, set, err)
}

// resolve turns a refresh outcome into a Get result, falling back to a
// stale stored set when the refresh failed.
func (c *Cache) resolve(satelliteID string, set *ElementSet, err error) (*ElementSet, error) {
	if err == nil {
		return set, nil
	}

	c.mu.Lock()
	stale := c.entries[satelliteID]
	c.mu.Unlock()

	if stale != nil {
		c.logger.Warn("refresh failed, serving stale element set",
			"satellite_id", satelliteID,
			"age_hours", stale.Age(c.now()).Hours(),
			"error", err,
		)
		return stale, nil
	}
	return nil, err
}

// refresh runs one fetch with the configured timeout, retrying at most
// once. It never loops unboundedly; persistent failure surfaces to the
// caller as a typed error.
func (c *Cache) refresh(ctx context.Context, satelliteID string) (*ElementSet, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
		set, err := c.fetcher.Fetch(fetchCtx, satelliteID)
		cancel()

		if err == nil {
			set.LastUpdated = c.now()
			metrics.IncTLERefresh("ok")
			c.logger.Info("element set refreshed",
				"satellite_id", satelliteID,
				"norad_id", set.NoradID,
				"epoch", set.Epoch.Format(time.RFC3339),
			)
			return set, nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			metrics.IncTLERefresh("timeout")
			lastErr = fmt.Errorf("fetch for %q: %w", satelliteID, ErrRefreshTimeout)
		} else {
			metrics.IncTLERefresh("error")
			lastErr = err
		}
		c.logger.Warn("element set refresh attempt failed",
			"satellite_id", satelliteID, "attempt", attempt+1, "error", err)
	}

	if errors.Is(lastErr, ErrRefreshTimeout) || errors.Is(lastErr, ErrNotFound) {
		return nil, lastErr
	}
	// Any other fetch failure with nothing to show for it means no element
	// set is available right now.
	return nil, fmt.Errorf("%w (refresh failed: %v)", ErrNotFound, lastErr)
}
