// Package tle owns two-line element sets: strict parsing and validation,
// fetching from an external source, disk persistence, and the freshness
// cache that decides when a refetch is required before propagation.
package tle

import "time"

// ElementSet is one satellite's two-line element set plus bookkeeping.
// Line1 and Line2 are only ever replaced together; a half-updated pair is
// never observable.
type ElementSet struct {
	SatelliteID string    // stable lookup key, e.g. "ISS"
	NoradID     int       // NORAD catalog number from line 1
	Name        string    // display name from the feed's title line
	Line1       string    // fixed 69-column element line 1
	Line2       string    // fixed 69-column element line 2
	Epoch       time.Time // reference epoch embedded in line 1
	LastUpdated time.Time // when this set was obtained from the source
}

// Age returns how old the element set is relative to now.
func (e *ElementSet) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}

// EpochAge returns how far the given instant is from the set's epoch.
// SGP4 accuracy degrades with epoch age; callers treat more than ~two
// weeks as a data-quality warning, not a failure.
func (e *ElementSet) EpochAge(at time.Time) time.Duration {
	d := at.Sub(e.Epoch)
	if d < 0 {
		d = -d
	}
	return d
}
