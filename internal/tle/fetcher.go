package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps fetch responses. A single-satellite TLE response is a
// few hundred bytes; anything past this is a broken or hostile source.
const maxBodyBytes = 1 << 20

// Fetcher retrieves a fresh element set for one satellite from an external
// source. Implementations must honor ctx cancellation and deadlines.
type Fetcher interface {
	Fetch(ctx context.Context, satelliteID string) (*ElementSet, error)
}

// Source describes one satellite the service tracks: the stable id used in
// the API and the NORAD catalog number used to query the element source.
type Source struct {
	SatelliteID string
	NoradID     int
}

// HTTPFetcher fetches element sets over HTTP, one satellite per request,
// using a CelesTrak-style catalog-number query.
type HTTPFetcher struct {
	baseURL string
	sources map[string]Source
	client  *http.Client
}

// DefaultBaseURL is the CelesTrak GP endpoint; %d receives the NORAD id.
const DefaultBaseURL = "https://celestrak.org/NORAD/elements/gp.php?CATNR=%d&FORMAT=tle"

// NewHTTPFetcher creates a fetcher for the given satellite sources.
// baseURL must contain a single %d verb for the NORAD catalog number.
func NewHTTPFetcher(baseURL string, sources []Source) *HTTPFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.SatelliteID] = s
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		sources: m,
		// No Timeout here: the cache controls the deadline via ctx so that
		// a timeout is distinguishable from other transport failures.
		client: &http.Client{},
	}
}

// Fetch performs an HTTP GET for the satellite's element set and parses the
// response. Unknown satellite ids fail with ErrNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, satelliteID string) (*ElementSet, error) {
	src, ok := f.sources[satelliteID]
	if !ok {
		return nil, fmt.Errorf("no source configured for %q: %w", satelliteID, ErrNotFound)
	}

	url := fmt.Sprintf(f.baseURL, src.NoradID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from element source", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("response exceeds byte limit")
	}

	set, err := ParseFeed(satelliteID, string(body))
	if err != nil {
		return nil, err
	}
	if set.NoradID != src.NoradID {
		return nil, fmt.Errorf("source returned NORAD %d, expected %d", set.NoradID, src.NoradID)
	}
	return set, nil
}
