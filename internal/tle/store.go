package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store persists element sets to disk, one file per satellite id, so a
// restart does not force a refetch. File format is the raw 3-line TLE text
// with a leading last-updated header:
//
//	# updated 2026-08-30T12:00:00Z
//	ISS (ZARYA)
//	1 25544U ...
//	2 25544 ...
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write saves an element set, replacing any previous one for the same
// satellite id. The write goes through a temp file and rename so readers
// never see a half-written pair.
func (s *Store) Write(set *ElementSet) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	data := fmt.Sprintf("# updated %s\n%s\n%s\n%s\n",
		set.LastUpdated.UTC().Format(time.RFC3339),
		set.Name, set.Line1, set.Line2)

	tmp, err := os.CreateTemp(s.dir, "tle-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path(set.SatelliteID))
}

// Load reads the stored element set for a satellite id. Missing files
// report ErrNotFound; corrupt files report a *ParseError.
func (s *Store) Load(satelliteID string) (*ElementSet, error) {
	b, err := os.ReadFile(s.path(satelliteID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no stored elements for %q: %w", satelliteID, ErrNotFound)
		}
		return nil, fmt.Errorf("reading stored elements: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) < 4 || !strings.HasPrefix(lines[0], "# updated ") {
		return nil, &ParseError{Reason: "stored file missing updated header"}
	}

	updated, err := time.Parse(time.RFC3339, strings.TrimPrefix(lines[0], "# updated "))
	if err != nil {
		return nil, &ParseError{Reason: "stored file has invalid updated header"}
	}

	set, err := ParseElementSet(satelliteID, lines[1], lines[2], lines[3])
	if err != nil {
		return nil, err
	}
	set.LastUpdated = updated
	return set, nil
}

// LoadAll reads every parseable stored element set. Corrupt files are
// skipped; the caller refetches those on demand.
func (s *Store) LoadAll() ([]*ElementSet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing store dir: %w", err)
	}

	var sets []*ElementSet
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tle") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".tle")
		set, err := s.Load(id)
		if err != nil {
			continue
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (s *Store) path(satelliteID string) string {
	// Satellite ids are short tokens, but never trust them as paths.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', ' ':
			return '_'
		}
		return r
	}, satelliteID)
	return filepath.Join(s.dir, safe+".tle")
}
