package tle

import (
	"errors"
	"fmt"
)

// ErrNotFound means no element set is available for a satellite id, even
// after a refresh attempt. Retryable later, not immediately.
var ErrNotFound = errors.New("tle: element set not found")

// ErrRefreshTimeout means the external fetch collaborator did not respond
// within its deadline. Retryable.
var ErrRefreshTimeout = errors.New("tle: refresh timed out")

// ParseError reports a malformed element set. Not retryable: the data
// itself is bad.
type ParseError struct {
	Line   int    // 1 or 2; 0 when the problem spans the set
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("tle: malformed element set: %s", e.Reason)
	}
	return fmt.Sprintf("tle: malformed element line %d: %s", e.Line, e.Reason)
}
