package tle

import (
	"strconv"
	"strings"
	"time"
)

const lineLen = 69

// ParseElementSet validates a two-line element pair against the fixed
// column layout and checksum, and extracts the NORAD id and epoch.
// Any violation returns a *ParseError; nothing is guessed.
func ParseElementSet(satelliteID, name, line1, line2 string) (*ElementSet, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if err := validateLine(line1, 1); err != nil {
		return nil, err
	}
	if err := validateLine(line2, 2); err != nil {
		return nil, err
	}

	noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return nil, &ParseError{Line: 1, Reason: "invalid catalog number field " + strconv.Quote(line1[2:7])}
	}

	norad2, err := strconv.Atoi(strings.TrimSpace(line2[2:7]))
	if err != nil || norad2 != noradID {
		return nil, &ParseError{Reason: "catalog numbers on line 1 and line 2 disagree"}
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return nil, err
	}

	return &ElementSet{
		SatelliteID: satelliteID,
		NoradID:     noradID,
		Name:        strings.TrimSpace(name),
		Line1:       line1,
		Line2:       line2,
		Epoch:       epoch,
	}, nil
}

// ParseFeed parses the 3-line format served by CelesTrak (title line,
// line 1, line 2) into a single element set. Used on fetch responses for
// a single-satellite query.
func ParseFeed(satelliteID, raw string) (*ElementSet, error) {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimRight(l, "\r ")
		if l != "" {
			lines = append(lines, l)
		}
	}

	switch {
	case len(lines) >= 3:
		return ParseElementSet(satelliteID, lines[0], lines[1], lines[2])
	case len(lines) == 2:
		// Some sources omit the title line.
		return ParseElementSet(satelliteID, satelliteID, lines[0], lines[1])
	default:
		return nil, &ParseError{Reason: "feed response has fewer than two element lines"}
	}
}

func validateLine(line string, n int) error {
	if len(line) != lineLen {
		return &ParseError{Line: n, Reason: "length " + strconv.Itoa(len(line)) + ", expected 69"}
	}
	if line[0] != byte('0'+n) {
		return &ParseError{Line: n, Reason: "line number column is " + strconv.Quote(string(line[0]))}
	}
	if line[1] != ' ' {
		return &ParseError{Line: n, Reason: "column 2 must be a space"}
	}
	want := int(line[lineLen-1] - '0')
	if want < 0 || want > 9 {
		return &ParseError{Line: n, Reason: "checksum column is not a digit"}
	}
	if checksum(line[:lineLen-1]) != want {
		return &ParseError{Line: n, Reason: "checksum mismatch"}
	}
	return nil
}

// checksum is the standard TLE mod-10 checksum: digits count as their
// value, '-' counts as 1, everything else as 0.
func checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to
// time.Time. Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, &ParseError{Line: 1, Reason: "epoch field too short: " + strconv.Quote(s)}
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, &ParseError{Line: 1, Reason: "invalid epoch year: " + strconv.Quote(s[:2])}
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, &ParseError{Line: 1, Reason: "invalid epoch day: " + strconv.Quote(s[2:])}
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
