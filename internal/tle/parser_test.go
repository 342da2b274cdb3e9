package tle

import (
	"errors"
	"testing"
	"time"
)

// Real ISS element set from CelesTrak, epoch 2025-05-18T08:53:29Z.
const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func TestParseElementSet(t *testing.T) {
	set, err := ParseElementSet("ISS", issName, issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElementSet: %v", err)
	}

	if set.SatelliteID != "ISS" {
		t.Errorf("SatelliteID = %q, want %q", set.SatelliteID, "ISS")
	}
	if set.NoradID != 25544 {
		t.Errorf("NoradID = %d, want 25544", set.NoradID)
	}
	if set.Name != issName {
		t.Errorf("Name = %q, want %q", set.Name, issName)
	}

	wantEpoch := time.Date(2025, 5, 18, 8, 53, 29, 0, time.UTC)
	if d := set.Epoch.Sub(wantEpoch); d < -time.Second || d > time.Second {
		t.Errorf("Epoch = %v, want within 1s of %v", set.Epoch, wantEpoch)
	}
}

func TestParseElementSetTrimsTrailingWhitespace(t *testing.T) {
	set, err := ParseElementSet("ISS", issName, issLine1+"\r\n", issLine2+"  \n")
	if err != nil {
		t.Fatalf("ParseElementSet with trailing whitespace: %v", err)
	}
	if set.Line1 != issLine1 || set.Line2 != issLine2 {
		t.Error("stored lines should be trimmed of trailing whitespace")
	}
}

func TestParseElementSetMalformed(t *testing.T) {
	// Tampered copies of the valid lines.
	badChecksum := issLine1[:68] + "7"
	tamperedField := issLine1[:20] + "9" + issLine1[21:]

	tests := []struct {
		name         string
		line1, line2 string
		wantLine     int
	}{
		{"line 1 too short", issLine1[:60], issLine2, 1},
		{"line 2 too short", issLine1, issLine2[:68], 2},
		{"line 1 too long", issLine1 + "X", issLine2, 1},
		{"empty lines", "", "", 1},
		{"wrong line number", "2" + issLine1[1:], issLine2, 1},
		{"missing column 2 space", "1X" + issLine1[2:], issLine2, 1},
		{"checksum mismatch", badChecksum, issLine2, 1},
		{"tampered epoch digit breaks checksum", tamperedField, issLine2, 1},
		{"catalog numbers disagree", issLine1, "2 25545  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510534", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseElementSet("ISS", issName, tt.line1, tt.line2)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("ParseError.Line = %d, want %d", pe.Line, tt.wantLine)
			}
		})
	}
}

func TestParseFeed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"three line with title", issName + "\n" + issLine1 + "\n" + issLine2 + "\n"},
		{"two line without title", issLine1 + "\n" + issLine2},
		{"crlf line endings", issName + "\r\n" + issLine1 + "\r\n" + issLine2 + "\r\n"},
		{"blank lines interleaved", "\n" + issName + "\n\n" + issLine1 + "\n" + issLine2 + "\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseFeed("ISS", tt.raw)
			if err != nil {
				t.Fatalf("ParseFeed: %v", err)
			}
			if set.NoradID != 25544 {
				t.Errorf("NoradID = %d, want 25544", set.NoradID)
			}
		})
	}
}

func TestParseFeedEmpty(t *testing.T) {
	for _, raw := range []string{"", "\n\n", "just one line"} {
		_, err := ParseFeed("ISS", raw)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseFeed(%q) error = %v, want *ParseError", raw, err)
		}
	}
}

func TestParseEpochCentury(t *testing.T) {
	tests := []struct {
		in       string
		wantYear int
	}{
		{"25138.37048074", 2025},
		{"00001.00000000", 2000},
		{"56365.99999999", 2056},
		{"57001.00000000", 1957},
		{"99365.50000000", 1999},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if err != nil {
			t.Errorf("parseEpoch(%q): %v", tt.in, err)
			continue
		}
		if got.Year() != tt.wantYear {
			t.Errorf("parseEpoch(%q).Year() = %d, want %d", tt.in, got.Year(), tt.wantYear)
		}
	}
}

func TestChecksum(t *testing.T) {
	// Canonical example line: checksum digit is 7, minus signs count as 1.
	line := "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	if got := checksum(line[:68]); got != 7 {
		t.Errorf("checksum = %d, want 7", got)
	}
}

func TestElementSetAge(t *testing.T) {
	set := &ElementSet{
		Epoch:       time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		LastUpdated: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if got := set.Age(now); got != 24*time.Hour {
		t.Errorf("Age = %v, want 24h", got)
	}
	if got := set.EpochAge(now); got != 72*time.Hour {
		t.Errorf("EpochAge = %v, want 72h", got)
	}
	// EpochAge is symmetric around the epoch.
	before := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	if got := set.EpochAge(before); got != 24*time.Hour {
		t.Errorf("EpochAge before epoch = %v, want 24h", got)
	}
}
