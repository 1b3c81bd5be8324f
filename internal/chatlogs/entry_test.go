package chatlogs

import (
	"testing"
	"time"
)

func TestParseLine_WellFormed(t *testing.T) {
	parsed, ok := ParseLine("[ 2026.03.01 18:30:15 ] Sahtogas  3 reds  HFK-BX")
	if !ok {
		t.Fatalf("expected match")
	}
	want := time.Date(2026, 3, 1, 18, 30, 15, 0, time.UTC)
	if !parsed.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", parsed.Time, want)
	}
	if parsed.Time.Location() != time.UTC {
		t.Fatalf("Time location = %v, want UTC", parsed.Time.Location())
	}
	if parsed.Message != "Sahtogas  3 reds  HFK-BX" {
		t.Fatalf("Message = %q", parsed.Message)
	}
}

func TestParseLine_LeadingBOMIgnored(t *testing.T) {
	withBOM := "\ufeff[ 2026.03.01 18:30:15 ] status clear"
	parsed, ok := ParseLine(withBOM)
	if !ok {
		t.Fatalf("expected match despite BOM")
	}
	plain, _ := ParseLine("[ 2026.03.01 18:30:15 ] status clear")
	if parsed != plain {
		t.Fatalf("BOM changed result: %#v != %#v", parsed, plain)
	}
}

func TestParseLine_BodyPreservedVerbatim(t *testing.T) {
	parsed, ok := ParseLine("[ 2026.03.01 18:30:15 ]   aligned  columns \t")
	if !ok {
		t.Fatalf("expected match")
	}
	if parsed.Message != "  aligned  columns \t" {
		t.Fatalf("Message = %q, want leading and interior whitespace kept", parsed.Message)
	}
}

func TestParseLine_NonMatching(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "channel header", line: "Channel Name:    Alpha Intel"},
		{name: "missing brackets", line: "2026.03.01 18:30:15 body"},
		{name: "tight brackets", line: "[2026.03.01 18:30:15] body"},
		{name: "out of range month", line: "[ 2026.13.01 18:30:15 ] body"},
		{name: "out of range day", line: "[ 2026.02.30 18:30:15 ] body"},
		{name: "out of range hour", line: "[ 2026.03.01 25:30:15 ] body"},
		{name: "empty body", line: "[ 2026.03.01 18:30:15 ] "},
		{name: "whitespace body", line: "[ 2026.03.01 18:30:15 ]    "},
		{name: "blank", line: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseLine(tt.line); ok {
				t.Fatalf("expected no match for %q", tt.line)
			}
		})
	}
}

func TestParseLogFileName(t *testing.T) {
	meta, ok := parseLogFileName("Alpha_Intel_20260301_113000.txt")
	if !ok {
		t.Fatalf("expected parse success")
	}
	if meta.ChannelName != "Alpha_Intel" {
		t.Fatalf("ChannelName = %q", meta.ChannelName)
	}
	want := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)
	if !meta.Timestamp.Equal(want) {
		t.Fatalf("Timestamp = %v, want %v", meta.Timestamp, want)
	}

	bad := []string{
		"Alpha_20260301_113000.log",
		"Alpha.txt",
		"Alpha_2026_1130.txt",
		"Alpha_20261301_113000.txt",
	}
	for _, name := range bad {
		if _, ok := parseLogFileName(name); ok {
			t.Fatalf("expected parse failure for %q", name)
		}
	}
}
