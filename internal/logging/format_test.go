package logging

import (
	"strings"
	"testing"
)

func TestTruncate_ClipsLongValues(t *testing.T) {
	long := strings.Repeat("x", clipLimit+10)
	got := Truncate(long)
	if len(got) != clipLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("Truncate length = %d, want clipped with ellipsis", len(got))
	}
}

func TestTruncate_EmptyValue(t *testing.T) {
	if got := Truncate("  \r\n "); got != "<empty>" {
		t.Fatalf("Truncate = %q, want <empty>", got)
	}
}

func TestFormatWirePayload_ControlCharsVisible(t *testing.T) {
	got := FormatWirePayload([]byte("202 INTEL\r\n"))
	if got != "202 INTEL" {
		t.Fatalf("FormatWirePayload = %q", got)
	}
	got = FormatWirePayload([]byte("line one\rline two\n"))
	if got != `line one\rline two` {
		t.Fatalf("FormatWirePayload = %q", got)
	}
}

func TestFormatEventLine_SortsFields(t *testing.T) {
	event := Event{Message: "report accepted", Fields: map[string]any{"channel": "Intel", "code": 202}}
	line := FormatEventLine(event)
	if !strings.Contains(line, "report accepted channel=Intel code=202") {
		t.Fatalf("FormatEventLine = %q", line)
	}
}
