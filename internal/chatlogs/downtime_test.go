package chatlogs

import (
	"testing"
	"time"
)

func TestDowntimeBoundary(t *testing.T) {
	instants := []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 59, 59, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 1, 0, time.UTC),
		time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 12, 31, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 15, 0, 0, 0, time.FixedZone("EVE+5", 5*3600)),
	}
	for _, now := range instants {
		t.Run(now.String(), func(t *testing.T) {
			last := LastDowntime(now)
			next := NextDowntime(now)
			if next.Sub(last) != 24*time.Hour {
				t.Fatalf("NextDowntime - LastDowntime = %v, want 24h", next.Sub(last))
			}
			if last.After(now.UTC()) {
				t.Fatalf("LastDowntime %v after now %v", last, now)
			}
			if !next.After(now.UTC()) {
				t.Fatalf("NextDowntime %v not after now %v", next, now)
			}
			h, m, s := last.Clock()
			if h != 11 || m != 0 || s != 0 {
				t.Fatalf("LastDowntime clock = %02d:%02d:%02d, want 11:00:00", h, m, s)
			}
		})
	}
}
