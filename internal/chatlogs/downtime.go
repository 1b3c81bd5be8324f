package chatlogs

import "time"

// The cluster goes down for maintenance every day at 11:00 UTC. Log files
// stamped before the most recent boundary belong to a previous play session
// and are never worth tracking.
const downtimeHourUTC = 11

// LastDowntime returns the most recent daily downtime boundary at or before
// the given instant. Computed purely from wall-clock time.
func LastDowntime(now time.Time) time.Time {
	now = now.UTC()
	boundary := time.Date(now.Year(), now.Month(), now.Day(), downtimeHourUTC, 0, 0, 0, time.UTC)
	if boundary.After(now) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}

// NextDowntime returns the first daily downtime boundary after the given
// instant.
func NextDowntime(now time.Time) time.Time {
	return LastDowntime(now).Add(24 * time.Hour)
}
