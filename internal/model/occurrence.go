package model

import "time"

// Occurrence is a single dated instance of a weekly session, produced by
// expanding the session's weekly recurrence over a date window.
type Occurrence struct {
	SessionID string
	Label     string

	// InstanceKey uniquely identifies one occurrence of a session, derived
	// from the local start time.
	InstanceKey string

	Weekday Weekday
	Lane    int

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
