package domain

import "time"

// Activity is a user-defined activity type ("Pull-ups", "Running") with a counting unit.
type Activity struct {
	ID       int64
	UserID   int64
	Name     string
	Unit     string
	Category string
	IsPublic bool
}

// Entry is a single ledger row: a countable amount of an activity at a point in time.
// Counts are non-negative reals; fractional units (e.g. kilometers) are valid.
type Entry struct {
	ID         int64
	ActivityID int64
	UserID     int64
	Count      float64
	LoggedAt   time.Time
	Notes      string
}
