package domain

import "errors"

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrEntryNotFound is returned when a log entry cannot be located.
	ErrEntryNotFound = errors.New("log entry not found")
	// ErrGoalNotFound is returned when a goal cannot be located.
	ErrGoalNotFound = errors.New("goal not found")
	// ErrPermissionDenied indicates the caller does not own the referenced record.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidWindow indicates a date range whose start is after its end. It is
	// rejected as supplied, never silently reordered.
	ErrInvalidWindow = errors.New("invalid date window: start after end")
	// ErrDuplicateAward indicates the unique (user, definition, activity) award
	// already exists. Callers treat it as a benign race, not a failure.
	ErrDuplicateAward = errors.New("achievement already awarded")
)
