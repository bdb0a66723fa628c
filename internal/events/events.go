// Package events defines the payloads published through the outbox.
package events

import "time"

// EntryLogged is emitted when a ledger row is created or edited.
type EntryLogged struct {
	EventID    string    `json:"event_id"`
	EntryID    int64     `json:"entry_id"`
	UserID     int64     `json:"user_id"`
	ActivityID int64     `json:"activity_id"`
	Count      float64   `json:"count"`
	LoggedAt   time.Time `json:"logged_at"`
}

// AchievementAwarded is emitted when the evaluator persists a new award. The
// notifier consumes it to tell the user what they earned.
type AchievementAwarded struct {
	EventID       string    `json:"event_id"`
	AwardID       int64     `json:"award_id"`
	UserID        int64     `json:"user_id"`
	DefinitionID  int64     `json:"definition_id"`
	ActivityID    *int64    `json:"activity_id,omitempty"`
	CustomMessage string    `json:"custom_message,omitempty"`
	EarnedAt      time.Time `json:"earned_at"`
}
