package domain

import (
	"context"
	"time"
)

// ActivityStore captures persistence operations for activity definitions.
// Get returns (nil, nil) when no row matches; the service layer maps that to
// ErrActivityNotFound.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity Activity) (Activity, error)
	GetActivity(ctx context.Context, id int64) (*Activity, error)
	ListActivities(ctx context.Context, userID int64) ([]Activity, error)
	UpdateActivity(ctx context.Context, activity Activity) (Activity, error)
	DeleteActivity(ctx context.Context, id int64) (bool, error)
}

// EntryStore captures persistence operations for ledger rows.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry Entry) (Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListEntries(ctx context.Context, userID, activityID int64, limit, offset int) ([]Entry, error)
	UpdateEntry(ctx context.Context, entry Entry) (Entry, error)
	DeleteEntry(ctx context.Context, id int64) (bool, error)
}

// Ledger exposes the aggregate queries the evaluator and calculators run over
// the entry table. All return zero values, not errors, when no rows match.
type Ledger interface {
	// SumCounts sums entry counts over the half-open window [from, to).
	SumCounts(ctx context.Context, userID, activityID int64, from, to time.Time) (float64, error)
	// SumCountsThrough sums entry counts over [from, through] with an inclusive
	// end. Goal windows use this; everything else uses the half-open SumCounts.
	SumCountsThrough(ctx context.Context, userID, activityID int64, from, through time.Time) (float64, error)
	// TotalsByActivity returns lifetime totals keyed by activity ID. Activities
	// with no entries are absent, so len(result) is the user's variety count.
	TotalsByActivity(ctx context.Context, userID int64) (map[int64]float64, error)
	// LongestStreak returns the longest run of consecutive calendar days (UTC)
	// with at least one entry for the activity.
	LongestStreak(ctx context.Context, userID, activityID int64) (int, error)
	// LongestStreaks returns per-activity longest streaks keyed by activity ID.
	LongestStreaks(ctx context.Context, userID int64) (map[int64]int, error)
}

// AchievementStore provides the catalog, the awarded set, and conflict-tolerant
// award persistence. Award returns ErrDuplicateAward when the unique
// (user, definition, activity) tuple already exists.
type AchievementStore interface {
	Catalog(ctx context.Context) ([]AchievementDefinition, error)
	AwardsForUser(ctx context.Context, userID int64) ([]Award, error)
	Award(ctx context.Context, award Award) (Award, error)
}

// GoalStore captures persistence operations for goals.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal Goal) (Goal, error)
	GetGoal(ctx context.Context, id int64) (*Goal, error)
	ListGoals(ctx context.Context, userID int64) ([]Goal, error)
	UpdateGoal(ctx context.Context, goal Goal) (Goal, error)
	DeleteGoal(ctx context.Context, id int64) (bool, error)
}

// Store is the full persistence surface the service is wired against.
type Store interface {
	ActivityStore
	EntryStore
	Ledger
	AchievementStore
	GoalStore
}
