package domain

import "time"

// PeriodType is the recurrence window a goal is measured over.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodYearly  PeriodType = "yearly"
)

// Valid reports whether the period type is one of the supported windows.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Goal is a target count for an activity over a date window. StartDate and
// EndDate may both be nil (legacy goals); the window is then derived from
// PeriodType at query time.
type Goal struct {
	ID          int64
	UserID      int64
	ActivityID  int64
	TargetCount float64
	PeriodType  PeriodType
	StartDate   *time.Time
	EndDate     *time.Time
}

// GoalProgress is computed on demand and never persisted, so it always reflects
// the ledger at query time.
type GoalProgress struct {
	Goal            Goal
	CurrentCount    float64
	TargetCount     float64
	ProgressPercent int
	Remaining       float64
	StartDate       time.Time
	EndDate         time.Time
	Completed       bool
}
