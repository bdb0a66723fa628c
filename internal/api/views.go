package api

import (
	"errors"
	"strings"
	"time"

	"github.com/jtiemann/activity-tracker/internal/domain"
)

// ActivityRequest is the payload for creating or updating an activity.
type ActivityRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
	IsPublic bool   `json:"is_public"`
}

// Validate ensures request correctness.
func (r ActivityRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Unit) == "" {
		return errors.New("unit is required")
	}
	return nil
}

// CreateLogRequest is the payload for POST /v1/logs.
type CreateLogRequest struct {
	ActivityID int64     `json:"activity_id"`
	Count      float64   `json:"count"`
	LoggedAt   time.Time `json:"logged_at"`
	Notes      string    `json:"notes"`
}

// Validate ensures request correctness. A zero LoggedAt is allowed and defaults
// to the current time.
func (r CreateLogRequest) Validate() error {
	if r.ActivityID <= 0 {
		return errors.New("activity_id is required")
	}
	if r.Count < 0 {
		return errors.New("count must be non-negative")
	}
	return nil
}

// UpdateLogRequest is the payload for PUT /v1/logs/{id}.
type UpdateLogRequest struct {
	Count    float64   `json:"count"`
	LoggedAt time.Time `json:"logged_at"`
	Notes    string    `json:"notes"`
}

// Validate ensures request correctness.
func (r UpdateLogRequest) Validate() error {
	if r.Count < 0 {
		return errors.New("count must be non-negative")
	}
	if r.LoggedAt.IsZero() {
		return errors.New("logged_at is required")
	}
	return nil
}

// GoalRequest is the payload for creating or updating a goal.
type GoalRequest struct {
	ActivityID  int64      `json:"activity_id"`
	TargetCount float64    `json:"target_count"`
	PeriodType  string     `json:"period_type"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// Validate ensures request correctness.
func (r GoalRequest) Validate() error {
	if r.ActivityID <= 0 {
		return errors.New("activity_id is required")
	}
	if r.TargetCount < 0 {
		return errors.New("target_count must be non-negative")
	}
	if !domain.PeriodType(r.PeriodType).Valid() {
		return errors.New("period_type must be one of daily, weekly, monthly, yearly")
	}
	if (r.StartDate == nil) != (r.EndDate == nil) {
		return errors.New("start_date and end_date must be supplied together")
	}
	return nil
}

func (r GoalRequest) toInput() domain.CreateGoalInput {
	return domain.CreateGoalInput{
		ActivityID:  r.ActivityID,
		TargetCount: r.TargetCount,
		PeriodType:  domain.PeriodType(r.PeriodType),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}
}

// ActivityView exposes an activity definition.
type ActivityView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Category string `json:"category,omitempty"`
	IsPublic bool   `json:"is_public"`
}

// EntryView exposes a ledger row.
type EntryView struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	Count      float64   `json:"count"`
	LoggedAt   time.Time `json:"logged_at"`
	Notes      string    `json:"notes,omitempty"`
}

// LogResponse packages a created or updated entry with any achievements it
// newly earned. EvaluationError is set when evaluation stopped partway; awards
// listed before the failure are already persisted.
type LogResponse struct {
	Log             EntryView   `json:"log"`
	NewAchievements []AwardView `json:"new_achievements,omitempty"`
	EvaluationError string      `json:"evaluation_error,omitempty"`
}

// AwardView exposes an earned achievement with catalog display fields.
type AwardView struct {
	ID            int64     `json:"id"`
	DefinitionID  int64     `json:"achievement_type_id"`
	ActivityID    *int64    `json:"activity_id,omitempty"`
	EarnedAt      time.Time `json:"earned_at"`
	CustomMessage string    `json:"custom_message,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
}

// DefinitionView exposes a catalog definition.
type DefinitionView struct {
	ID          int64   `json:"id"`
	Category    string  `json:"category"`
	Threshold   float64 `json:"threshold"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// StatsView exposes period totals for an activity.
type StatsView struct {
	Today float64 `json:"today"`
	Week  float64 `json:"week"`
	Month float64 `json:"month"`
	Year  float64 `json:"year"`
	Unit  string  `json:"unit"`
}

// GoalView exposes a goal definition.
type GoalView struct {
	ID          int64      `json:"id"`
	ActivityID  int64      `json:"activity_id"`
	TargetCount float64    `json:"target_count"`
	PeriodType  string     `json:"period_type"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// GoalProgressView exposes computed progress for a goal.
type GoalProgressView struct {
	Goal            GoalView  `json:"goal"`
	CurrentCount    float64   `json:"current_count"`
	TargetCount     float64   `json:"target_count"`
	ProgressPercent int       `json:"progress_percent"`
	Remaining       float64   `json:"remaining"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Completed       bool      `json:"completed"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:       a.ID,
		Name:     a.Name,
		Unit:     a.Unit,
		Category: a.Category,
		IsPublic: a.IsPublic,
	}
}

func toEntryView(e domain.Entry) EntryView {
	return EntryView{
		ID:         e.ID,
		ActivityID: e.ActivityID,
		Count:      e.Count,
		LoggedAt:   e.LoggedAt,
		Notes:      e.Notes,
	}
}

func toAwardView(a domain.Award) AwardView {
	return AwardView{
		ID:            a.ID,
		DefinitionID:  a.DefinitionID,
		ActivityID:    a.ActivityID,
		EarnedAt:      a.EarnedAt,
		CustomMessage: a.CustomMessage,
		Name:          a.Name,
		Description:   a.Description,
		Icon:          a.Icon,
	}
}

func toGoalView(g domain.Goal) GoalView {
	return GoalView{
		ID:          g.ID,
		ActivityID:  g.ActivityID,
		TargetCount: g.TargetCount,
		PeriodType:  string(g.PeriodType),
		StartDate:   g.StartDate,
		EndDate:     g.EndDate,
	}
}

func toGoalProgressView(p domain.GoalProgress) GoalProgressView {
	return GoalProgressView{
		Goal:            toGoalView(p.Goal),
		CurrentCount:    p.CurrentCount,
		TargetCount:     p.TargetCount,
		ProgressPercent: p.ProgressPercent,
		Remaining:       p.Remaining,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		Completed:       p.Completed,
	}
}
