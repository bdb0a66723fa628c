// Package domain defines the business logic for the activity tracker.
package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jtiemann/activity-tracker/internal/observability"
)

// Service orchestrates activity, entry, goal, and achievement workflows. All
// methods take the authenticated caller's user ID and enforce that records are
// only visible to their owner.
type Service struct {
	store     Store
	evaluator *Evaluator
	now       func() time.Time
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the time source. Period windows are anchored to the
// injected clock, so boundary tests stay deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(store Store, evaluator *Evaluator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		evaluator: evaluator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	Name     string
	Unit     string
	Category string
	IsPublic bool
}

// CreateActivity registers a new activity definition for the caller.
func (s *Service) CreateActivity(ctx context.Context, callerID int64, input CreateActivityInput) (Activity, error) {
	activity := Activity{
		UserID:   callerID,
		Name:     strings.TrimSpace(input.Name),
		Unit:     strings.TrimSpace(input.Unit),
		Category: strings.TrimSpace(input.Category),
		IsPublic: input.IsPublic,
	}
	return s.store.CreateActivity(ctx, activity)
}

// GetActivity fetches an activity owned by the caller.
func (s *Service) GetActivity(ctx context.Context, callerID, activityID int64) (*Activity, error) {
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if activity.UserID != callerID {
		return nil, ErrPermissionDenied
	}
	return activity, nil
}

// ListActivities returns all activities owned by the caller.
func (s *Service) ListActivities(ctx context.Context, callerID int64) ([]Activity, error) {
	return s.store.ListActivities(ctx, callerID)
}

// UpdateActivity modifies the display fields of an activity owned by the caller.
func (s *Service) UpdateActivity(ctx context.Context, callerID int64, activityID int64, input CreateActivityInput) (Activity, error) {
	existing, err := s.GetActivity(ctx, callerID, activityID)
	if err != nil {
		return Activity{}, err
	}
	existing.Name = strings.TrimSpace(input.Name)
	existing.Unit = strings.TrimSpace(input.Unit)
	existing.Category = strings.TrimSpace(input.Category)
	existing.IsPublic = input.IsPublic
	return s.store.UpdateActivity(ctx, *existing)
}

// DeleteActivity removes an activity owned by the caller. Entry rows cascade at
// the storage layer.
func (s *Service) DeleteActivity(ctx context.Context, callerID, activityID int64) error {
	if _, err := s.GetActivity(ctx, callerID, activityID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrActivityNotFound
	}
	return nil
}

// CreateEntryInput captures a new ledger row from the API layer.
type CreateEntryInput struct {
	ActivityID int64
	Count      float64
	LoggedAt   time.Time
	Notes      string
}

// CreateEntry appends a ledger row and runs achievement evaluation for the
// triggering activity. Newly earned awards come back with the entry. If
// evaluation fails after the entry is persisted, the entry and any awards that
// did persist are returned together with the error; the next evaluation retries
// only what is still unawarded.
func (s *Service) CreateEntry(ctx context.Context, callerID int64, input CreateEntryInput) (Entry, []Award, error) {
	if input.Count < 0 {
		return Entry{}, nil, fmt.Errorf("count must be non-negative")
	}
	if _, err := s.GetActivity(ctx, callerID, input.ActivityID); err != nil {
		return Entry{}, nil, err
	}

	loggedAt := input.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = s.now()
	}

	entry, err := s.store.CreateEntry(ctx, Entry{
		ActivityID: input.ActivityID,
		UserID:     callerID,
		Count:      input.Count,
		LoggedAt:   loggedAt.UTC(),
		Notes:      input.Notes,
	})
	if err != nil {
		return Entry{}, nil, err
	}

	awards, err := s.evaluate(ctx, callerID, &entry.ActivityID)
	return entry, awards, err
}

// ListEntries pages through the caller's entries for one activity, newest first.
func (s *Service) ListEntries(ctx context.Context, callerID, activityID int64, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListEntries(ctx, callerID, activityID, limit, offset)
}

// UpdateEntry edits the mutable fields of a ledger row and re-runs evaluation,
// since an edited count or date can newly satisfy a definition.
func (s *Service) UpdateEntry(ctx context.Context, callerID, entryID int64, count float64, loggedAt time.Time, notes string) (Entry, []Award, error) {
	existing, err := s.getOwnedEntry(ctx, callerID, entryID)
	if err != nil {
		return Entry{}, nil, err
	}
	if count < 0 {
		return Entry{}, nil, fmt.Errorf("count must be non-negative")
	}

	existing.Count = count
	existing.LoggedAt = loggedAt.UTC()
	existing.Notes = notes

	entry, err := s.store.UpdateEntry(ctx, *existing)
	if err != nil {
		return Entry{}, nil, err
	}

	awards, err := s.evaluate(ctx, callerID, &entry.ActivityID)
	return entry, awards, err
}

// DeleteEntry hard-deletes a ledger row owned by the caller.
func (s *Service) DeleteEntry(ctx context.Context, callerID, entryID int64) error {
	if _, err := s.getOwnedEntry(ctx, callerID, entryID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrEntryNotFound
	}
	return nil
}

func (s *Service) getOwnedEntry(ctx context.Context, callerID, entryID int64) (*Entry, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.UserID != callerID {
		return nil, ErrPermissionDenied
	}
	return entry, nil
}

// SumCounts sums the caller's entry counts over the half-open window [from, to).
func (s *Service) SumCounts(ctx context.Context, callerID, activityID int64, from, to time.Time) (float64, error) {
	if from.After(to) {
		return 0, ErrInvalidWindow
	}
	return s.store.SumCounts(ctx, callerID, activityID, from, to)
}

// LongestStreak returns the caller's longest run of consecutive calendar days
// with at least one entry for the activity.
func (s *Service) LongestStreak(ctx context.Context, callerID, activityID int64) (int, error) {
	return s.store.LongestStreak(ctx, callerID, activityID)
}

// Stats are the period totals shown on an activity's dashboard card.
type Stats struct {
	Today float64
	Week  float64
	Month float64
	Year  float64
	Unit  string
}

// Stats returns today/week/month/year totals for one activity, with all four
// windows anchored to the same instant so they nest consistently.
func (s *Service) Stats(ctx context.Context, callerID, activityID int64) (Stats, error) {
	activity, err := s.GetActivity(ctx, callerID, activityID)
	if err != nil {
		return Stats{}, err
	}

	now := s.now()
	windows := []Window{DayWindow(now), WeekWindow(now), MonthWindow(now), YearWindow(now)}
	totals := make([]float64, len(windows))
	for i, w := range windows {
		total, err := s.store.SumCounts(ctx, callerID, activityID, w.From, w.To)
		if err != nil {
			return Stats{}, err
		}
		totals[i] = total
	}

	unit := activity.Unit
	if unit == "" {
		unit = "units"
	}
	return Stats{Today: totals[0], Week: totals[1], Month: totals[2], Year: totals[3], Unit: unit}, nil
}

// EvaluateAchievements runs the rule evaluator outside of a logging trigger,
// e.g. after a backfill. Activity-specific definitions are skipped unless a
// triggering activity is supplied.
func (s *Service) EvaluateAchievements(ctx context.Context, callerID int64, triggeringActivityID *int64) ([]Award, error) {
	return s.evaluate(ctx, callerID, triggeringActivityID)
}

func (s *Service) evaluate(ctx context.Context, userID int64, triggeringActivityID *int64) ([]Award, error) {
	start := time.Now()
	awards, err := s.evaluator.Evaluate(ctx, userID, triggeringActivityID, s.now())
	observability.ObserveEvaluation(time.Since(start))
	return awards, err
}

// AwardedAchievements lists the caller's earned achievements, newest first.
func (s *Service) AwardedAchievements(ctx context.Context, callerID int64) ([]Award, error) {
	return s.store.AwardsForUser(ctx, callerID)
}

// AchievementCatalog lists every achievement definition.
func (s *Service) AchievementCatalog(ctx context.Context) ([]AchievementDefinition, error) {
	return s.store.Catalog(ctx)
}

// CreateGoalInput captures a new goal from the API layer.
type CreateGoalInput struct {
	ActivityID  int64
	TargetCount float64
	PeriodType  PeriodType
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateGoal validates and persists a goal for the caller.
func (s *Service) CreateGoal(ctx context.Context, callerID int64, input CreateGoalInput) (Goal, error) {
	if !input.PeriodType.Valid() {
		return Goal{}, fmt.Errorf("unknown period type %q", input.PeriodType)
	}
	if input.StartDate != nil && input.EndDate != nil && input.StartDate.After(*input.EndDate) {
		return Goal{}, ErrInvalidWindow
	}
	if _, err := s.GetActivity(ctx, callerID, input.ActivityID); err != nil {
		return Goal{}, err
	}
	return s.store.CreateGoal(ctx, Goal{
		UserID:      callerID,
		ActivityID:  input.ActivityID,
		TargetCount: input.TargetCount,
		PeriodType:  input.PeriodType,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	})
}

// ListGoals returns all goals owned by the caller.
func (s *Service) ListGoals(ctx context.Context, callerID int64) ([]Goal, error) {
	return s.store.ListGoals(ctx, callerID)
}

// UpdateGoal replaces the mutable fields of a goal owned by the caller.
func (s *Service) UpdateGoal(ctx context.Context, callerID, goalID int64, input CreateGoalInput) (Goal, error) {
	existing, err := s.getOwnedGoal(ctx, callerID, goalID)
	if err != nil {
		return Goal{}, err
	}
	if !input.PeriodType.Valid() {
		return Goal{}, fmt.Errorf("unknown period type %q", input.PeriodType)
	}
	if input.StartDate != nil && input.EndDate != nil && input.StartDate.After(*input.EndDate) {
		return Goal{}, ErrInvalidWindow
	}

	existing.TargetCount = input.TargetCount
	existing.PeriodType = input.PeriodType
	existing.StartDate = input.StartDate
	existing.EndDate = input.EndDate
	return s.store.UpdateGoal(ctx, *existing)
}

// DeleteGoal removes a goal owned by the caller.
func (s *Service) DeleteGoal(ctx context.Context, callerID, goalID int64) error {
	if _, err := s.getOwnedGoal(ctx, callerID, goalID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrGoalNotFound
	}
	return nil
}

func (s *Service) getOwnedGoal(ctx context.Context, callerID, goalID int64) (*Goal, error) {
	goal, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, ErrGoalNotFound
	}
	if goal.UserID != callerID {
		return nil, ErrPermissionDenied
	}
	return goal, nil
}

// GoalProgress computes progress for a goal owned by the caller.
//
// Goals with explicit dates are measured over [start_date, end_date] inclusive
// on both ends. This is deliberately different from the half-open aggregation
// convention: an entry stamped exactly at end_date still counts toward the
// goal. Legacy goals without explicit dates fall back to the period window
// containing now.
func (s *Service) GoalProgress(ctx context.Context, callerID, goalID int64) (GoalProgress, error) {
	goal, err := s.getOwnedGoal(ctx, callerID, goalID)
	if err != nil {
		return GoalProgress{}, err
	}

	var current float64
	var start, end time.Time
	if goal.StartDate != nil && goal.EndDate != nil {
		start, end = goal.StartDate.UTC(), goal.EndDate.UTC()
		current, err = s.store.SumCountsThrough(ctx, goal.UserID, goal.ActivityID, start, end)
	} else {
		w := PeriodWindow(goal.PeriodType, s.now())
		start, end = w.From, w.To
		current, err = s.store.SumCounts(ctx, goal.UserID, goal.ActivityID, w.From, w.To)
	}
	if err != nil {
		return GoalProgress{}, err
	}

	return computeProgress(*goal, current, start, end), nil
}

// computeProgress derives the percent/remaining/completed fields. A zero target
// is complete by definition; reporting 100% immediately avoids NaN reaching
// clients.
func computeProgress(goal Goal, current float64, start, end time.Time) GoalProgress {
	progress := GoalProgress{
		Goal:         goal,
		CurrentCount: current,
		TargetCount:  goal.TargetCount,
		StartDate:    start,
		EndDate:      end,
	}

	if goal.TargetCount == 0 {
		progress.ProgressPercent = 100
		progress.Completed = true
		return progress
	}

	percent := int(math.Round(current / goal.TargetCount * 100))
	if percent > 100 {
		percent = 100
	}
	progress.ProgressPercent = percent
	progress.Remaining = math.Max(0, goal.TargetCount-current)
	progress.Completed = current >= goal.TargetCount
	return progress
}
