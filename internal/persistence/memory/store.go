// Package memory stores tracker data in process memory for unit tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jtiemann/activity-tracker/internal/domain"
)

// Store is an in-memory implementation of domain.Store.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	activities map[int64]domain.Activity
	entries    map[int64]domain.Entry
	catalog    []domain.AchievementDefinition
	awards     map[int64]domain.Award
	goals      map[int64]domain.Goal
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		nextID:     1,
		activities: make(map[int64]domain.Activity),
		entries:    make(map[int64]domain.Entry),
		awards:     make(map[int64]domain.Award),
		goals:      make(map[int64]domain.Goal),
	}
}

// SeedCatalog replaces the achievement catalog.
func (s *Store) SeedCatalog(defs []domain.AchievementDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append([]domain.AchievementDefinition(nil), defs...)
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// CreateActivity implements domain.ActivityStore.
func (s *Store) CreateActivity(_ context.Context, activity domain.Activity) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = s.allocID()
	s.activities[activity.ID] = activity
	return activity, nil
}

// GetActivity implements domain.ActivityStore.
func (s *Store) GetActivity(_ context.Context, id int64) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// ListActivities implements domain.ActivityStore.
func (s *Store) ListActivities(_ context.Context, userID int64) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, a := range s.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateActivity implements domain.ActivityStore.
func (s *Store) UpdateActivity(_ context.Context, activity domain.Activity) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[activity.ID]; !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	s.activities[activity.ID] = activity
	return activity, nil
}

// DeleteActivity implements domain.ActivityStore. Entries cascade like the
// Postgres foreign key does.
func (s *Store) DeleteActivity(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[id]; !ok {
		return false, nil
	}
	delete(s.activities, id)
	for entryID, e := range s.entries {
		if e.ActivityID == id {
			delete(s.entries, entryID)
		}
	}
	return true, nil
}

// CreateEntry implements domain.EntryStore.
func (s *Store) CreateEntry(_ context.Context, entry domain.Entry) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.allocID()
	s.entries[entry.ID] = entry
	return entry, nil
}

// GetEntry implements domain.EntryStore.
func (s *Store) GetEntry(_ context.Context, id int64) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// ListEntries implements domain.EntryStore, newest first.
func (s *Store) ListEntries(_ context.Context, userID, activityID int64, limit, offset int) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]domain.Entry, 0)
	for _, e := range s.entries {
		if e.UserID == userID && e.ActivityID == activityID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].LoggedAt.After(matched[j].LoggedAt) })
	if offset >= len(matched) {
		return []domain.Entry{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// UpdateEntry implements domain.EntryStore.
func (s *Store) UpdateEntry(_ context.Context, entry domain.Entry) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; !ok {
		return domain.Entry{}, domain.ErrEntryNotFound
	}
	s.entries[entry.ID] = entry
	return entry, nil
}

// DeleteEntry implements domain.EntryStore.
func (s *Store) DeleteEntry(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

// SumCounts implements domain.Ledger over the half-open window [from, to).
func (s *Store) SumCounts(_ context.Context, userID, activityID int64, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, e := range s.entries {
		if e.UserID != userID || e.ActivityID != activityID {
			continue
		}
		if !e.LoggedAt.Before(from) && e.LoggedAt.Before(to) {
			total += e.Count
		}
	}
	return total, nil
}

// SumCountsThrough implements domain.Ledger with an inclusive end boundary.
func (s *Store) SumCountsThrough(_ context.Context, userID, activityID int64, from, through time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, e := range s.entries {
		if e.UserID != userID || e.ActivityID != activityID {
			continue
		}
		if !e.LoggedAt.Before(from) && !e.LoggedAt.After(through) {
			total += e.Count
		}
	}
	return total, nil
}

// TotalsByActivity implements domain.Ledger.
func (s *Store) TotalsByActivity(_ context.Context, userID int64) (map[int64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[int64]float64)
	for _, e := range s.entries {
		if e.UserID == userID {
			totals[e.ActivityID] += e.Count
		}
	}
	return totals, nil
}

// LongestStreak implements domain.Ledger.
func (s *Store) LongestStreak(ctx context.Context, userID, activityID int64) (int, error) {
	streaks, err := s.LongestStreaks(ctx, userID)
	if err != nil {
		return 0, err
	}
	return streaks[activityID], nil
}

// LongestStreaks implements domain.Ledger using the same date-minus-index
// grouping the Postgres CTE performs: within a run of consecutive calendar
// days, day number minus position stays constant; a gap shifts it and starts a
// new group. The longest streak is the largest group.
func (s *Store) LongestStreaks(_ context.Context, userID int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Distinct UTC calendar days per activity.
	days := make(map[int64]map[int]struct{})
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if days[e.ActivityID] == nil {
			days[e.ActivityID] = make(map[int]struct{})
		}
		days[e.ActivityID][dayNumber(e.LoggedAt)] = struct{}{}
	}

	streaks := make(map[int64]int, len(days))
	for activityID, set := range days {
		sorted := make([]int, 0, len(set))
		for d := range set {
			sorted = append(sorted, d)
		}
		sort.Ints(sorted)

		groups := make(map[int]int)
		longest := 0
		for i, d := range sorted {
			group := d - i
			groups[group]++
			if groups[group] > longest {
				longest = groups[group]
			}
		}
		streaks[activityID] = longest
	}
	return streaks, nil
}

// dayNumber converts a timestamp to a whole number of days since the Unix
// epoch, truncated in UTC. Using day arithmetic rather than durations keeps
// calendar-day deltas exact across DST transitions.
func dayNumber(t time.Time) int {
	u := t.UTC()
	return int(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Catalog implements domain.AchievementStore.
func (s *Store) Catalog(_ context.Context) ([]domain.AchievementDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AchievementDefinition(nil), s.catalog...), nil
}

// AwardsForUser implements domain.AchievementStore, newest first.
func (s *Store) AwardsForUser(_ context.Context, userID int64) ([]domain.Award, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Award, 0)
	for _, a := range s.awards {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.After(out[j].EarnedAt) })
	return out, nil
}

// Award implements domain.AchievementStore with the same uniqueness the
// Postgres constraint provides.
func (s *Store) Award(_ context.Context, award domain.Award) (domain.Award, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.awards {
		if existing.UserID != award.UserID || existing.DefinitionID != award.DefinitionID {
			continue
		}
		if equalActivityRef(existing.ActivityID, award.ActivityID) {
			return domain.Award{}, domain.ErrDuplicateAward
		}
	}
	award.ID = s.allocID()
	s.awards[award.ID] = award
	return award, nil
}

func equalActivityRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CreateGoal implements domain.GoalStore.
func (s *Store) CreateGoal(_ context.Context, goal domain.Goal) (domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal.ID = s.allocID()
	s.goals[goal.ID] = goal
	return goal, nil
}

// GetGoal implements domain.GoalStore.
func (s *Store) GetGoal(_ context.Context, id int64) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, nil
	}
	return &goal, nil
}

// ListGoals implements domain.GoalStore.
func (s *Store) ListGoals(_ context.Context, userID int64) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Goal, 0)
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateGoal implements domain.GoalStore.
func (s *Store) UpdateGoal(_ context.Context, goal domain.Goal) (domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[goal.ID]; !ok {
		return domain.Goal{}, domain.ErrGoalNotFound
	}
	s.goals[goal.ID] = goal
	return goal, nil
}

// DeleteGoal implements domain.GoalStore.
func (s *Store) DeleteGoal(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return false, nil
	}
	delete(s.goals, id)
	return true, nil
}
