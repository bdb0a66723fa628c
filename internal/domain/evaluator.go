package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EvaluationStore is the slice of the store the evaluator needs: the catalog,
// the awarded set, conflict-tolerant award persistence, and the ledger
// aggregates.
type EvaluationStore interface {
	AchievementStore
	Ledger
}

// Evaluator decides which catalog achievements a user has newly earned. It is
// idempotent: with no new ledger activity a second run returns nothing, because
// everything satisfied last time is in the awarded skip-set.
type Evaluator struct {
	store EvaluationStore
}

// NewEvaluator constructs an Evaluator over the provided store. The catalog is
// injected through the store rather than read from any global, so tests run
// against an in-memory fixture catalog.
func NewEvaluator(store EvaluationStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate returns only newly awarded achievements for the user. The
// triggeringActivityID gates activity_specific definitions: they are skipped
// when no trigger is supplied, which keeps bulk re-evaluations from scanning
// every activity (a scope guard, not a correctness rule).
//
// Persistence is per-award: a failed insert does not roll back awards already
// persisted in the same pass. The successful subset is returned alongside the
// error, and a later run retries only the definitions still unawarded. A
// duplicate-key insert means a concurrent trigger won the race; it is skipped
// silently.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, triggeringActivityID *int64, now time.Time) ([]Award, error) {
	catalog, err := e.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}
	awarded, err := e.store.AwardsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load awarded achievements: %w", err)
	}
	totals, err := e.store.TotalsByActivity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load activity totals: %w", err)
	}
	streaks, err := e.store.LongestStreaks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load streaks: %w", err)
	}

	newAwards := make([]Award, 0)
	for _, def := range catalog {
		if hasAward(awarded, def, triggeringActivityID) {
			continue
		}

		qualified, message := qualify(def, triggeringActivityID, totals, streaks)
		if !qualified {
			continue
		}

		award := Award{
			UserID:        userID,
			DefinitionID:  def.ID,
			EarnedAt:      now.UTC(),
			CustomMessage: message,
		}
		if def.Category == CategoryActivitySpecific {
			award.ActivityID = triggeringActivityID
		}

		stored, err := e.store.Award(ctx, award)
		if errors.Is(err, ErrDuplicateAward) {
			continue
		}
		if err != nil {
			return newAwards, fmt.Errorf("persist award %q: %w", def.Name, err)
		}

		stored.Name = def.Name
		stored.Description = def.Description
		stored.Icon = def.Icon
		newAwards = append(newAwards, stored)
	}

	return newAwards, nil
}

// hasAward reports whether the definition is already satisfied for this user.
// For activity_specific definitions the match is per activity: an award held
// for one activity does not block earning the same definition for another.
func hasAward(awarded []Award, def AchievementDefinition, triggeringActivityID *int64) bool {
	for _, a := range awarded {
		if a.DefinitionID != def.ID {
			continue
		}
		if def.Category != CategoryActivitySpecific {
			return true
		}
		if a.ActivityID != nil && triggeringActivityID != nil && *a.ActivityID == *triggeringActivityID {
			return true
		}
	}
	return false
}

// qualify applies the category rule and, when satisfied, produces the
// human-readable message naming the qualifying metric value. The switch is
// exhaustive over Category; adding a category means adding an arm here.
func qualify(def AchievementDefinition, triggeringActivityID *int64, totals map[int64]float64, streaks map[int64]int) (bool, string) {
	switch def.Category {
	case CategoryTotalCount:
		var total float64
		for _, v := range totals {
			total += v
		}
		if total >= def.Threshold {
			return true, fmt.Sprintf("Total of %s across all activities", formatCount(total))
		}
	case CategoryActivitySpecific:
		if triggeringActivityID == nil {
			return false, ""
		}
		if t, ok := totals[*triggeringActivityID]; ok && t >= def.Threshold {
			return true, fmt.Sprintf("Reached %s for this activity", formatCount(t))
		}
	case CategoryStreak:
		longest := 0
		for _, s := range streaks {
			if s > longest {
				longest = s
			}
		}
		if float64(longest) >= def.Threshold {
			return true, fmt.Sprintf("Maintained a streak of %d consecutive days", longest)
		}
	case CategoryVariety:
		if float64(len(totals)) >= def.Threshold {
			return true, fmt.Sprintf("Tracking %d different activities", len(totals))
		}
	}
	return false, ""
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
