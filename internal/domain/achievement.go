package domain

import "time"

// Category selects the rule an achievement definition is evaluated under.
type Category string

const (
	CategoryTotalCount       Category = "total_count"
	CategoryActivitySpecific Category = "activity_specific"
	CategoryStreak           Category = "streak"
	CategoryVariety          Category = "activity_variety"
)

// Valid reports whether the category names a known rule.
func (c Category) Valid() bool {
	switch c {
	case CategoryTotalCount, CategoryActivitySpecific, CategoryStreak, CategoryVariety:
		return true
	}
	return false
}

// AchievementDefinition is one entry of the read-mostly achievement catalog.
type AchievementDefinition struct {
	ID          int64
	Category    Category
	Threshold   float64
	Name        string
	Description string
	Icon        string
}

// Award records that a user earned an achievement. ActivityID is set only for
// activity_specific awards; (UserID, DefinitionID, ActivityID) is unique and the
// storage layer enforces it.
type Award struct {
	ID            int64
	UserID        int64
	DefinitionID  int64
	ActivityID    *int64
	EarnedAt      time.Time
	CustomMessage string

	// Catalog display fields, filled in when the award is returned to clients.
	Name        string
	Description string
	Icon        string
}
