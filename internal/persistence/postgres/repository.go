// Package postgres provides pgx-backed persistence for the tracker, including
// the transactional outbox rows that accompany ledger and award writes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jtiemann/activity-tracker/internal/domain"
	"github.com/jtiemann/activity-tracker/internal/events"
	"github.com/jtiemann/activity-tracker/internal/observability"
)

// Repository implements domain.Store on top of a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateActivity inserts a new activity definition.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	const stmt = `INSERT INTO activity_types (user_id, name, unit, category, is_public)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING activity_type_id`

	err := r.pool.QueryRow(ctx, stmt,
		activity.UserID, activity.Name, activity.Unit, activity.Category, activity.IsPublic,
	).Scan(&activity.ID)
	if err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// GetActivity returns (nil, nil) when the activity does not exist.
func (r *Repository) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	const query = `SELECT activity_type_id, user_id, name, unit, category, is_public
        FROM activity_types WHERE activity_type_id=$1`

	var activity domain.Activity
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&activity.ID, &activity.UserID, &activity.Name, &activity.Unit, &activity.Category, &activity.IsPublic,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListActivities returns the user's activities, oldest first.
func (r *Repository) ListActivities(ctx context.Context, userID int64) ([]domain.Activity, error) {
	const query = `SELECT activity_type_id, user_id, name, unit, category, is_public
        FROM activity_types WHERE user_id=$1 ORDER BY activity_type_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Unit, &a.Category, &a.IsPublic); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// UpdateActivity replaces the mutable display fields.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	const stmt = `UPDATE activity_types SET name=$2, unit=$3, category=$4, is_public=$5
        WHERE activity_type_id=$1`

	tag, err := r.pool.Exec(ctx, stmt,
		activity.ID, activity.Name, activity.Unit, activity.Category, activity.IsPublic,
	)
	if err != nil {
		return domain.Activity{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return activity, nil
}

// DeleteActivity removes the activity; the foreign key cascades to its entries.
func (r *Repository) DeleteActivity(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_types WHERE activity_type_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateEntry persists the ledger row and its entry.logged outbox event inside
// a single transaction.
func (r *Repository) CreateEntry(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Entry{}, err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO activity_logs (activity_type_id, user_id, count, logged_at, notes)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING log_id`

	if err := tx.QueryRow(ctx, stmt,
		entry.ActivityID, entry.UserID, entry.Count, entry.LoggedAt, nullIfEmpty(entry.Notes),
	).Scan(&entry.ID); err != nil {
		return domain.Entry{}, err
	}

	if err := r.insertEntryOutbox(ctx, tx, entry); err != nil {
		return domain.Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entry{}, err
	}
	observability.RecordEntryPersisted(entry.LoggedAt)
	return entry, nil
}

// GetEntry returns (nil, nil) when the entry does not exist.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*domain.Entry, error) {
	const query = `SELECT log_id, activity_type_id, user_id, count, logged_at, COALESCE(notes, '')
        FROM activity_logs WHERE log_id=$1`

	var entry domain.Entry
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&entry.ID, &entry.ActivityID, &entry.UserID, &entry.Count, &entry.LoggedAt, &entry.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntries pages through entries for one user+activity, newest first.
func (r *Repository) ListEntries(ctx context.Context, userID, activityID int64, limit, offset int) ([]domain.Entry, error) {
	const query = `SELECT log_id, activity_type_id, user_id, count, logged_at, COALESCE(notes, '')
        FROM activity_logs
        WHERE user_id=$1 AND activity_type_id=$2
        ORDER BY logged_at DESC
        LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, userID, activityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.Entry, 0, limit)
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.ActivityID, &e.UserID, &e.Count, &e.LoggedAt, &e.Notes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateEntry rewrites the mutable fields and records an entry.logged event so
// downstream consumers observe edits as well as appends.
func (r *Repository) UpdateEntry(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Entry{}, err
	}
	defer tx.Rollback(ctx)

	const stmt = `UPDATE activity_logs SET count=$2, logged_at=$3, notes=$4 WHERE log_id=$1`

	tag, err := tx.Exec(ctx, stmt, entry.ID, entry.Count, entry.LoggedAt, nullIfEmpty(entry.Notes))
	if err != nil {
		return domain.Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Entry{}, domain.ErrEntryNotFound
	}

	if err := r.insertEntryOutbox(ctx, tx, entry); err != nil {
		return domain.Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entry{}, err
	}
	return entry, nil
}

// DeleteEntry hard-deletes the ledger row.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_logs WHERE log_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SumCounts sums counts over the half-open window [from, to).
func (r *Repository) SumCounts(ctx context.Context, userID, activityID int64, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(count), 0)
        FROM activity_logs
        WHERE user_id=$1 AND activity_type_id=$2 AND logged_at >= $3 AND logged_at < $4`

	var total float64
	if err := r.pool.QueryRow(ctx, query, userID, activityID, from, to).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SumCountsThrough sums counts over [from, through] with an inclusive end.
func (r *Repository) SumCountsThrough(ctx context.Context, userID, activityID int64, from, through time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(count), 0)
        FROM activity_logs
        WHERE user_id=$1 AND activity_type_id=$2 AND logged_at >= $3 AND logged_at <= $4`

	var total float64
	if err := r.pool.QueryRow(ctx, query, userID, activityID, from, through).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TotalsByActivity returns lifetime totals keyed by activity ID.
func (r *Repository) TotalsByActivity(ctx context.Context, userID int64) (map[int64]float64, error) {
	const query = `SELECT activity_type_id, COALESCE(SUM(count), 0)
        FROM activity_logs WHERE user_id=$1 GROUP BY activity_type_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[int64]float64)
	for rows.Next() {
		var activityID int64
		var total float64
		if err := rows.Scan(&activityID, &total); err != nil {
			return nil, err
		}
		totals[activityID] = total
	}
	return totals, rows.Err()
}

// streakQuery groups distinct activity dates by date-minus-row-number: within a
// run of consecutive days the difference is constant, so the largest group per
// activity is its longest streak. Dates truncate in UTC, matching the ledger's
// timezone policy.
const streakQuery = `
    WITH daily_activity AS (
        SELECT activity_type_id, DATE(logged_at AT TIME ZONE 'UTC') AS activity_date
        FROM activity_logs
        WHERE user_id = $1
        GROUP BY activity_type_id, DATE(logged_at AT TIME ZONE 'UTC')
    ),
    streaks AS (
        SELECT activity_type_id, activity_date,
            activity_date - (ROW_NUMBER() OVER (PARTITION BY activity_type_id ORDER BY activity_date))::integer AS streak_group
        FROM daily_activity
    )
    SELECT activity_type_id, MAX(streak_len)
    FROM (
        SELECT activity_type_id, streak_group, COUNT(*) AS streak_len
        FROM streaks
        GROUP BY activity_type_id, streak_group
    ) grouped
    GROUP BY activity_type_id`

// LongestStreaks returns per-activity longest streaks for the user.
func (r *Repository) LongestStreaks(ctx context.Context, userID int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, streakQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	streaks := make(map[int64]int)
	for rows.Next() {
		var activityID int64
		var longest int
		if err := rows.Scan(&activityID, &longest); err != nil {
			return nil, err
		}
		streaks[activityID] = longest
	}
	return streaks, rows.Err()
}

// LongestStreak returns the longest streak for a single activity.
func (r *Repository) LongestStreak(ctx context.Context, userID, activityID int64) (int, error) {
	streaks, err := r.LongestStreaks(ctx, userID)
	if err != nil {
		return 0, err
	}
	return streaks[activityID], nil
}

// Catalog lists achievement definitions ordered by category then threshold.
func (r *Repository) Catalog(ctx context.Context) ([]domain.AchievementDefinition, error) {
	const query = `SELECT achievement_type_id, category, threshold, name, description, icon
        FROM achievement_types ORDER BY category, threshold`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]domain.AchievementDefinition, 0)
	for rows.Next() {
		var d domain.AchievementDefinition
		if err := rows.Scan(&d.ID, &d.Category, &d.Threshold, &d.Name, &d.Description, &d.Icon); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// AwardsForUser lists the user's earned achievements, newest first, joined with
// catalog display fields.
func (r *Repository) AwardsForUser(ctx context.Context, userID int64) ([]domain.Award, error) {
	const query = `SELECT ua.user_achievement_id, ua.user_id, ua.achievement_type_id, ua.activity_type_id,
            ua.earned_at, COALESCE(ua.custom_message, ''), at.name, at.description, at.icon
        FROM user_achievements ua
        JOIN achievement_types at ON at.achievement_type_id = ua.achievement_type_id
        WHERE ua.user_id = $1
        ORDER BY ua.earned_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	awards := make([]domain.Award, 0)
	for rows.Next() {
		var a domain.Award
		if err := rows.Scan(&a.ID, &a.UserID, &a.DefinitionID, &a.ActivityID,
			&a.EarnedAt, &a.CustomMessage, &a.Name, &a.Description, &a.Icon); err != nil {
			return nil, err
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// Award persists a new achievement award plus its achievement.awarded outbox
// event in one transaction. A unique violation on the (user, definition,
// activity) constraint means a concurrent evaluation won the race; it surfaces
// as domain.ErrDuplicateAward so the evaluator can skip it.
func (r *Repository) Award(ctx context.Context, award domain.Award) (domain.Award, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Award{}, err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO user_achievements (user_id, achievement_type_id, activity_type_id, earned_at, custom_message)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING user_achievement_id`

	err = tx.QueryRow(ctx, stmt,
		award.UserID, award.DefinitionID, award.ActivityID, award.EarnedAt, nullIfEmpty(award.CustomMessage),
	).Scan(&award.ID)
	if isUniqueViolation(err) {
		return domain.Award{}, domain.ErrDuplicateAward
	}
	if err != nil {
		return domain.Award{}, err
	}

	payload := events.AchievementAwarded{
		EventID:       uuid.NewString(),
		AwardID:       award.ID,
		UserID:        award.UserID,
		DefinitionID:  award.DefinitionID,
		ActivityID:    award.ActivityID,
		CustomMessage: award.CustomMessage,
		EarnedAt:      award.EarnedAt,
	}
	dedupeKey := fmt.Sprintf("award:%d:awarded", award.ID)
	if err := insertOutbox(ctx, tx, "achievement.awarded", TopicAchievementAwards,
		fmt.Sprintf("%d", award.UserID), dedupeKey, payload); err != nil {
		return domain.Award{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Award{}, err
	}
	observability.RecordAchievementAwarded()
	return award, nil
}

// CreateGoal inserts a new goal.
func (r *Repository) CreateGoal(ctx context.Context, goal domain.Goal) (domain.Goal, error) {
	const stmt = `INSERT INTO activity_goals (user_id, activity_type_id, target_count, period_type, start_date, end_date)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING goal_id`

	err := r.pool.QueryRow(ctx, stmt,
		goal.UserID, goal.ActivityID, goal.TargetCount, goal.PeriodType, goal.StartDate, goal.EndDate,
	).Scan(&goal.ID)
	if err != nil {
		return domain.Goal{}, err
	}
	return goal, nil
}

// GetGoal returns (nil, nil) when the goal does not exist.
func (r *Repository) GetGoal(ctx context.Context, id int64) (*domain.Goal, error) {
	const query = `SELECT goal_id, user_id, activity_type_id, target_count, period_type, start_date, end_date
        FROM activity_goals WHERE goal_id=$1`

	var goal domain.Goal
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&goal.ID, &goal.UserID, &goal.ActivityID, &goal.TargetCount, &goal.PeriodType, &goal.StartDate, &goal.EndDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ListGoals returns the user's goals, most recent start date first.
func (r *Repository) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	const query = `SELECT goal_id, user_id, activity_type_id, target_count, period_type, start_date, end_date
        FROM activity_goals WHERE user_id=$1 ORDER BY start_date DESC NULLS LAST, goal_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := make([]domain.Goal, 0)
	for rows.Next() {
		var g domain.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.ActivityID, &g.TargetCount, &g.PeriodType, &g.StartDate, &g.EndDate); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal replaces the mutable fields of a goal.
func (r *Repository) UpdateGoal(ctx context.Context, goal domain.Goal) (domain.Goal, error) {
	const stmt = `UPDATE activity_goals SET target_count=$2, period_type=$3, start_date=$4, end_date=$5
        WHERE goal_id=$1`

	tag, err := r.pool.Exec(ctx, stmt, goal.ID, goal.TargetCount, goal.PeriodType, goal.StartDate, goal.EndDate)
	if err != nil {
		return domain.Goal{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Goal{}, domain.ErrGoalNotFound
	}
	return goal, nil
}

// DeleteGoal removes a goal.
func (r *Repository) DeleteGoal(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_goals WHERE goal_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) insertEntryOutbox(ctx context.Context, tx pgx.Tx, entry domain.Entry) error {
	payload := events.EntryLogged{
		EventID:    uuid.NewString(),
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		ActivityID: entry.ActivityID,
		Count:      entry.Count,
		LoggedAt:   entry.LoggedAt,
	}
	dedupeKey := fmt.Sprintf("entry:%d:%s", entry.ID, payload.EventID)
	return insertOutbox(ctx, tx, "entry.logged", TopicActivityEntries,
		fmt.Sprintf("%d", entry.UserID), dedupeKey, payload)
}

// Topic names for outbox routing.
const (
	TopicActivityEntries   = "activity_entries"
	TopicAchievementAwards = "achievement_awards"
)

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, topic, partitionKey, dedupeKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5)`

	_, err = tx.Exec(ctx, stmt, eventType, topic, partitionKey, body, dedupeKey)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
