//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/jtiemann/activity-tracker/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("tracker"),
		postgrescontainer.WithUsername("tracker"),
		postgrescontainer.WithPassword("tracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

func TestRepositoryAwardUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity, err := repo.CreateActivity(ctx, domain.Activity{UserID: 1, Name: "Run", Unit: "km"})
	require.NoError(t, err)

	defs, err := repo.Catalog(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, defs, "seed migration populates the catalog")
	def := defs[0]

	award := domain.Award{
		UserID:       1,
		DefinitionID: def.ID,
		ActivityID:   &activity.ID,
		EarnedAt:     time.Now().UTC(),
	}

	_, err = repo.Award(ctx, award)
	require.NoError(t, err)

	_, err = repo.Award(ctx, award)
	require.ErrorIs(t, err, domain.ErrDuplicateAward)

	// NULL-activity awards collide through the COALESCE index too.
	award.ActivityID = nil
	_, err = repo.Award(ctx, award)
	require.NoError(t, err)
	_, err = repo.Award(ctx, award)
	require.ErrorIs(t, err, domain.ErrDuplicateAward)
}

func TestRepositorySumCountsHalfOpen(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity, err := repo.CreateActivity(ctx, domain.Activity{UserID: 1, Name: "Run", Unit: "km"})
	require.NoError(t, err)

	from := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	for _, tc := range []struct {
		at    time.Time
		count float64
	}{
		{from, 5},
		{to.Add(-time.Second), 7},
		{to, 100}, // lands on the end boundary
	} {
		_, err := repo.CreateEntry(ctx, domain.Entry{
			UserID: 1, ActivityID: activity.ID, Count: tc.count, LoggedAt: tc.at,
		})
		require.NoError(t, err)
	}

	total, err := repo.SumCounts(ctx, 1, activity.ID, from, to)
	require.NoError(t, err)
	require.Equal(t, 12.0, total, "end boundary is exclusive")

	total, err = repo.SumCountsThrough(ctx, 1, activity.ID, from, to)
	require.NoError(t, err)
	require.Equal(t, 112.0, total, "inclusive variant counts the boundary entry")
}

func TestRepositoryStreakQuery(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity, err := repo.CreateActivity(ctx, domain.Activity{UserID: 1, Name: "Run", Unit: "km"})
	require.NoError(t, err)

	// Jan 1,2,3 then a gap, then Jan 5. Two entries on Jan 2 collapse to one day.
	for _, d := range []int{1, 2, 2, 3, 5} {
		_, err := repo.CreateEntry(ctx, domain.Entry{
			UserID:     1,
			ActivityID: activity.ID,
			Count:      1,
			LoggedAt:   time.Date(2025, time.January, d, 10, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	streak, err := repo.LongestStreak(ctx, 1, activity.ID)
	require.NoError(t, err)
	require.Equal(t, 3, streak)
}

func TestRepositoryEntryWritesOutboxRow(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity, err := repo.CreateActivity(ctx, domain.Activity{UserID: 1, Name: "Run", Unit: "km"})
	require.NoError(t, err)

	_, err = repo.CreateEntry(ctx, domain.Entry{
		UserID: 1, ActivityID: activity.ID, Count: 5, LoggedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	var pending int
	err = repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE topic=$1 AND published_at IS NULL`,
		TopicActivityEntries,
	).Scan(&pending)
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_seed_achievement_types.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
