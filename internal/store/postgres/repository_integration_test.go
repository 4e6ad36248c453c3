//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/liftlink/internal/domain"
)

func TestRepositoryPersistsSetsAndRecords(t *testing.T) {
	ctx := context.Background()
	repo, _ := startRepository(t, ctx)
	userID := uuid.NewString()

	bench, err := repo.InsertExercise(ctx, domain.Exercise{
		UserID:    userID,
		Name:      "Bench Press",
		ShortName: "Bench",
		Category:  "push",
	})
	require.NoError(t, err)
	require.NotEmpty(t, bench.ID)

	first, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  bench.ID,
		PerformedAt: time.Now().UTC().Add(-time.Hour),
		Weight:      100,
		Reps:        5,
	})
	require.NoError(t, err)

	result, err := repo.UpsertPRForSet(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, result.NewWeight)
	require.True(t, result.New1RM)
	require.True(t, result.NewVolume)

	second, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  bench.ID,
		PerformedAt: time.Now().UTC(),
		Weight:      110,
		Reps:        3,
	})
	require.NoError(t, err)

	result, err = repo.UpsertPRForSet(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, result.NewWeight)
	require.True(t, result.New1RM)
	// 110x3 moves less volume than 100x5.
	require.False(t, result.NewVolume)

	records, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	values := map[domain.MetricKind]string{}
	for _, record := range records {
		values[record.Metric] = record.SetID
	}
	require.Equal(t, second.ID, values[domain.MetricHeaviestWeight])
	require.Equal(t, second.ID, values[domain.MetricBest1RM])
	require.Equal(t, first.ID, values[domain.MetricBestVolume])

	sets, err := repo.RecentSets(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Equal(t, second.ID, sets[0].ID, "newest first")
}

func TestRecomputeRepairsDownwardEdit(t *testing.T) {
	ctx := context.Background()
	repo, _ := startRepository(t, ctx)
	userID := uuid.NewString()

	squat, err := repo.InsertExercise(ctx, domain.Exercise{UserID: userID, Name: "Squat"})
	require.NoError(t, err)

	older, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  squat.ID,
		PerformedAt: time.Now().UTC().Add(-2 * time.Hour),
		Weight:      140,
		Reps:        5,
	})
	require.NoError(t, err)
	holder, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  squat.ID,
		PerformedAt: time.Now().UTC(),
		Weight:      150,
		Reps:        5,
	})
	require.NoError(t, err)

	_, err = repo.UpsertPRForSet(ctx, older.ID)
	require.NoError(t, err)
	_, err = repo.UpsertPRForSet(ctx, holder.ID)
	require.NoError(t, err)

	lowered := 130.0
	_, err = repo.UpdateSet(ctx, userID, holder.ID, domain.SetPatch{Weight: &lowered})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputePRs(ctx))

	records, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)
	for _, record := range records {
		if record.Metric == domain.MetricHeaviestWeight {
			require.Equal(t, older.ID, record.SetID, "demoted holder must yield to the runner up")
			require.Equal(t, 140.0, record.Value)
		}
	}

	// Recompute is idempotent: a second pass with no intervening writes
	// yields identical rows, row ids included.
	require.NoError(t, repo.RecomputePRs(ctx))
	again, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, records, again)
}

func TestRecomputeKeepsRowIdentityForUnchangedOutcomes(t *testing.T) {
	ctx := context.Background()
	repo, _ := startRepository(t, ctx)
	userID := uuid.NewString()

	bench, err := repo.InsertExercise(ctx, domain.Exercise{UserID: userID, Name: "Bench Press"})
	require.NoError(t, err)

	only, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  bench.ID,
		PerformedAt: time.Now().UTC(),
		Weight:      100,
		Reps:        5,
	})
	require.NoError(t, err)
	_, err = repo.UpsertPRForSet(ctx, only.ID)
	require.NoError(t, err)

	require.NoError(t, repo.RecomputePRs(ctx))
	before, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)
	require.Len(t, before, 3)

	require.NoError(t, repo.RecomputePRs(ctx))
	after, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)

	require.Equal(t, before, after)
	for i := range before {
		require.Equal(t, before[i].ID, after[i].ID, "unchanged record must keep its row id")
	}
}

func TestDeleteSetCascadesRecords(t *testing.T) {
	ctx := context.Background()
	repo, _ := startRepository(t, ctx)
	userID := uuid.NewString()

	deadlift, err := repo.InsertExercise(ctx, domain.Exercise{UserID: userID, Name: "Deadlift"})
	require.NoError(t, err)

	only, err := repo.InsertSet(ctx, domain.WorkoutSet{
		UserID:      userID,
		ExerciseID:  deadlift.ID,
		PerformedAt: time.Now().UTC(),
		Weight:      180,
		Reps:        3,
	})
	require.NoError(t, err)
	_, err = repo.UpsertPRForSet(ctx, only.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSet(ctx, userID, only.ID))
	require.NoError(t, repo.RecomputePRs(ctx))

	records, err := repo.ListPersonalRecords(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, records)

	err = repo.DeleteSet(ctx, userID, only.ID)
	require.ErrorIs(t, err, domain.ErrSetNotFound)
}

func startRepository(t *testing.T, ctx context.Context) (*Repository, *pgxpool.Pool) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("liftlink"),
		postgrescontainer.WithUsername("liftlink"),
		postgrescontainer.WithPassword("liftlink"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewRepository(pool), pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
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
