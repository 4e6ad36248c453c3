// Package postgres implements the record store against PostgreSQL. The PR
// procedures live in the database (see db/postgres/migrations) so the store
// stays the single authority for record rows.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/observability"
)

// Repository provides Postgres-backed persistence for exercises, workout sets
// and personal records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const setColumns = `set_id, user_id, exercise_id, performed_at, weight, reps, rpe, notes, failed, created_at`

// ListExercises returns all exercises owned by the user, ordered by name.
func (r *Repository) ListExercises(ctx context.Context, userID string) ([]domain.Exercise, error) {
	const query = `SELECT exercise_id, user_id, name, short_name, category, bodyweight, created_at
        FROM exercises WHERE user_id=$1 ORDER BY lower(name)`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, domain.StoreErr(err)
	}
	defer rows.Close()

	out := make([]domain.Exercise, 0)
	for rows.Next() {
		var exercise domain.Exercise
		var shortName, category *string
		if err := rows.Scan(&exercise.ID, &exercise.UserID, &exercise.Name, &shortName, &category, &exercise.Bodyweight, &exercise.CreatedAt); err != nil {
			return nil, domain.StoreErr(err)
		}
		exercise.ShortName = deref(shortName)
		exercise.Category = deref(category)
		out = append(out, exercise)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreErr(err)
	}
	return out, nil
}

// InsertExercise persists a new exercise and returns the stored row.
func (r *Repository) InsertExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO exercises (exercise_id, user_id, name, short_name, category, bodyweight, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.pool.Exec(ctx, stmt,
		exercise.ID,
		exercise.UserID,
		exercise.Name,
		nullIfEmpty(exercise.ShortName),
		nullIfEmpty(exercise.Category),
		exercise.Bodyweight,
		exercise.CreatedAt,
	)
	if err != nil {
		return domain.Exercise{}, domain.StoreErr(err)
	}
	return exercise, nil
}

// ListSetsBetween returns sets performed in [from, to), newest first.
func (r *Repository) ListSetsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.WorkoutSet, error) {
	query := `SELECT ` + setColumns + `
        FROM workout_sets WHERE user_id=$1 AND performed_at >= $2 AND performed_at < $3
        ORDER BY performed_at DESC, set_id DESC`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, domain.StoreErr(err)
	}
	defer rows.Close()
	return scanSets(rows)
}

// RecentSets returns the most recent sets for the user, newest first.
func (r *Repository) RecentSets(ctx context.Context, userID string, limit int) ([]domain.WorkoutSet, error) {
	query := `SELECT ` + setColumns + `
        FROM workout_sets WHERE user_id=$1
        ORDER BY performed_at DESC, set_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, domain.StoreErr(err)
	}
	defer rows.Close()
	return scanSets(rows)
}

// InsertSet persists a new workout set and returns the stored row.
func (r *Repository) InsertSet(ctx context.Context, set domain.WorkoutSet) (domain.WorkoutSet, error) {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if set.PerformedAt.IsZero() {
		set.PerformedAt = now
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}

	const stmt = `INSERT INTO workout_sets (` + setColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.pool.Exec(ctx, stmt,
		set.ID,
		set.UserID,
		set.ExerciseID,
		set.PerformedAt,
		set.Weight,
		set.Reps,
		set.RPE,
		nullIfEmpty(set.Notes),
		set.Failed,
		set.CreatedAt,
	)
	if err != nil {
		return domain.WorkoutSet{}, domain.StoreErr(err)
	}
	observability.RecordSetPersisted(set.CreatedAt)
	return set, nil
}

// UpdateSet applies the patch to an existing set and returns the new row.
// Exercise reference and performed time never change.
func (r *Repository) UpdateSet(ctx context.Context, userID, setID string, patch domain.SetPatch) (domain.WorkoutSet, error) {
	const stmt = `UPDATE workout_sets SET
            weight = COALESCE($3, weight),
            reps   = COALESCE($4, reps),
            rpe    = COALESCE($5, rpe),
            notes  = COALESCE($6, notes)
        WHERE user_id=$1 AND set_id=$2
        RETURNING ` + setColumns

	row := r.pool.QueryRow(ctx, stmt, userID, setID, patch.Weight, patch.Reps, patch.RPE, patch.Notes)
	set, err := scanSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkoutSet{}, domain.ErrSetNotFound
		}
		return domain.WorkoutSet{}, domain.StoreErr(err)
	}
	return set, nil
}

// DeleteSet removes a set. Record rows referencing it are repaired by the
// next RecomputePRs call.
func (r *Repository) DeleteSet(ctx context.Context, userID, setID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workout_sets WHERE user_id=$1 AND set_id=$2`, userID, setID)
	if err != nil {
		return domain.StoreErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSetNotFound
	}
	return nil
}

// ListPersonalRecords returns the current record rows for the user.
func (r *Repository) ListPersonalRecords(ctx context.Context, userID string) ([]domain.PersonalRecord, error) {
	const query = `SELECT pr_id, user_id, exercise_id, set_id, metric, value, workout_date, achieved_at
        FROM personal_records WHERE user_id=$1 ORDER BY exercise_id, metric`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, domain.StoreErr(err)
	}
	defer rows.Close()

	out := make([]domain.PersonalRecord, 0)
	for rows.Next() {
		var record domain.PersonalRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.ExerciseID, &record.SetID, &record.Metric, &record.Value, &record.WorkoutDate, &record.AchievedAt); err != nil {
			return nil, domain.StoreErr(err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreErr(err)
	}
	return out, nil
}

// UpsertPRForSet invokes the store-side per-set record evaluation.
func (r *Repository) UpsertPRForSet(ctx context.Context, setID string) (domain.PRResult, error) {
	const call = `SELECT new_weight, new_1rm, new_volume FROM upsert_pr_for_set($1)`

	var result domain.PRResult
	if err := r.pool.QueryRow(ctx, call, setID).Scan(&result.NewWeight, &result.New1RM, &result.NewVolume); err != nil {
		return domain.PRResult{}, domain.StoreErr(err)
	}
	return result, nil
}

// RecomputePRs invokes the store-side full rebuild of all record rows.
func (r *Repository) RecomputePRs(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `SELECT recompute_prs()`); err != nil {
		return domain.StoreErr(err)
	}
	observability.RecordPRRecompute(time.Now().UTC())
	return nil
}

func scanSets(rows pgx.Rows) ([]domain.WorkoutSet, error) {
	out := make([]domain.WorkoutSet, 0)
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, domain.StoreErr(err)
		}
		out = append(out, set)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreErr(err)
	}
	return out, nil
}

func scanSet(row pgx.Row) (domain.WorkoutSet, error) {
	var set domain.WorkoutSet
	var notes *string
	if err := row.Scan(&set.ID, &set.UserID, &set.ExerciseID, &set.PerformedAt, &set.Weight, &set.Reps, &set.RPE, &notes, &set.Failed, &set.CreatedAt); err != nil {
		return domain.WorkoutSet{}, err
	}
	set.Notes = deref(notes)
	return set, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
