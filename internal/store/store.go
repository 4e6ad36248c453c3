// Package store defines the record-store contract both node binaries consume.
// The remote store owns persistence and the authoritative personal-record
// rows; the two PR procedures are remote calls, not local computation.
package store

import (
	"context"
	"time"

	"example.com/liftlink/internal/domain"
)

// RecordStore is the CRUD + procedure surface of the remote record store.
type RecordStore interface {
	ListExercises(ctx context.Context, userID string) ([]domain.Exercise, error)
	InsertExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error)

	// ListSetsBetween returns sets performed in [from, to), newest first.
	ListSetsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.WorkoutSet, error)
	// RecentSets returns the most recent sets for a user, newest first.
	RecentSets(ctx context.Context, userID string, limit int) ([]domain.WorkoutSet, error)
	InsertSet(ctx context.Context, set domain.WorkoutSet) (domain.WorkoutSet, error)
	UpdateSet(ctx context.Context, userID, setID string, patch domain.SetPatch) (domain.WorkoutSet, error)
	DeleteSet(ctx context.Context, userID, setID string) error

	ListPersonalRecords(ctx context.Context, userID string) ([]domain.PersonalRecord, error)
	// UpsertPRForSet asks the store to evaluate one set against the current
	// records and replace any it strictly beats. The result is informational.
	UpsertPRForSet(ctx context.Context, setID string) (domain.PRResult, error)
	// RecomputePRs rebuilds every record row from the full set history. It is
	// idempotent and repairs edge cases the incremental upsert cannot see,
	// such as an edit demoting a previous record holder.
	RecomputePRs(ctx context.Context) error
}
