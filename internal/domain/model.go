// Package domain defines the workout entities shared by both node sessions.
package domain

import "time"

// Exercise is the canonical exercise definition owned by a user.
type Exercise struct {
	ID         string
	UserID     string
	Name       string
	ShortName  string
	Category   string
	Bodyweight bool
	CreatedAt  time.Time
}

// DisplayName returns the short name when one is set.
func (e Exercise) DisplayName() string {
	if e.ShortName != "" {
		return e.ShortName
	}
	return e.Name
}

// WorkoutSet is a single logged set. Exercise reference and PerformedAt are
// immutable after creation; weight, reps, RPE and notes may be edited.
type WorkoutSet struct {
	ID          string
	UserID      string
	ExerciseID  string
	PerformedAt time.Time
	Weight      float64
	Reps        int
	RPE         *float64
	Notes       string
	Failed      bool
	CreatedAt   time.Time
}

// SetPatch carries the editable fields of a WorkoutSet. Nil fields are left
// unchanged.
type SetPatch struct {
	Weight *float64
	Reps   *int
	RPE    *float64
	Notes  *string
}

// MetricKind identifies one of the three personal-record metrics.
type MetricKind string

const (
	MetricHeaviestWeight MetricKind = "heaviest_weight"
	MetricBest1RM        MetricKind = "best_1rm"
	MetricBestVolume     MetricKind = "best_volume"
)

// PersonalRecord is the current best for one (exercise, metric) pair. The
// store keeps at most one row per pair; a row is replaced only by a strictly
// better value.
type PersonalRecord struct {
	ID          string
	UserID      string
	ExerciseID  string
	SetID       string
	Metric      MetricKind
	Value       float64
	WorkoutDate *time.Time
	AchievedAt  time.Time
}

// PRResult summarises which metrics a freshly logged set broke. It is
// informational only and feeds no further computation.
type PRResult struct {
	NewWeight bool `json:"new_weight"`
	New1RM    bool `json:"new_1rm"`
	NewVolume bool `json:"new_volume"`
}

// Any reports whether the set broke at least one record.
func (r PRResult) Any() bool {
	return r.NewWeight || r.New1RM || r.NewVolume
}

// LastWeights maps exercise id to the most recently used weight for that
// exercise. Advisory only; rebuilt from recent sets on demand.
type LastWeights map[string]float64
