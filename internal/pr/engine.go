// Package pr implements personal-record computation over workout sets. All
// functions are pure; the store remains the authority for persisted PR rows.
package pr

import (
	"sort"
	"strings"

	"example.com/liftlink/internal/domain"
)

// MinReps and MaxReps bound the rep range for which the Brzycki estimate is
// defined. Sets outside the range still rank for heaviest weight.
const (
	MinReps = 1
	MaxReps = 12
)

// Estimated1RM converts a weight x reps performance into an estimated
// one-repetition maximum using the Brzycki approximation. The second return
// value is false when reps falls outside the supported range.
func Estimated1RM(weight float64, reps int) (float64, bool) {
	if reps < MinReps || reps > MaxReps {
		return 0, false
	}
	if reps == 1 {
		return weight, true
	}
	return weight * 36 / float64(37-reps), true
}

// SingleSetVolume is the documented best-volume definition: weight times reps
// for one set. The store-side procedures use the same formula.
func SingleSetVolume(set domain.WorkoutSet) float64 {
	return set.Weight * float64(set.Reps)
}

// BestSet pairs a ranked set with the metric value it achieved.
type BestSet struct {
	Set   domain.WorkoutSet
	Value float64
}

// BestWeights returns, per exercise, the heaviest non-failed set. Ties keep
// the earliest-performed set.
func BestWeights(sets []domain.WorkoutSet) map[string]BestSet {
	best := make(map[string]BestSet)
	for _, set := range chronological(sets) {
		if set.Failed {
			continue
		}
		current, ok := best[set.ExerciseID]
		if !ok || set.Weight > current.Value {
			best[set.ExerciseID] = BestSet{Set: set, Value: set.Weight}
		}
	}
	return best
}

// Best1RMs returns, per exercise, the non-failed set with the highest
// estimated 1RM. Sets outside the supported rep range are excluded. Ties keep
// the earliest-performed set.
func Best1RMs(sets []domain.WorkoutSet) map[string]BestSet {
	best := make(map[string]BestSet)
	for _, set := range chronological(sets) {
		if set.Failed {
			continue
		}
		estimate, ok := Estimated1RM(set.Weight, set.Reps)
		if !ok {
			continue
		}
		current, seen := best[set.ExerciseID]
		if !seen || estimate > current.Value {
			best[set.ExerciseID] = BestSet{Set: set, Value: estimate}
		}
	}
	return best
}

// ShouldReplace reports whether candidate supersedes the current record for
// the same (exercise, metric). Records are monotonic: only a strictly better
// value replaces an existing row.
func ShouldReplace(current *domain.PersonalRecord, candidate domain.PersonalRecord) bool {
	if current == nil {
		return true
	}
	return candidate.Value > current.Value
}

// chronological orders sets by performed time so "earliest seen" is stable
// regardless of the newest-first ordering the caches use.
func chronological(sets []domain.WorkoutSet) []domain.WorkoutSet {
	ordered := make([]domain.WorkoutSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PerformedAt.Equal(ordered[j].PerformedAt) {
			return ordered[i].PerformedAt.Before(ordered[j].PerformedAt)
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Canonical lift classification for the club total. Matching is deliberately
// fuzzy: case-insensitive substring on the exercise name, with "front"
// excluding a squat match so front squats never count toward the total.
func classifyLift(name string) (string, bool) {
	lowered := strings.ToLower(name)
	switch {
	case strings.Contains(lowered, "squat") && !strings.Contains(lowered, "front"):
		return "squat", true
	case strings.Contains(lowered, "bench"):
		return "bench", true
	case strings.Contains(lowered, "deadlift"):
		return "deadlift", true
	}
	return "", false
}

// ClubTotalFromRecords sums the best-1RM record rows across squat, bench and
// deadlift. Same presence rule as ClubTotal, but fed by the store's
// authoritative rows instead of a local set scan.
func ClubTotalFromRecords(exercises []domain.Exercise, records []domain.PersonalRecord) (float64, bool) {
	byExercise := make(map[string]float64)
	for _, record := range records {
		if record.Metric == domain.MetricBest1RM {
			byExercise[record.ExerciseID] = record.Value
		}
	}

	lifts := make(map[string]float64, 3)
	for _, exercise := range exercises {
		lift, ok := classifyLift(exercise.Name)
		if !ok {
			continue
		}
		value, ok := byExercise[exercise.ID]
		if !ok {
			continue
		}
		if value > lifts[lift] {
			lifts[lift] = value
		}
	}

	if len(lifts) < 3 {
		return 0, false
	}
	return lifts["squat"] + lifts["bench"] + lifts["deadlift"], true
}

// ClubTotal sums the best estimated 1RM across squat, bench and deadlift.
// It returns false unless every one of the three lifts has at least one
// eligible non-failed set.
func ClubTotal(exercises []domain.Exercise, sets []domain.WorkoutSet) (float64, bool) {
	best := Best1RMs(sets)

	lifts := make(map[string]float64, 3)
	for _, exercise := range exercises {
		lift, ok := classifyLift(exercise.Name)
		if !ok {
			continue
		}
		record, ok := best[exercise.ID]
		if !ok {
			continue
		}
		if record.Value > lifts[lift] {
			lifts[lift] = record.Value
		}
	}

	if len(lifts) < 3 {
		return 0, false
	}
	return lifts["squat"] + lifts["bench"] + lifts["deadlift"], true
}
