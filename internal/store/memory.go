package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/pr"
)

// InMemoryStore is an in-process RecordStore for local development and tests.
// Its PR procedures mirror the Postgres functions, including the single-set
// volume definition (weight x reps).
type InMemoryStore struct {
	mu        sync.RWMutex
	exercises map[string]domain.Exercise
	sets      map[string]domain.WorkoutSet
	records   map[string]domain.PersonalRecord

	failMu   sync.Mutex
	failNext error
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		exercises: make(map[string]domain.Exercise),
		sets:      make(map[string]domain.WorkoutSet),
		records:   make(map[string]domain.PersonalRecord),
	}
}

// FailNextWith forces the next store call to fail with err. Tests use it to
// exercise store-failure paths.
func (s *InMemoryStore) FailNextWith(err error) {
	s.failMu.Lock()
	s.failNext = err
	s.failMu.Unlock()
}

func (s *InMemoryStore) takeFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failNext
	s.failNext = nil
	return err
}

// ListExercises implements RecordStore.
func (s *InMemoryStore) ListExercises(_ context.Context, userID string) ([]domain.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]domain.Exercise, 0)
	for _, exercise := range s.exercises {
		if exercise.UserID == userID {
			out = append(out, exercise)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// InsertExercise implements RecordStore.
func (s *InMemoryStore) InsertExercise(_ context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return domain.Exercise{}, err
	}

	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now().UTC()
	}
	s.exercises[exercise.ID] = exercise
	return exercise, nil
}

// ListSetsBetween implements RecordStore.
func (s *InMemoryStore) ListSetsBetween(_ context.Context, userID string, from, to time.Time) ([]domain.WorkoutSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]domain.WorkoutSet, 0)
	for _, set := range s.sets {
		if set.UserID != userID {
			continue
		}
		if set.PerformedAt.Before(from) || !set.PerformedAt.Before(to) {
			continue
		}
		out = append(out, set)
	}
	sortNewestFirst(out)
	return out, nil
}

// RecentSets implements RecordStore.
func (s *InMemoryStore) RecentSets(_ context.Context, userID string, limit int) ([]domain.WorkoutSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]domain.WorkoutSet, 0)
	for _, set := range s.sets {
		if set.UserID == userID {
			out = append(out, set)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertSet implements RecordStore.
func (s *InMemoryStore) InsertSet(_ context.Context, set domain.WorkoutSet) (domain.WorkoutSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return domain.WorkoutSet{}, err
	}

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
	s.sets[set.ID] = set
	return set, nil
}

// UpdateSet implements RecordStore. Exercise reference and performed time are
// immutable; only the patch fields change.
func (s *InMemoryStore) UpdateSet(_ context.Context, userID, setID string, patch domain.SetPatch) (domain.WorkoutSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return domain.WorkoutSet{}, err
	}

	set, ok := s.sets[setID]
	if !ok || set.UserID != userID {
		return domain.WorkoutSet{}, domain.ErrSetNotFound
	}
	if patch.Weight != nil {
		set.Weight = *patch.Weight
	}
	if patch.Reps != nil {
		set.Reps = *patch.Reps
	}
	if patch.RPE != nil {
		set.RPE = patch.RPE
	}
	if patch.Notes != nil {
		set.Notes = *patch.Notes
	}
	s.sets[setID] = set
	return set, nil
}

// DeleteSet implements RecordStore.
func (s *InMemoryStore) DeleteSet(_ context.Context, userID, setID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	set, ok := s.sets[setID]
	if !ok || set.UserID != userID {
		return domain.ErrSetNotFound
	}
	delete(s.sets, setID)
	return nil
}

// ListPersonalRecords implements RecordStore.
func (s *InMemoryStore) ListPersonalRecords(_ context.Context, userID string) ([]domain.PersonalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]domain.PersonalRecord, 0)
	for _, record := range s.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExerciseID != out[j].ExerciseID {
			return out[i].ExerciseID < out[j].ExerciseID
		}
		return out[i].Metric < out[j].Metric
	})
	return out, nil
}

// UpsertPRForSet implements the store-side per-set record evaluation.
func (s *InMemoryStore) UpsertPRForSet(_ context.Context, setID string) (domain.PRResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return domain.PRResult{}, err
	}

	set, ok := s.sets[setID]
	if !ok {
		return domain.PRResult{}, domain.ErrSetNotFound
	}
	if set.Failed {
		return domain.PRResult{}, nil
	}

	var result domain.PRResult
	result.NewWeight = s.upsertRecord(set, domain.MetricHeaviestWeight, set.Weight)
	if estimate, eligible := pr.Estimated1RM(set.Weight, set.Reps); eligible {
		result.New1RM = s.upsertRecord(set, domain.MetricBest1RM, estimate)
	}
	result.NewVolume = s.upsertRecord(set, domain.MetricBestVolume, pr.SingleSetVolume(set))
	return result, nil
}

// RecomputePRs rebuilds all record rows from the full set history. Calling it
// twice in a row changes nothing on the second pass.
func (s *InMemoryStore) RecomputePRs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	preserved := make(map[string]domain.PersonalRecord, len(s.records))
	for key, record := range s.records {
		preserved[key] = record
	}
	s.records = make(map[string]domain.PersonalRecord)

	byUser := make(map[string][]domain.WorkoutSet)
	for _, set := range s.sets {
		byUser[set.UserID] = append(byUser[set.UserID], set)
	}

	for _, sets := range byUser {
		for _, best := range pr.BestWeights(sets) {
			s.writeRecord(best.Set, domain.MetricHeaviestWeight, best.Value, preserved)
		}
		for _, best := range pr.Best1RMs(sets) {
			s.writeRecord(best.Set, domain.MetricBest1RM, best.Value, preserved)
		}
		for _, best := range bestVolumes(sets) {
			s.writeRecord(best.Set, domain.MetricBestVolume, best.Value, preserved)
		}
	}
	return nil
}

// upsertRecord replaces the record row for (exercise, metric) when value is
// strictly better. Reports whether a replacement happened.
func (s *InMemoryStore) upsertRecord(set domain.WorkoutSet, metric domain.MetricKind, value float64) bool {
	key := recordKey(set.UserID, set.ExerciseID, metric)
	candidate := recordFor(set, metric, value)
	if existing, ok := s.records[key]; ok {
		if !pr.ShouldReplace(&existing, candidate) {
			return false
		}
	}
	s.records[key] = candidate
	return true
}

// writeRecord installs a recomputed row, keeping the previous row identity
// when the outcome is unchanged so recompute is observably idempotent.
func (s *InMemoryStore) writeRecord(set domain.WorkoutSet, metric domain.MetricKind, value float64, preserved map[string]domain.PersonalRecord) {
	key := recordKey(set.UserID, set.ExerciseID, metric)
	if prev, ok := preserved[key]; ok && prev.SetID == set.ID && prev.Value == value {
		s.records[key] = prev
		return
	}
	s.records[key] = recordFor(set, metric, value)
}

func recordFor(set domain.WorkoutSet, metric domain.MetricKind, value float64) domain.PersonalRecord {
	day := set.PerformedAt.Truncate(24 * time.Hour)
	return domain.PersonalRecord{
		ID:          uuid.NewString(),
		UserID:      set.UserID,
		ExerciseID:  set.ExerciseID,
		SetID:       set.ID,
		Metric:      metric,
		Value:       value,
		WorkoutDate: &day,
		AchievedAt:  set.PerformedAt,
	}
}

func recordKey(userID, exerciseID string, metric domain.MetricKind) string {
	return userID + "|" + exerciseID + "|" + string(metric)
}

func bestVolumes(sets []domain.WorkoutSet) map[string]pr.BestSet {
	best := make(map[string]pr.BestSet)
	ordered := make([]domain.WorkoutSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PerformedAt.Before(ordered[j].PerformedAt)
	})
	for _, set := range ordered {
		if set.Failed {
			continue
		}
		volume := pr.SingleSetVolume(set)
		current, ok := best[set.ExerciseID]
		if !ok || volume > current.Value {
			best[set.ExerciseID] = pr.BestSet{Set: set, Value: volume}
		}
	}
	return best
}

func sortNewestFirst(sets []domain.WorkoutSet) {
	sort.Slice(sets, func(i, j int) bool {
		if !sets[i].PerformedAt.Equal(sets[j].PerformedAt) {
			return sets[i].PerformedAt.After(sets[j].PerformedAt)
		}
		return sets[i].ID > sets[j].ID
	})
}
