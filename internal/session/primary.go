// Package session implements the two device node sessions. The primary owns
// the authoritative snapshot and is the single writer to the record store;
// the companion keeps a read-through mirror fed exclusively by replies and
// pushes. Cache mutations on each side are applied atomically, so neither
// node ever observes a torn snapshot.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"example.com/liftlink/internal/channel"
	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/observability"
	"example.com/liftlink/internal/pr"
	"example.com/liftlink/internal/store"
	"example.com/liftlink/internal/wire"
)

// lastWeightWindow bounds how many recent sets feed the last-weight rebuild.
const lastWeightWindow = 50

// Status is a point-in-time view of a session's health.
type Status struct {
	Reachable bool
	Loading   bool
	LastErr   string
}

// LogSetInput captures a local log action on the primary. Companion-relayed
// commands funnel into the same input, so there is no divergent code path.
type LogSetInput struct {
	ExerciseID string
	Weight     float64
	Reps       int
	RPE        *float64
	Notes      string
	Failed     bool
}

// Option configures a session.
type Option func(*options)

type options struct {
	logger *log.Logger
	now    func() time.Time
}

// WithLogger overrides the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Primary is the authoritative node session.
type Primary struct {
	store   store.RecordStore
	channel *channel.Channel
	userID  string
	logger  *log.Logger
	now     func() time.Time

	mu          sync.Mutex
	exercises   []domain.Exercise
	todaySets   []domain.WorkoutSet
	lastWeights domain.LastWeights
	loading     bool
	lastErr     error
}

// NewPrimary constructs a Primary and wires it to the channel: it answers
// companion requests and re-pushes the full snapshot whenever the peer comes
// back into reach.
func NewPrimary(recordStore store.RecordStore, ch *channel.Channel, userID string, opts ...Option) *Primary {
	o := options{
		logger: log.New(log.Writer(), "[primary] ", log.LstdFlags|log.Lshortfile),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Primary{
		store:       recordStore,
		channel:     ch,
		userID:      userID,
		logger:      o.logger,
		now:         o.now,
		lastWeights: make(domain.LastWeights),
	}
	ch.Handle(p.handleRequest)
	ch.OnReachable(func(ctx context.Context) {
		p.SyncAll(ctx)
	})
	return p
}

// Status reports connectivity, loading state and the last error.
func (p *Primary) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := Status{
		Reachable: p.channel.Reachable(),
		Loading:   p.loading,
	}
	if p.lastErr != nil {
		status.LastErr = p.lastErr.Error()
	}
	return status
}

// Exercises returns the cached exercise snapshot.
func (p *Primary) Exercises() []domain.Exercise {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Exercise(nil), p.exercises...)
}

// TodaySets returns the cached today's-sets snapshot, newest first.
func (p *Primary) TodaySets() []domain.WorkoutSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.WorkoutSet(nil), p.todaySets...)
}

// LastWeights returns the cached per-exercise last-used weights.
func (p *Primary) LastWeights() domain.LastWeights {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(domain.LastWeights, len(p.lastWeights))
	for id, weight := range p.lastWeights {
		out[id] = weight
	}
	return out
}

// FetchExercises refreshes the exercise cache from the store. On failure the
// existing cache stays; stale-but-available beats empty.
func (p *Primary) FetchExercises(ctx context.Context) ([]domain.Exercise, error) {
	exercises, err := p.store.ListExercises(ctx, p.userID)
	if err != nil {
		p.setErr(err)
		return nil, domain.StoreErr(err)
	}

	p.mu.Lock()
	p.exercises = exercises
	p.lastErr = nil
	p.mu.Unlock()

	p.pushExercises(ctx)
	return p.Exercises(), nil
}

// FetchTodaysSets refreshes the today's-sets cache from the store.
func (p *Primary) FetchTodaysSets(ctx context.Context) ([]domain.WorkoutSet, error) {
	from, to := dayBounds(p.now())
	sets, err := p.store.ListSetsBetween(ctx, p.userID, from, to)
	if err != nil {
		p.setErr(err)
		return nil, domain.StoreErr(err)
	}

	p.mu.Lock()
	p.todaySets = sets
	p.lastErr = nil
	p.mu.Unlock()

	p.pushSets(ctx)
	return p.TodaySets(), nil
}

// FetchLastWeights rebuilds the last-weight cache from the most recent sets.
func (p *Primary) FetchLastWeights(ctx context.Context) (domain.LastWeights, error) {
	recent, err := p.store.RecentSets(ctx, p.userID, lastWeightWindow)
	if err != nil {
		p.setErr(err)
		return nil, domain.StoreErr(err)
	}

	weights := make(domain.LastWeights)
	for _, set := range recent {
		// recent is newest first; keep the first weight seen per exercise.
		if _, ok := weights[set.ExerciseID]; !ok {
			weights[set.ExerciseID] = set.Weight
		}
	}

	p.mu.Lock()
	p.lastWeights = weights
	p.lastErr = nil
	p.mu.Unlock()

	p.pushLastWeights(ctx)
	return p.LastWeights(), nil
}

// RefreshAll fetches the three unrelated resources in parallel. Each result
// is applied atomically, so no cache observes a partial update.
func (p *Primary) RefreshAll(ctx context.Context) error {
	p.mu.Lock()
	p.loading = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, errs[0] = p.FetchExercises(ctx)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = p.FetchTodaysSets(ctx)
	}()
	go func() {
		defer wg.Done()
		_, errs[2] = p.FetchLastWeights(ctx)
	}()
	wg.Wait()
	return errors.Join(errs...)
}

// LogSet validates and persists a new set, updates the caches, asks the
// store to evaluate records, and pushes the refreshed snapshots. On store
// failure nothing is cached and the error surfaces; PR evaluation failures
// never abort the flow because the set is already durably saved.
func (p *Primary) LogSet(ctx context.Context, input LogSetInput) (domain.WorkoutSet, domain.PRResult, error) {
	if err := domain.ValidateLogSet(input.ExerciseID, input.Weight, input.Reps, input.RPE); err != nil {
		return domain.WorkoutSet{}, domain.PRResult{}, err
	}

	saved, err := p.store.InsertSet(ctx, domain.WorkoutSet{
		UserID:      p.userID,
		ExerciseID:  input.ExerciseID,
		PerformedAt: p.now(),
		Weight:      input.Weight,
		Reps:        input.Reps,
		RPE:         input.RPE,
		Notes:       input.Notes,
		Failed:      input.Failed,
	})
	if err != nil {
		p.setErr(err)
		return domain.WorkoutSet{}, domain.PRResult{}, domain.StoreErr(err)
	}

	p.mu.Lock()
	p.todaySets = append([]domain.WorkoutSet{saved}, p.todaySets...)
	if p.lastWeights == nil {
		p.lastWeights = make(domain.LastWeights)
	}
	p.lastWeights[saved.ExerciseID] = saved.Weight
	p.lastErr = nil
	p.mu.Unlock()

	result := p.evaluateRecords(ctx, saved)

	p.pushSets(ctx)
	p.pushLastWeights(ctx)
	return saved, result, nil
}

// EditSet patches an existing set and triggers a full record recompute so a
// lowered weight demotes a previous record holder.
func (p *Primary) EditSet(ctx context.Context, setID string, patch domain.SetPatch) (domain.WorkoutSet, error) {
	if err := domain.ValidatePatch(patch); err != nil {
		return domain.WorkoutSet{}, err
	}

	updated, err := p.store.UpdateSet(ctx, p.userID, setID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrSetNotFound) {
			return domain.WorkoutSet{}, err
		}
		p.setErr(err)
		return domain.WorkoutSet{}, domain.StoreErr(err)
	}

	p.mu.Lock()
	for i := range p.todaySets {
		if p.todaySets[i].ID == updated.ID {
			p.todaySets[i] = updated
			break
		}
	}
	p.lastErr = nil
	p.mu.Unlock()

	p.recompute(ctx)
	p.pushSets(ctx)
	return updated, nil
}

// DeleteSet removes a set and triggers a full record recompute.
func (p *Primary) DeleteSet(ctx context.Context, setID string) error {
	if err := p.store.DeleteSet(ctx, p.userID, setID); err != nil {
		if errors.Is(err, domain.ErrSetNotFound) {
			return err
		}
		p.setErr(err)
		return domain.StoreErr(err)
	}

	p.mu.Lock()
	kept := p.todaySets[:0]
	for _, set := range p.todaySets {
		if set.ID != setID {
			kept = append(kept, set)
		}
	}
	p.todaySets = kept
	p.lastErr = nil
	p.mu.Unlock()

	p.recompute(ctx)
	p.pushSets(ctx)
	return nil
}

// CreateExercise persists a new exercise and pushes the refreshed snapshot.
func (p *Primary) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	if exercise.Name == "" {
		return domain.Exercise{}, domain.ErrValidation
	}
	exercise.UserID = p.userID

	saved, err := p.store.InsertExercise(ctx, exercise)
	if err != nil {
		p.setErr(err)
		return domain.Exercise{}, domain.StoreErr(err)
	}

	p.mu.Lock()
	p.exercises = append(p.exercises, saved)
	p.lastErr = nil
	p.mu.Unlock()

	p.pushExercises(ctx)
	return saved, nil
}

// PersonalRecords returns the store's authoritative record rows.
func (p *Primary) PersonalRecords(ctx context.Context) ([]domain.PersonalRecord, error) {
	records, err := p.store.ListPersonalRecords(ctx, p.userID)
	if err != nil {
		p.setErr(err)
		return nil, domain.StoreErr(err)
	}
	return records, nil
}

// ClubTotal sums the best estimated 1RM across squat, bench and deadlift
// from the authoritative record rows. The second return value is false
// unless all three lifts hold a record.
func (p *Primary) ClubTotal(ctx context.Context) (float64, bool, error) {
	records, err := p.PersonalRecords(ctx)
	if err != nil {
		return 0, false, err
	}
	total, ok := pr.ClubTotalFromRecords(p.Exercises(), records)
	return total, ok, nil
}

// SyncAll pushes the full snapshot to the companion. Invoked on every
// reachability-restored event; dropped snapshots from a disconnect are only
// ever recovered by this full resync.
func (p *Primary) SyncAll(ctx context.Context) {
	p.pushExercises(ctx)
	p.pushSets(ctx)
	p.pushLastWeights(ctx)
}

// evaluateRecords runs the per-set upsert and the consistency recompute.
// Failures are logged and swallowed: the logging flow never aborts on them.
func (p *Primary) evaluateRecords(ctx context.Context, saved domain.WorkoutSet) domain.PRResult {
	result, err := p.store.UpsertPRForSet(ctx, saved.ID)
	if err != nil {
		p.logger.Printf("pr upsert for set %s failed: %v", saved.ID, err)
		result = domain.PRResult{}
	}
	if result.NewWeight {
		observability.RecordPRBroken(string(domain.MetricHeaviestWeight))
	}
	if result.New1RM {
		observability.RecordPRBroken(string(domain.MetricBest1RM))
	}
	if result.NewVolume {
		observability.RecordPRBroken(string(domain.MetricBestVolume))
	}

	p.recompute(ctx)
	return result
}

func (p *Primary) recompute(ctx context.Context) {
	if err := p.store.RecomputePRs(ctx); err != nil {
		p.logger.Printf("pr recompute failed: %v", err)
	}
}

// handleRequest services a companion pull or command with the same local
// operations the primary's own UI uses.
func (p *Primary) handleRequest(ctx context.Context, req wire.Envelope) wire.Envelope {
	switch req.Action {
	case wire.ActionRequestExercises:
		exercises, err := p.FetchExercises(ctx)
		if err != nil {
			return failure(req.Action, err)
		}
		blob, err := wire.EncodePayload(wire.FromExercises(exercises))
		if err != nil {
			return failure(req.Action, err)
		}
		return wire.Envelope{Action: req.Action, Success: true, Exercises: blob}

	case wire.ActionRequestTodaysSets:
		sets, err := p.FetchTodaysSets(ctx)
		if err != nil {
			return failure(req.Action, err)
		}
		blob, err := wire.EncodePayload(wire.FromSets(sets))
		if err != nil {
			return failure(req.Action, err)
		}
		return wire.Envelope{Action: req.Action, Success: true, Sets: blob}

	case wire.ActionRequestLastWeights:
		weights, err := p.FetchLastWeights(ctx)
		if err != nil {
			return failure(req.Action, err)
		}
		blob, err := wire.EncodePayload(weights)
		if err != nil {
			return failure(req.Action, err)
		}
		return wire.Envelope{Action: req.Action, Success: true, LastWeights: blob}

	case wire.ActionLogSet:
		saved, result, err := p.LogSet(ctx, LogSetInput{
			ExerciseID: req.ExerciseID,
			Weight:     req.Weight,
			Reps:       req.Reps,
			RPE:        req.RPE,
		})
		if err != nil {
			return failure(wire.ActionLogSetResponse, err)
		}
		blob, err := wire.EncodePayload(wire.FromSet(saved))
		if err != nil {
			return failure(wire.ActionLogSetResponse, err)
		}
		return wire.Envelope{Action: wire.ActionLogSetResponse, Success: true, Set: blob, PRResult: &result}
	}

	return failure(req.Action, domain.ErrDecodeFailure)
}

func (p *Primary) pushExercises(ctx context.Context) {
	blob, err := wire.EncodePayload(wire.FromExercises(p.Exercises()))
	if err != nil {
		p.logger.Printf("encode exercises push: %v", err)
		return
	}
	_ = p.channel.Push(ctx, wire.Envelope{Action: wire.ActionExercisesUpdated, Exercises: blob})
}

func (p *Primary) pushSets(ctx context.Context) {
	blob, err := wire.EncodePayload(wire.FromSets(p.TodaySets()))
	if err != nil {
		p.logger.Printf("encode sets push: %v", err)
		return
	}
	_ = p.channel.Push(ctx, wire.Envelope{Action: wire.ActionSetsUpdated, Sets: blob})
}

func (p *Primary) pushLastWeights(ctx context.Context) {
	blob, err := wire.EncodePayload(p.LastWeights())
	if err != nil {
		p.logger.Printf("encode last-weights push: %v", err)
		return
	}
	_ = p.channel.Push(ctx, wire.Envelope{Action: wire.ActionLastWeightsUpdated, LastWeights: blob})
}

func (p *Primary) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func failure(action wire.Action, err error) wire.Envelope {
	return wire.Envelope{Action: action, Success: false, Error: err.Error()}
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.Add(24 * time.Hour)
}
