package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"example.com/liftlink/internal/channel"
	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/wire"
)

// Companion is the wrist-side node session: a read-through mirror of the
// primary's snapshot that never writes to the record store. All writes relay
// through the primary as commands.
type Companion struct {
	channel *channel.Channel
	logger  *log.Logger

	mu          sync.Mutex
	exercises   []wire.Exercise
	todaySets   []wire.Set
	lastWeights domain.LastWeights
	loading     bool
	lastErr     error
}

// NewCompanion constructs a Companion and wires it to the channel: pushes
// replace its caches wholesale, and a reachability-restored event re-issues
// the three pulls.
func NewCompanion(ch *channel.Channel, opts ...Option) *Companion {
	o := options{
		logger: log.New(log.Writer(), "[companion] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Companion{
		channel:     ch,
		logger:      o.logger,
		lastWeights: make(domain.LastWeights),
	}
	ch.HandlePush(c.handlePush)
	ch.OnReachable(func(ctx context.Context) {
		c.RefreshAll(ctx)
	})
	return c
}

// Status reports connectivity, loading state and the last error.
func (c *Companion) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{
		Reachable: c.channel.Reachable(),
		Loading:   c.loading,
	}
	if c.lastErr != nil {
		status.LastErr = c.lastErr.Error()
	}
	return status
}

// Exercises returns the cached denormalized exercises.
func (c *Companion) Exercises() []wire.Exercise {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Exercise(nil), c.exercises...)
}

// TodaySets returns the cached denormalized sets, newest first.
func (c *Companion) TodaySets() []wire.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Set(nil), c.todaySets...)
}

// LastWeights returns the cached per-exercise last-used weights.
func (c *Companion) LastWeights() domain.LastWeights {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(domain.LastWeights, len(c.lastWeights))
	for id, weight := range c.lastWeights {
		out[id] = weight
	}
	return out
}

// RequestExercises pulls the exercise snapshot from the primary. On any
// failure the cache keeps its last good state.
func (c *Companion) RequestExercises(ctx context.Context) ([]wire.Exercise, error) {
	reply, err := c.request(ctx, wire.Envelope{Action: wire.ActionRequestExercises})
	if err != nil {
		return nil, err
	}
	exercises, err := wire.DecodeExercises(reply.Exercises)
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	c.mu.Lock()
	c.exercises = exercises
	c.lastErr = nil
	c.mu.Unlock()
	return c.Exercises(), nil
}

// RequestTodaysSets pulls the today's-sets snapshot from the primary.
func (c *Companion) RequestTodaysSets(ctx context.Context) ([]wire.Set, error) {
	reply, err := c.request(ctx, wire.Envelope{Action: wire.ActionRequestTodaysSets})
	if err != nil {
		return nil, err
	}
	sets, err := wire.DecodeSets(reply.Sets)
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	c.mu.Lock()
	c.todaySets = sets
	c.lastErr = nil
	c.mu.Unlock()
	return c.TodaySets(), nil
}

// RequestLastWeights pulls the last-weight snapshot from the primary.
func (c *Companion) RequestLastWeights(ctx context.Context) (domain.LastWeights, error) {
	reply, err := c.request(ctx, wire.Envelope{Action: wire.ActionRequestLastWeights})
	if err != nil {
		return nil, err
	}
	weights, err := wire.DecodeLastWeights(reply.LastWeights)
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	c.mu.Lock()
	c.lastWeights = weights
	c.lastErr = nil
	c.mu.Unlock()
	return c.LastWeights(), nil
}

// RefreshAll re-issues the three pulls. Used at startup and on every
// reachability-restored event; failures leave the caches untouched.
func (c *Companion) RefreshAll(ctx context.Context) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	if _, err := c.RequestExercises(ctx); err != nil {
		c.logger.Printf("refresh exercises: %v", err)
	}
	if _, err := c.RequestTodaysSets(ctx); err != nil {
		c.logger.Printf("refresh sets: %v", err)
	}
	if _, err := c.RequestLastWeights(ctx); err != nil {
		c.logger.Printf("refresh last weights: %v", err)
	}
}

// LogSet relays a write intent to the primary. On success the returned set is
// optimistically prepended to the local cache; the primary's follow-up push
// replaces the snapshot wholesale anyway. No record computation happens here.
func (c *Companion) LogSet(ctx context.Context, exerciseID string, weight float64, reps int, rpe *float64) (wire.Set, domain.PRResult, error) {
	if err := domain.ValidateLogSet(exerciseID, weight, reps, rpe); err != nil {
		return wire.Set{}, domain.PRResult{}, err
	}

	reply, err := c.request(ctx, wire.Envelope{
		Action:     wire.ActionLogSet,
		ExerciseID: exerciseID,
		Weight:     weight,
		Reps:       reps,
		RPE:        rpe,
	})
	if err != nil {
		return wire.Set{}, domain.PRResult{}, err
	}

	saved, err := wire.DecodeSet(reply.Set)
	if err != nil {
		c.setErr(err)
		return wire.Set{}, domain.PRResult{}, err
	}

	// The primary's follow-up push may already have delivered this set; the
	// optimistic prepend must not duplicate it.
	c.mu.Lock()
	present := false
	for _, cached := range c.todaySets {
		if cached.ID == saved.ID {
			present = true
			break
		}
	}
	if !present {
		c.todaySets = append([]wire.Set{saved}, c.todaySets...)
	}
	c.lastWeights[saved.ExerciseID] = saved.Weight
	c.lastErr = nil
	c.mu.Unlock()

	var result domain.PRResult
	if reply.PRResult != nil {
		result = *reply.PRResult
	}
	return saved, result, nil
}

// request sends one pull/command and normalizes transport and peer failures.
func (c *Companion) request(ctx context.Context, req wire.Envelope) (wire.Envelope, error) {
	reply, err := c.channel.Request(ctx, req)
	if err != nil {
		c.setErr(err)
		return wire.Envelope{}, err
	}
	if !reply.Success {
		err := fmt.Errorf("%w: %s", domain.ErrStoreFailure, reply.Error)
		c.setErr(err)
		return wire.Envelope{}, err
	}
	return reply, nil
}

// handlePush applies a full-replacement snapshot. A payload that fails to
// decode is dropped and the cache keeps its last good state.
func (c *Companion) handlePush(_ context.Context, push wire.Envelope) {
	switch push.Action {
	case wire.ActionExercisesUpdated:
		exercises, err := wire.DecodeExercises(push.Exercises)
		if err != nil {
			c.dropPush(push, err)
			return
		}
		c.mu.Lock()
		c.exercises = exercises
		c.mu.Unlock()

	case wire.ActionSetsUpdated:
		sets, err := wire.DecodeSets(push.Sets)
		if err != nil {
			c.dropPush(push, err)
			return
		}
		c.mu.Lock()
		c.todaySets = sets
		c.mu.Unlock()

	case wire.ActionLastWeightsUpdated:
		weights, err := wire.DecodeLastWeights(push.LastWeights)
		if err != nil {
			c.dropPush(push, err)
			return
		}
		c.mu.Lock()
		c.lastWeights = weights
		c.mu.Unlock()
	}
}

func (c *Companion) dropPush(push wire.Envelope, err error) {
	if errors.Is(err, domain.ErrDecodeFailure) {
		c.logger.Printf("dropped %s push: %v", push.Action, err)
		return
	}
	c.logger.Printf("dropped %s push (unexpected error): %v", push.Action, err)
}

func (c *Companion) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
