// Package wire defines the sync-channel message envelope shared by both node
// sessions. Collection payloads travel as opaque serialized blobs so the
// channel never needs to understand entity shape; only the sessions decode
// them.
package wire

import (
	"time"

	"example.com/liftlink/internal/domain"
)

// Action is the closed set of message kinds carried by the sync channel.
type Action string

const (
	// Companion -> primary pulls. Each expects exactly one reply.
	ActionRequestExercises   Action = "request_exercises"
	ActionRequestTodaysSets  Action = "request_todays_sets"
	ActionRequestLastWeights Action = "request_last_weights"

	// Companion -> primary command carrying a write intent.
	ActionLogSet Action = "log_set"

	// Primary -> companion replies and unsolicited full-replacement pushes.
	ActionLogSetResponse     Action = "log_set_response"
	ActionExercisesUpdated   Action = "exercises_updated"
	ActionSetsUpdated        Action = "sets_updated"
	ActionLastWeightsUpdated Action = "last_weights_updated"

	// Transport-internal liveness probe; never surfaces to sessions.
	ActionHeartbeat Action = "heartbeat"
)

// Known reports whether the action belongs to the closed set. Unknown actions
// are treated as a decode failure at the channel boundary.
func (a Action) Known() bool {
	switch a {
	case ActionRequestExercises, ActionRequestTodaysSets, ActionRequestLastWeights,
		ActionLogSet, ActionLogSetResponse,
		ActionExercisesUpdated, ActionSetsUpdated, ActionLastWeightsUpdated,
		ActionHeartbeat:
		return true
	}
	return false
}

// IsRequest reports whether the action expects exactly one reply.
func (a Action) IsRequest() bool {
	switch a {
	case ActionRequestExercises, ActionRequestTodaysSets, ActionRequestLastWeights, ActionLogSet:
		return true
	}
	return false
}

// IsPush reports whether the action is an unsolicited snapshot push.
func (a Action) IsPush() bool {
	switch a {
	case ActionExercisesUpdated, ActionSetsUpdated, ActionLastWeightsUpdated:
		return true
	}
	return false
}

// Envelope is the keyed message envelope. ID correlates a reply with the
// pending request that issued it; pushes carry no InReplyTo.
type Envelope struct {
	ID        string `json:"id"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Action    Action `json:"action"`

	// Opaque collection payloads.
	Exercises   []byte `json:"exercises,omitempty"`
	Sets        []byte `json:"sets,omitempty"`
	LastWeights []byte `json:"last_weights,omitempty"`

	// Log-set command fields.
	ExerciseID string   `json:"exercise_id,omitempty"`
	Weight     float64  `json:"weight,omitempty"`
	Reps       int      `json:"reps,omitempty"`
	RPE        *float64 `json:"rpe,omitempty"`

	// Reply fields.
	Success  bool             `json:"success,omitempty"`
	Error    string           `json:"error,omitempty"`
	Set      []byte           `json:"set,omitempty"`
	PRResult *domain.PRResult `json:"pr_result,omitempty"`
}

// Exercise is the denormalized exercise copy the companion caches.
type Exercise struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

// Set is the denormalized workout-set copy the companion caches. Notes and
// the failed flag stay on the primary.
type Set struct {
	ID          string    `json:"id"`
	ExerciseID  string    `json:"exercise_id"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	RPE         *float64  `json:"rpe,omitempty"`
	PerformedAt time.Time `json:"performed_at"`
}

// FromExercise denormalizes a domain exercise for the wire.
func FromExercise(exercise domain.Exercise) Exercise {
	return Exercise{
		ID:        exercise.ID,
		Name:      exercise.Name,
		ShortName: exercise.ShortName,
	}
}

// FromSet denormalizes a domain set for the wire.
func FromSet(set domain.WorkoutSet) Set {
	return Set{
		ID:          set.ID,
		ExerciseID:  set.ExerciseID,
		Weight:      set.Weight,
		Reps:        set.Reps,
		RPE:         set.RPE,
		PerformedAt: set.PerformedAt,
	}
}

// FromExercises maps a snapshot of domain exercises onto wire copies.
func FromExercises(exercises []domain.Exercise) []Exercise {
	out := make([]Exercise, 0, len(exercises))
	for _, exercise := range exercises {
		out = append(out, FromExercise(exercise))
	}
	return out
}

// FromSets maps a snapshot of domain sets onto wire copies.
func FromSets(sets []domain.WorkoutSet) []Set {
	out := make([]Set, 0, len(sets))
	for _, set := range sets {
		out = append(out, FromSet(set))
	}
	return out
}
