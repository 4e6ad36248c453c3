package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/liftlink/internal/domain"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	rpe := 8.5
	sets, err := EncodePayload([]Set{{
		ID:          "set-1",
		ExerciseID:  "ex-1",
		Weight:      102.5,
		Reps:        3,
		RPE:         &rpe,
		PerformedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	raw, err := MarshalEnvelope(Envelope{
		ID:        "req-1",
		InReplyTo: "req-0",
		Action:    ActionSetsUpdated,
		Sets:      sets,
	})
	require.NoError(t, err)

	env, err := UnmarshalEnvelope(raw)
	require.NoError(t, err)
	require.Equal(t, "req-1", env.ID)
	require.Equal(t, "req-0", env.InReplyTo)
	require.Equal(t, ActionSetsUpdated, env.Action)

	decoded, err := DecodeSets(env.Sets)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, "set-1", decoded[0].ID)
	require.Equal(t, 102.5, decoded[0].Weight)
	require.NotNil(t, decoded[0].RPE)
	require.Equal(t, 8.5, *decoded[0].RPE)
}

func TestUnmarshalRejectsUnknownAction(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte(`{"id":"x","action":"drop_table"}`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)
}

func TestUnmarshalRejectsMalformedJSON(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte(`{"id":`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	_, err := DecodeSets([]byte(`{"not":"a list"}`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)

	_, err = DecodeExercises([]byte(`42`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)

	_, err = DecodeSet([]byte(`[]`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)

	_, err = DecodeLastWeights([]byte(`[1,2]`))
	require.ErrorIs(t, err, domain.ErrDecodeFailure)
}

func TestActionClassification(t *testing.T) {
	for _, action := range []Action{ActionRequestExercises, ActionRequestTodaysSets, ActionRequestLastWeights, ActionLogSet} {
		require.True(t, action.IsRequest(), action)
		require.False(t, action.IsPush(), action)
	}
	for _, action := range []Action{ActionExercisesUpdated, ActionSetsUpdated, ActionLastWeightsUpdated} {
		require.True(t, action.IsPush(), action)
		require.False(t, action.IsRequest(), action)
	}
	require.False(t, ActionHeartbeat.IsRequest())
	require.False(t, ActionHeartbeat.IsPush())
	require.False(t, Action("rename_exercise").Known())
}

func TestFromSetKeepsPrivateFieldsOffTheWire(t *testing.T) {
	set := FromSet(domain.WorkoutSet{
		ID:         "set-1",
		UserID:     "user-1",
		ExerciseID: "ex-1",
		Weight:     100,
		Reps:       5,
		Notes:      "grinder",
		Failed:     true,
	})
	blob, err := EncodePayload(set)
	require.NoError(t, err)
	require.NotContains(t, string(blob), "grinder")
	require.NotContains(t, string(blob), "user-1")
}
