package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/liftlink/internal/channel"
	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/session"
	"example.com/liftlink/internal/store"
)

const testUser = "00000000-0000-0000-0000-000000000001"

func newTestServer(t *testing.T) (*httptest.Server, *store.InMemoryStore) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	_, primaryEnd, _ := channel.NewMemoryPair()
	ch := channel.New(primaryEnd, channel.WithLogger(log.New(io.Discard, "", 0)))

	memory := store.NewInMemoryStore()
	performedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	primary := session.NewPrimary(memory, ch, testUser,
		session.WithLogger(log.New(io.Discard, "", 0)),
		session.WithClock(func() time.Time { return performedAt }))
	require.NoError(t, ch.Activate(ctx))
	t.Cleanup(func() { _ = ch.Close() })

	mux := http.NewServeMux()
	NewHandler(primary).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, memory
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateExerciseAndList(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/exercises", CreateExerciseRequest{
		Name:      "Bench Press",
		ShortName: "Bench",
		Category:  "push",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ExerciseResponse
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Bench Press", created.Name)

	resp, err := http.Get(server.URL + "/v1/exercises")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []ExerciseResponse
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)
}

func TestCreateExerciseRequiresName(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/exercises", CreateExerciseRequest{ShortName: "?"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "validation_failed", body.Code)
}

func TestLogSetReportsRecords(t *testing.T) {
	server, memory := newTestServer(t)
	bench, err := memory.InsertExercise(context.Background(), domain.Exercise{UserID: testUser, Name: "Bench Press"})
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/v1/sets", LogSetRequest{ExerciseID: bench.ID, Weight: 100, Reps: 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var logged LogSetResponse
	decodeBody(t, resp, &logged)
	require.Equal(t, bench.ID, logged.Set.ExerciseID)
	require.True(t, logged.PRResult.NewWeight)

	resp, err = http.Get(server.URL + "/v1/sets/today")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var today []SetResponse
	decodeBody(t, resp, &today)
	require.Len(t, today, 1)
	require.Equal(t, logged.Set.ID, today[0].ID)
}

func TestLogSetValidationMapsTo400(t *testing.T) {
	server, memory := newTestServer(t)
	bench, err := memory.InsertExercise(context.Background(), domain.Exercise{UserID: testUser, Name: "Bench Press"})
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/v1/sets", LogSetRequest{ExerciseID: bench.ID, Weight: -5, Reps: 5})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "validation_failed", body.Code)
}

func TestStoreFailureMapsTo502(t *testing.T) {
	server, memory := newTestServer(t)
	memory.FailNextWith(errors.New("connection refused"))

	resp, err := http.Get(server.URL + "/v1/sets/today")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "store_failure", body.Code)
}

func TestEditAndDeleteSet(t *testing.T) {
	server, memory := newTestServer(t)
	bench, err := memory.InsertExercise(context.Background(), domain.Exercise{UserID: testUser, Name: "Bench Press"})
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/v1/sets", LogSetRequest{ExerciseID: bench.ID, Weight: 100, Reps: 5})
	var logged LogSetResponse
	decodeBody(t, resp, &logged)

	lowered := 95.0
	raw, err := json.Marshal(EditSetRequest{Weight: &lowered})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPatch, server.URL+"/v1/sets/"+logged.Set.ID, bytes.NewReader(raw))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited SetResponse
	decodeBody(t, resp, &edited)
	require.Equal(t, 95.0, edited.Weight)

	req, err = http.NewRequest(http.MethodDelete, server.URL+"/v1/sets/"+logged.Set.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	req, err = http.NewRequest(http.MethodDelete, server.URL+"/v1/sets/"+logged.Set.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestClubTotalEndpoint(t *testing.T) {
	server, memory := newTestServer(t)
	ctx := context.Background()
	for _, lift := range []struct {
		name   string
		weight float64
	}{
		{"Squat", 200},
		{"Bench Press", 120},
		{"Deadlift", 250},
	} {
		exercise, err := memory.InsertExercise(ctx, domain.Exercise{UserID: testUser, Name: lift.name})
		require.NoError(t, err)
		resp := postJSON(t, server.URL+"/v1/sets", LogSetRequest{ExerciseID: exercise.ID, Weight: lift.weight, Reps: 1})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	// Hydrate the exercise cache so lift names can be classified.
	resp, err := http.Get(server.URL + "/v1/exercises")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/v1/club-total")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var total ClubTotalResponse
	decodeBody(t, resp, &total)
	require.True(t, total.Complete)
	require.InDelta(t, 570, total.Total, 1e-9)
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/v1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status StatusResponse
	decodeBody(t, resp, &status)
	require.True(t, status.Reachable)
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/prs", struct{}{})
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
