// Package api exposes the primary node's loopback HTTP surface. The on-device
// UI process is an external collaborator; it talks to the session through
// these JSON endpoints rather than importing it.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/session"
)

// Handler coordinates HTTP requests with the primary session.
type Handler struct {
	primary *session.Primary
}

// NewHandler builds a Handler.
func NewHandler(primary *session.Primary) *Handler {
	return &Handler{primary: primary}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/exercises", h.exercises)
	mux.HandleFunc("/v1/sets", h.sets)
	mux.HandleFunc("/v1/sets/", h.setByID)
	mux.HandleFunc("/v1/sets/today", h.todaySets)
	mux.HandleFunc("/v1/last-weights", h.lastWeights)
	mux.HandleFunc("/v1/prs", h.personalRecords)
	mux.HandleFunc("/v1/club-total", h.clubTotal)
	mux.HandleFunc("/v1/status", h.status)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for supervisor health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) exercises(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		exercises, err := h.primary.FetchExercises(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExerciseResponses(exercises))
	case http.MethodPost:
		h.createExercise(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req CreateExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "name is required")
		return
	}

	saved, err := h.primary.CreateExercise(r.Context(), domain.Exercise{
		Name:       req.Name,
		ShortName:  req.ShortName,
		Category:   req.Category,
		Bodyweight: req.Bodyweight,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExerciseResponse(saved))
}

func (h *Handler) sets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req LogSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	saved, result, err := h.primary.LogSet(r.Context(), session.LogSetInput{
		ExerciseID: req.ExerciseID,
		Weight:     req.Weight,
		Reps:       req.Reps,
		RPE:        req.RPE,
		Notes:      req.Notes,
		Failed:     req.Failed,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LogSetResponse{Set: toSetResponse(saved), PRResult: result})
}

func (h *Handler) setByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/sets/")
	if id == "" || id == "today" {
		if id == "today" {
			h.todaySets(w, r)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "missing set id")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		h.editSet(w, r, id)
	case http.MethodDelete:
		if err := h.primary.DeleteSet(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) editSet(w http.ResponseWriter, r *http.Request, id string) {
	var req EditSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	updated, err := h.primary.EditSet(r.Context(), id, domain.SetPatch{
		Weight: req.Weight,
		Reps:   req.Reps,
		RPE:    req.RPE,
		Notes:  req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSetResponse(updated))
}

func (h *Handler) todaySets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	sets, err := h.primary.FetchTodaysSets(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSetResponses(sets))
}

func (h *Handler) lastWeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	weights, err := h.primary.FetchLastWeights(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

func (h *Handler) personalRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	records, err := h.primary.PersonalRecords(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

func (h *Handler) clubTotal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	total, ok, err := h.primary.ClubTotal(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClubTotalResponse{Total: total, Complete: ok})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	status := h.primary.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		Reachable: status.Reachable,
		Loading:   status.Loading,
		LastError: status.LastErr,
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrSetNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStoreFailure):
		writeError(w, http.StatusBadGateway, "store_failure", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func toExerciseResponse(exercise domain.Exercise) ExerciseResponse {
	return ExerciseResponse{
		ID:         exercise.ID,
		Name:       exercise.Name,
		ShortName:  exercise.ShortName,
		Category:   exercise.Category,
		Bodyweight: exercise.Bodyweight,
		CreatedAt:  exercise.CreatedAt,
	}
}

func toExerciseResponses(exercises []domain.Exercise) []ExerciseResponse {
	out := make([]ExerciseResponse, 0, len(exercises))
	for _, exercise := range exercises {
		out = append(out, toExerciseResponse(exercise))
	}
	return out
}

func toSetResponse(set domain.WorkoutSet) SetResponse {
	return SetResponse{
		ID:          set.ID,
		ExerciseID:  set.ExerciseID,
		PerformedAt: set.PerformedAt,
		Weight:      set.Weight,
		Reps:        set.Reps,
		RPE:         set.RPE,
		Notes:       set.Notes,
		Failed:      set.Failed,
		CreatedAt:   set.CreatedAt,
	}
}

func toSetResponses(sets []domain.WorkoutSet) []SetResponse {
	out := make([]SetResponse, 0, len(sets))
	for _, set := range sets {
		out = append(out, toSetResponse(set))
	}
	return out
}

func toRecordResponses(records []domain.PersonalRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		var workoutDate *time.Time
		if record.WorkoutDate != nil {
			date := *record.WorkoutDate
			workoutDate = &date
		}
		out = append(out, RecordResponse{
			ID:          record.ID,
			ExerciseID:  record.ExerciseID,
			SetID:       record.SetID,
			Metric:      string(record.Metric),
			Value:       record.Value,
			WorkoutDate: workoutDate,
			AchievedAt:  record.AchievedAt,
		})
	}
	return out
}
