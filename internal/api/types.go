package api

import (
	"time"

	"example.com/liftlink/internal/domain"
)

// CreateExerciseRequest is the POST /v1/exercises payload.
type CreateExerciseRequest struct {
	Name       string `json:"name"`
	ShortName  string `json:"short_name,omitempty"`
	Category   string `json:"category,omitempty"`
	Bodyweight bool   `json:"bodyweight,omitempty"`
}

// ExerciseResponse mirrors a stored exercise.
type ExerciseResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ShortName  string    `json:"short_name,omitempty"`
	Category   string    `json:"category,omitempty"`
	Bodyweight bool      `json:"bodyweight"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogSetRequest is the POST /v1/sets payload.
type LogSetRequest struct {
	ExerciseID string   `json:"exercise_id"`
	Weight     float64  `json:"weight"`
	Reps       int      `json:"reps"`
	RPE        *float64 `json:"rpe,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Failed     bool     `json:"failed,omitempty"`
}

// EditSetRequest is the PATCH /v1/sets/{id} payload. Absent fields keep
// their stored values.
type EditSetRequest struct {
	Weight *float64 `json:"weight,omitempty"`
	Reps   *int     `json:"reps,omitempty"`
	RPE    *float64 `json:"rpe,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

// SetResponse mirrors a stored workout set.
type SetResponse struct {
	ID          string    `json:"id"`
	ExerciseID  string    `json:"exercise_id"`
	PerformedAt time.Time `json:"performed_at"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	RPE         *float64  `json:"rpe,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Failed      bool      `json:"failed"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogSetResponse pairs the saved set with the record summary.
type LogSetResponse struct {
	Set      SetResponse     `json:"set"`
	PRResult domain.PRResult `json:"pr_result"`
}

// RecordResponse mirrors a personal-record row.
type RecordResponse struct {
	ID          string     `json:"id"`
	ExerciseID  string     `json:"exercise_id"`
	SetID       string     `json:"set_id"`
	Metric      string     `json:"metric"`
	Value       float64    `json:"value"`
	WorkoutDate *time.Time `json:"workout_date,omitempty"`
	AchievedAt  time.Time  `json:"achieved_at"`
}

// ClubTotalResponse reports the three-lift total; Complete is false when any
// of the three lifts lacks a best-1RM record.
type ClubTotalResponse struct {
	Total    float64 `json:"total"`
	Complete bool    `json:"complete"`
}

// StatusResponse mirrors the session status.
type StatusResponse struct {
	Reachable bool   `json:"reachable"`
	Loading   bool   `json:"loading"`
	LastError string `json:"last_error,omitempty"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
