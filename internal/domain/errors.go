package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerUnreachable indicates the sync channel reported not-connected at
	// call time. Callers must re-issue after the next reachability event.
	ErrPeerUnreachable = errors.New("peer node is not reachable")
	// ErrStoreFailure wraps record-store access errors.
	ErrStoreFailure = errors.New("record store failure")
	// ErrDecodeFailure marks a malformed or unexpected message payload.
	ErrDecodeFailure = errors.New("message decode failure")
	// ErrValidation rejects an operation before any store call is made.
	ErrValidation = errors.New("validation failed")
	// ErrSetNotFound is returned when a workout set cannot be located.
	ErrSetNotFound = errors.New("workout set not found")
)

// StoreErr wraps err as an ErrStoreFailure, preserving the cause.
func StoreErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

// ValidateLogSet checks a log-set intent. It runs before any store or channel
// call so invalid input never leaves the issuing node.
func ValidateLogSet(exerciseID string, weight float64, reps int, rpe *float64) error {
	if exerciseID == "" {
		return fmt.Errorf("%w: exercise id is required", ErrValidation)
	}
	if weight <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %g", ErrValidation, weight)
	}
	if reps <= 0 {
		return fmt.Errorf("%w: reps must be positive, got %d", ErrValidation, reps)
	}
	if rpe != nil && (*rpe <= 0 || *rpe > 10) {
		return fmt.Errorf("%w: rpe must be in (0,10], got %g", ErrValidation, *rpe)
	}
	return nil
}

// ValidatePatch checks an edit intent against the same bounds as ValidateLogSet.
func ValidatePatch(patch SetPatch) error {
	if patch.Weight != nil && *patch.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %g", ErrValidation, *patch.Weight)
	}
	if patch.Reps != nil && *patch.Reps <= 0 {
		return fmt.Errorf("%w: reps must be positive, got %d", ErrValidation, *patch.Reps)
	}
	if patch.RPE != nil && (*patch.RPE <= 0 || *patch.RPE > 10) {
		return fmt.Errorf("%w: rpe must be in (0,10], got %g", ErrValidation, *patch.RPE)
	}
	return nil
}
