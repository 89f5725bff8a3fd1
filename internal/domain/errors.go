package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - wrap with fmt.Errorf("...: %w", ...) and match with errors.Is()
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("version conflict")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyGenerating   = errors.New("generation already in progress")
	ErrInvalidState        = errors.New("invalid state")
)

// ConflictError reports an optimistic-concurrency mismatch on a revision write.
// ExpectedVersion/ActualVersion of 0 mean "no revisions yet".
type ConflictError struct {
	ProjectID       string
	ExpectedVersion int
	ActualVersion   int
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("project %s: expected version %d but latest is %d",
		e.ProjectID, e.ExpectedVersion, e.ActualVersion)
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Code returns the stable, client-facing code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrAlreadyGenerating):
		return "already_generating"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

// StatusCode returns the HTTP status for err.
func StatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}

	switch Code(err) {
	case "validation_failed":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "conflict", "already_generating", "invalid_state":
		return http.StatusConflict
	case "insufficient_credits":
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
