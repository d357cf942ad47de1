// Package server provides the local HTTP API that drives the orchestrator.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/apply-agent/internal/jobdesc"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/storage"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

// ErrNoJobDescription is returned when an operation needs a JD and none is loaded.
var ErrNoJobDescription = errors.New("no job description loaded")

// ErrAutopilotBusy is returned when an autopilot run is already in progress.
var ErrAutopilotBusy = errors.New("an autopilot run is already in progress")

// ErrNotConfigured is returned when a route's collaborator was not wired.
var ErrNotConfigured = errors.New("not configured")

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		verr   *ErrValidation
		jdErr  *jobdesc.ValidationError
		remErr *remote.Error
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &jdErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tailoring.ErrGateClosed), errors.Is(err, ErrAutopilotBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoResume), errors.Is(err, ErrNoJobDescription):
		return http.StatusNotFound
	case errors.Is(err, tailoring.ErrMissingResume), errors.Is(err, tailoring.ErrMissingJD):
		return http.StatusPreconditionFailed
	case errors.Is(err, tailoring.ErrServiceUnavailable), errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &remErr):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
