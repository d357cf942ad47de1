package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/jobdesc"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/storage"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "description", Message: "is required"}
	assert.Equal(t, "validation error: description - is required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "ErrValidation", err: &ErrValidation{Field: "format", Message: "unknown"}, expected: http.StatusBadRequest},
		{name: "jd validation", err: &jobdesc.ValidationError{Field: "description", Message: "too short"}, expected: http.StatusUnprocessableEntity},
		{name: "gate closed", err: &tailoring.GateError{Operation: "use resume"}, expected: http.StatusConflict},
		{name: "busy", err: ErrAutopilotBusy, expected: http.StatusConflict},
		{name: "no resume", err: session.ErrNoResume, expected: http.StatusNotFound},
		{name: "no jd", err: ErrNoJobDescription, expected: http.StatusNotFound},
		{
			name:     "missing resume text",
			err:      &tailoring.Error{Op: "tailor", Message: "precondition failed", Cause: tailoring.ErrMissingResume},
			expected: http.StatusPreconditionFailed,
		},
		{
			name:     "service unavailable",
			err:      &tailoring.Error{Op: "tailor", Cause: fmt.Errorf("%w: %w", tailoring.ErrServiceUnavailable, &remote.Error{Kind: remote.KindUnreachable})},
			expected: http.StatusServiceUnavailable,
		},
		{name: "not configured", err: fmt.Errorf("field sync: %w", ErrNotConfigured), expected: http.StatusServiceUnavailable},
		{name: "invalid payload", err: &tailoring.Error{Op: "tailor", Cause: &remote.Error{Kind: remote.KindInvalidPayload}}, expected: http.StatusBadGateway},
		{name: "quota", err: fmt.Errorf("save: %w", storage.ErrQuotaExceeded), expected: http.StatusInsufficientStorage},
		{name: "Unknown error", err: assert.AnError, expected: http.StatusInternalServerError},
		{name: "Nil error", err: nil, expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
