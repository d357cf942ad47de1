package tailoring

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingResume means there is no resume text to tailor.
	ErrMissingResume = errors.New("no resume text provided")
	// ErrMissingJD means no job description was detected or pasted.
	ErrMissingJD = errors.New("no job description available")
	// ErrServiceUnavailable means the tailoring service could not be reached or is unhealthy.
	ErrServiceUnavailable = errors.New("tailoring service is unavailable")
	// ErrGateClosed means the reviewer has not passed the resume.
	ErrGateClosed = errors.New("reviewer gate is closed")
)

// Error represents a failed tailoring or review operation.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GateError is returned by gated operations while the reviewer has not passed the resume.
type GateError struct {
	Operation string
	Reason    string
}

func (e *GateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s: reviewer gate is closed: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("cannot %s: reviewer gate is closed", e.Operation)
}

// Is lets errors.Is(err, ErrGateClosed) match.
func (e *GateError) Is(target error) bool {
	return target == ErrGateClosed
}
