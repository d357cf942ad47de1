// Package page talks to the field-detection/fill engine that lives inside the application page.
package page

import (
	"context"
	"fmt"

	"github.com/jonathan/apply-agent/internal/types"
)

// Automator is the page-automation collaborator. Every call is one request/response
// round trip; a success=false reply is returned as data, not as an error.
type Automator interface {
	DetectJD(ctx context.Context) (*types.DetectResult, error)
	WorkflowAction(ctx context.Context, step types.WorkflowStep) (*types.ActionResult, error)
	WorkflowStatus(ctx context.Context) (*types.WorkflowStatus, error)
	FillForm(ctx context.Context) (*types.FillResult, error)
}

// Error represents a failed page call.
type Error struct {
	Method  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page %s: %s: %v", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("page %s: %s", e.Method, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
