package autopilot

import (
	"errors"
	"fmt"

	"github.com/jonathan/apply-agent/internal/types"
)

// ErrEndedWithoutSubmit matches every run that finished its loop without submitting.
var ErrEndedWithoutSubmit = errors.New("autopilot ended without submitting")

// PhaseError is a fatal failure in one phase of the run.
type PhaseError struct {
	Phase   Phase
	Step    int
	Message string
	Cause   error
}

func (e *PhaseError) Error() string {
	where := string(e.Phase)
	if e.Step > 0 {
		where = fmt.Sprintf("%s (step %d)", e.Phase, e.Step)
	}
	if e.Cause != nil {
		return fmt.Sprintf("autopilot %s: %s: %v", where, e.Message, e.Cause)
	}
	return fmt.Sprintf("autopilot %s: %s", where, e.Message)
}

func (e *PhaseError) Unwrap() error {
	return e.Cause
}

// ActionError is a failed strict workflow action.
type ActionError struct {
	Step    int
	Action  types.WorkflowStep
	Message string
	Cause   error
}

func (e *ActionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("autopilot %s action failed at step %d: %s: %v", e.Action, e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("autopilot %s action failed at step %d: %s", e.Action, e.Step, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Cause
}

// EndedError reports a run that stopped or ran out of steps without submitting.
type EndedError struct {
	Outcome Outcome
	Steps   int
	Reason  string
}

func (e *EndedError) Error() string {
	return fmt.Sprintf("%v after %d step(s) (%s): %s", ErrEndedWithoutSubmit, e.Steps, e.Outcome, e.Reason)
}

// Is lets errors.Is(err, ErrEndedWithoutSubmit) match.
func (e *EndedError) Is(target error) bool {
	return target == ErrEndedWithoutSubmit
}
