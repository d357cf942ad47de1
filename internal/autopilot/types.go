package autopilot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// DefaultMaxSteps is the step ceiling; configured values are clamped to it.
const DefaultMaxSteps = 10

// Phase is a state of the step engine.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseJDScan    Phase = "jd_scan"
	PhaseTailoring Phase = "tailoring_wait"
	PhasePreApply  Phase = "pre_apply"
	PhaseFilling   Phase = "filling"
	PhaseSubmitted Phase = "submitted"
	PhaseStopped   Phase = "stopped"
	PhasePaused    Phase = "paused"
	PhaseExhausted Phase = "exhausted"
	PhaseFailed    Phase = "failed"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeStopped   Outcome = "stopped"
	OutcomePaused    Outcome = "paused"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// TailoringMode decides how the engine relates to resume tailoring.
type TailoringMode string

const (
	// TailoringDisabled runs the page flow without starting tailoring.
	TailoringDisabled TailoringMode = "disabled"
	// TailoringBackground tailors concurrently; page actions never wait for it.
	TailoringBackground TailoringMode = "background"
	// TailoringBlocking waits for a tailored resume that passed review before touching the page.
	TailoringBlocking TailoringMode = "blocking"
)

// ParseTailoringMode validates a mode name. Empty means background.
func ParseTailoringMode(s string) (TailoringMode, error) {
	switch m := TailoringMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TailoringBackground, nil
	case TailoringDisabled, TailoringBackground, TailoringBlocking:
		return m, nil
	}
	return "", fmt.Errorf("unknown tailoring mode %q (want disabled, background or blocking)", s)
}

// Timings are the settle waits between page operations.
type Timings struct {
	PreApplySettle time.Duration `json:"pre_apply_settle" yaml:"pre_apply_settle"`
	StepSettle     time.Duration `json:"step_settle" yaml:"step_settle"`
	AfterNext      time.Duration `json:"after_next" yaml:"after_next"`
	AfterReview    time.Duration `json:"after_review" yaml:"after_review"`
}

// DefaultTimings returns the waits the application pages are known to need.
func DefaultTimings() Timings {
	return Timings{
		PreApplySettle: 2500 * time.Millisecond,
		StepSettle:     1300 * time.Millisecond,
		AfterNext:      2200 * time.Millisecond,
		AfterReview:    1800 * time.Millisecond,
	}
}

// StepState is the engine's working state for one run.
type StepState struct {
	Step          int
	Phase         Phase
	FieldsCount   int
	LastAction    types.WorkflowStep
	WaitRemaining time.Duration
}

// ProgressEvent represents a progress update during a run.
type ProgressEvent struct {
	RunID       string             `json:"run_id"`
	Phase       Phase              `json:"phase"`
	Step        int                `json:"step"`
	MaxSteps    int                `json:"max_steps"`
	FieldsCount int                `json:"fields_count"`
	Filled      int                `json:"filled,omitempty"`
	Action      types.WorkflowStep `json:"action,omitempty"`
	Message     string             `json:"message"`
	Warning     bool               `json:"warning,omitempty"`
}

// ProgressCallback is called for each progress event, in order.
type ProgressCallback func(event ProgressEvent)

// Result describes a finished run.
type Result struct {
	RunID      uuid.UUID                 `json:"run_id"`
	Outcome    Outcome                   `json:"outcome"`
	Submitted  bool                      `json:"submitted"`
	Steps      int                       `json:"steps"`
	Actions    []types.WorkflowStep      `json:"actions,omitempty"`
	Unresolved []types.UnresolvedField   `json:"unresolved,omitempty"`
	JD         *types.JobDescription     `json:"jd,omitempty"`
	Resume     *tailoring.TailoredResume `json:"resume,omitempty"`
	// Tailoring is set in background mode. It may still be running; Resume and
	// TailoringErr are only filled in when it finished before the run ended.
	Tailoring *TailoringTask `json:"-"`
	// TailoringErr is the non-fatal error of background tailoring, if any.
	TailoringErr error `json:"-"`
}

// Tailorer produces a tailored resume for a JD.
type Tailorer interface {
	Run(ctx context.Context, resumeText string, jd *types.JobDescription, instructions string) (*tailoring.TailoredResume, error)
}

// HistoryRecorder receives one entry per finished run.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
