// Package autopilot drives a multi-page job application: it reads the job
// description, optionally waits for a tailored resume, then runs a bounded
// loop of fill and advance steps until the application is submitted.
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/types"
)

// Options configures an Engine.
type Options struct {
	MaxSteps      int
	Timings       Timings
	TailoringMode TailoringMode
	// ResumeText and Instructions are passed to the tailorer.
	ResumeText   string
	Instructions string
	OnProgress   ProgressCallback
	History      HistoryRecorder
	Logger       *zap.Logger
	// Sleep replaces the context-aware timer, mainly in tests.
	Sleep Sleeper
}

// DefaultOptions returns the default step ceiling, timings and background tailoring.
func DefaultOptions() Options {
	return Options{
		MaxSteps:      DefaultMaxSteps,
		Timings:       DefaultTimings(),
		TailoringMode: TailoringBackground,
	}
}

// Engine runs the autopilot. An Engine may be reused for sequential runs.
type Engine struct {
	page    page.Automator
	tailor  Tailorer
	session *session.Session
	opts    Options
	logger  *zap.Logger
	sleep   Sleeper
}

// NewEngine creates an engine. tailor may be nil when TailoringMode is disabled.
func NewEngine(p page.Automator, tailor Tailorer, sess *session.Session, opts Options) *Engine {
	if opts.MaxSteps <= 0 || opts.MaxSteps > DefaultMaxSteps {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.TailoringMode == "" {
		opts.TailoringMode = TailoringBackground
	}
	if sess == nil {
		sess = session.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Engine{page: p, tailor: tailor, session: sess, opts: opts, logger: logger, sleep: sleep}
}

// run carries the state of one Run call.
type run struct {
	*Engine
	id    uuid.UUID
	state StepState
	res   *Result
}

// Run executes one autopilot pass. A nil error means the application was
// submitted or the run paused for unresolved fields (Result.Outcome tells which).
// Stopped and exhausted runs return an *EndedError; other failures a
// *PhaseError or *ActionError. The Result is never nil.
//
// Background tailoring does not hold Run back; Result.Tailoring tracks it after return.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	id := uuid.New()
	r := &run{Engine: e, id: id, res: &Result{RunID: id}}
	r.state.Phase = PhaseInit
	r.emit(ProgressEvent{Message: "Starting autopilot"})

	jd, err := r.scanJD(ctx)
	if err != nil {
		return r.finish(ctx, err)
	}

	var task *TailoringTask
	if e.opts.TailoringMode != TailoringDisabled {
		if e.tailor == nil {
			return r.finish(ctx, &PhaseError{Phase: PhaseTailoring, Message: "tailoring is enabled but no tailoring loop is configured"})
		}
		job := tailorJob{
			tailor:       e.tailor,
			session:      e.session,
			jd:           jd,
			resumeText:   e.opts.ResumeText,
			instructions: e.opts.Instructions,
			logger:       r.logger.With(zap.String("run_id", id.String())),
		}

		if e.opts.TailoringMode == TailoringBlocking {
			task = startTailoring(ctx, job)
			r.setPhase(PhaseTailoring)
			r.emit(ProgressEvent{Message: "Waiting for tailored resume"})
			tailored, err := task.Wait(ctx)
			if err != nil {
				return r.finish(ctx, &PhaseError{Phase: PhaseTailoring, Message: "tailoring failed", Cause: err})
			}
			r.res.Resume = tailored
			if err := tailored.RequireReviewerPassed("start autopilot"); err != nil {
				return r.finish(ctx, &PhaseError{Phase: PhaseTailoring, Message: "tailored resume is not ready", Cause: err})
			}
			r.emit(ProgressEvent{Message: "Tailored resume passed review"})
		} else {
			// Background tailoring belongs to the session, not to this run.
			task = startTailoring(context.WithoutCancel(ctx), job)
			r.res.Tailoring = task
		}
	}

	loopErr := r.drive(ctx)

	if r.res.Tailoring != nil {
		select {
		case <-task.Done():
			if task.err != nil {
				r.res.TailoringErr = task.err
				r.emit(ProgressEvent{Message: "Background tailoring failed: " + task.err.Error(), Warning: true})
			} else {
				r.res.Resume = task.resume
			}
		default:
			r.emit(ProgressEvent{Message: "Tailoring is still running in the background"})
		}
	}

	return r.finish(ctx, loopErr)
}

func (r *run) scanJD(ctx context.Context) (*types.JobDescription, error) {
	r.setPhase(PhaseJDScan)
	r.emit(ProgressEvent{Message: "Scanning page for job description"})

	det, err := r.page.DetectJD(ctx)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseJDScan, Message: "job description detection failed", Cause: err}
	}
	if !det.Success {
		msg := det.Error
		if msg == "" {
			msg = "no job description found on the page"
		}
		return nil, &PhaseError{Phase: PhaseJDScan, Message: msg}
	}

	jd, err := r.session.LoadDetected(det.JD)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseJDScan, Message: "detected job description is unusable", Cause: err}
	}
	r.res.JD = jd
	r.emit(ProgressEvent{Message: fmt.Sprintf("Found job description: %s", jd.Title)})
	return jd, nil
}

// drive runs PreApply and the bounded Filling loop.
func (r *run) drive(ctx context.Context) error {
	t := r.opts.Timings

	r.setPhase(PhasePreApply)
	status, err := r.status(ctx)
	if err != nil {
		return err
	}
	if status.ApplyAvailable {
		if err := r.act(ctx, types.StepApply, true); err != nil {
			return err
		}
		if err := r.wait(ctx, t.PreApplySettle); err != nil {
			return err
		}
	}

	for step := 1; step <= r.opts.MaxSteps; step++ {
		r.state.Step = step
		r.res.Steps = step
		r.setPhase(PhaseFilling)

		if err := r.wait(ctx, t.StepSettle); err != nil {
			return err
		}

		status, err := r.status(ctx)
		if err != nil {
			return err
		}
		r.emit(ProgressEvent{Message: fmt.Sprintf("Step %d/%d: %d fillable field(s)", step, r.opts.MaxSteps, status.FillableFieldCount)})

		if hasFields(status) {
			fill, err := r.page.FillForm(ctx)
			if err != nil {
				return &PhaseError{Phase: PhaseFilling, Step: step, Message: "field fill failed", Cause: err}
			}
			r.emit(ProgressEvent{Filled: fill.Filled, Message: fmt.Sprintf("Filled %d of %d field(s)", fill.Filled, fill.Total)})
			if len(fill.Unresolved) > 0 {
				r.res.Unresolved = append([]types.UnresolvedField(nil), fill.Unresolved...)
				r.res.Outcome = OutcomePaused
				r.setPhase(PhasePaused)
				r.emit(ProgressEvent{Message: fmt.Sprintf("Paused: %d field(s) need an answer", len(fill.Unresolved))})
				return nil
			}
		}

		if status, err = r.status(ctx); err != nil {
			return err
		}

		switch {
		case status.SubmitAvailable:
			if err := r.act(ctx, types.StepSubmit, true); err != nil {
				return err
			}
			r.res.Submitted = true
			r.res.Outcome = OutcomeSubmitted
			r.setPhase(PhaseSubmitted)
			r.emit(ProgressEvent{Message: "Application submitted"})
			return nil

		case status.NextAvailable:
			if err := r.act(ctx, types.StepNext, true); err != nil {
				return err
			}
			if err := r.wait(ctx, t.AfterNext); err != nil {
				return err
			}

		case status.ReviewAvailable:
			if err := r.act(ctx, types.StepReview, false); err != nil {
				return err
			}
			if err := r.wait(ctx, t.AfterReview); err != nil {
				return err
			}

		case !hasFields(status):
			r.state.LastAction = types.StepNone
			r.res.Outcome = OutcomeStopped
			r.setPhase(PhaseStopped)
			r.emit(ProgressEvent{Action: types.StepNone, Message: "No action available and no fields remain"})
			return &EndedError{Outcome: OutcomeStopped, Steps: step, Reason: "no workflow action available and no fillable fields remain"}

		default:
			r.state.LastAction = types.StepNone
			r.emit(ProgressEvent{Action: types.StepNone, Message: "No action available yet, fields remain"})
		}
	}

	r.res.Outcome = OutcomeExhausted
	r.setPhase(PhaseExhausted)
	r.emit(ProgressEvent{Message: fmt.Sprintf("Reached the %d step limit", r.opts.MaxSteps)})
	return &EndedError{Outcome: OutcomeExhausted, Steps: r.opts.MaxSteps, Reason: fmt.Sprintf("reached the %d step limit without submitting", r.opts.MaxSteps)}
}

func (r *run) status(ctx context.Context) (*types.WorkflowStatus, error) {
	status, err := r.page.WorkflowStatus(ctx)
	if err != nil {
		return nil, &PhaseError{Phase: r.state.Phase, Step: r.state.Step, Message: "workflow status query failed", Cause: err}
	}
	r.state.FieldsCount = status.FillableFieldCount
	return status, nil
}

// act invokes a workflow action. Strict failures are returned; non-strict ones
// are reported as a warning and swallowed.
func (r *run) act(ctx context.Context, step types.WorkflowStep, strict bool) error {
	res, err := r.page.WorkflowAction(ctx, step)
	if err == nil && !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "page reported failure"
		}
		err = errors.New(msg)
	}

	if err != nil {
		aerr := &ActionError{Step: r.state.Step, Action: step, Message: "workflow action failed", Cause: err}
		if strict {
			return aerr
		}
		r.logger.Warn("non-strict action failed", zap.String("run_id", r.id.String()), zap.Error(aerr))
		r.emit(ProgressEvent{Action: step, Message: fmt.Sprintf("%s failed, continuing: %v", step, err), Warning: true})
		return nil
	}

	r.state.LastAction = step
	r.res.Actions = append(r.res.Actions, step)
	msg := fmt.Sprintf("Clicked %s", step)
	if res.Message != "" {
		msg += ": " + res.Message
	}
	r.emit(ProgressEvent{Action: step, Message: msg})
	return nil
}

func (r *run) wait(ctx context.Context, d time.Duration) error {
	r.state.WaitRemaining = d
	defer func() { r.state.WaitRemaining = 0 }()
	if err := r.sleep(ctx, d); err != nil {
		return &PhaseError{Phase: r.state.Phase, Step: r.state.Step, Message: "interrupted while waiting for the page", Cause: err}
	}
	return nil
}

func (r *run) setPhase(p Phase) {
	r.state.Phase = p
	r.logger.Debug("autopilot phase", zap.String("run_id", r.id.String()), zap.String("phase", string(p)), zap.Int("step", r.state.Step))
}

func (r *run) emit(ev ProgressEvent) {
	if r.opts.OnProgress == nil {
		return
	}
	ev.RunID = r.id.String()
	ev.Phase = r.state.Phase
	ev.Step = r.state.Step
	ev.MaxSteps = r.opts.MaxSteps
	ev.FieldsCount = r.state.FieldsCount
	r.opts.OnProgress(ev)
}

// finish records the outcome and returns the result with err.
func (r *run) finish(ctx context.Context, err error) (*Result, error) {
	var ended *EndedError
	if err != nil && !errors.As(err, &ended) {
		r.res.Outcome = OutcomeFailed
		r.setPhase(PhaseFailed)
		r.emit(ProgressEvent{Message: err.Error(), Warning: true})
	}

	fields := []zap.Field{
		zap.String("run_id", r.id.String()),
		zap.String("outcome", string(r.res.Outcome)),
		zap.Int("steps", r.res.Steps),
	}
	if err != nil {
		r.logger.Warn("autopilot finished", append(fields, zap.Error(err))...)
	} else {
		r.logger.Info("autopilot finished", fields...)
	}

	if r.opts.History != nil {
		title := "Autopilot"
		if r.res.JD != nil && r.res.JD.Title != "" {
			title = r.res.JD.Title
		}
		detail := fmt.Sprintf("%s after %d step(s)", r.res.Outcome, r.res.Steps)
		if herr := r.opts.History.AppendHistory(ctx, types.NewHistoryEntry(types.HistoryAutopilot, title, detail)); herr != nil {
			r.logger.Warn("failed to record history", zap.Error(herr))
		}
	}
	return r.res, err
}

func hasFields(s *types.WorkflowStatus) bool {
	return s.HasFillableFields || s.FillableFieldCount > 0
}
