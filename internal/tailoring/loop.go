// Package tailoring drives the tailor/review convergence loop against the tailoring
// service and guards exports behind the reviewer gate.
package tailoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/scoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// Defaults for the service-side review loop.
const (
	DefaultReviewIterations  = 2
	DefaultReviewerMaxPasses = 6
)

// Service is the remote tailoring/review procedure.
type Service interface {
	Health(ctx context.Context) (*remote.HealthResponse, error)
	Tailor(ctx context.Context, req remote.TailorRequest) (*remote.TailorResponse, error)
	Review(ctx context.Context, req remote.ReviewRequest) (*remote.ReviewResponse, error)
}

// HistoryRecorder receives an entry for every completed tailor or review.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error
}

// Stage identifies a step of the loop for progress reporting.
type Stage string

const (
	StagePreflight Stage = "preflight"
	StageBaseline  Stage = "baseline"
	StageTailor    Stage = "tailor"
	StageReview    Stage = "review"
	StageDone      Stage = "done"
)

// ProgressEvent represents a progress update during tailoring.
type ProgressEvent struct {
	Stage   Stage         `json:"stage"`
	Round   int           `json:"round,omitempty"`
	Message string        `json:"message"`
	Scores  *types.Scores `json:"scores,omitempty"`
	Passed  *bool         `json:"passed,omitempty"`
}

// ProgressCallback is called for each progress event.
type ProgressCallback func(event ProgressEvent)

// Options configures a Loop.
type Options struct {
	ReviewIterations  int
	ReviewerMaxPasses int
	// ExtraReviewRounds is how many local review passes Run may add while the gate is closed.
	ExtraReviewRounds int
	History           HistoryRecorder
	OnProgress        ProgressCallback
	Logger            *zap.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		ReviewIterations:  DefaultReviewIterations,
		ReviewerMaxPasses: DefaultReviewerMaxPasses,
	}
}

// ReviewResult is the outcome of one extra review pass.
type ReviewResult struct {
	Passed   bool         `json:"passed"`
	Round    int          `json:"round"`
	Scores   types.Scores `json:"scores"`
	Feedback string       `json:"feedback,omitempty"`
}

// Loop runs tailoring and review passes. Passes against one resume must not run concurrently.
type Loop struct {
	svc    Service
	opts   Options
	logger *zap.Logger
}

// NewLoop creates a loop. Zero iteration settings fall back to the defaults.
func NewLoop(svc Service, opts Options) *Loop {
	if opts.ReviewIterations <= 0 {
		opts.ReviewIterations = DefaultReviewIterations
	}
	if opts.ReviewerMaxPasses <= 0 {
		opts.ReviewerMaxPasses = DefaultReviewerMaxPasses
	}
	if opts.ExtraReviewRounds < 0 {
		opts.ExtraReviewRounds = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{svc: svc, opts: opts, logger: logger}
}

func (l *Loop) emit(ev ProgressEvent) {
	if l.opts.OnProgress != nil {
		l.opts.OnProgress(ev)
	}
}

// Tailor checks preconditions, scores the master resume locally, and asks the
// service for a tailored draft that has already been through its own review loop.
func (l *Loop) Tailor(ctx context.Context, resumeText string, jd *types.JobDescription, instructions string) (*TailoredResume, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, &Error{Op: "tailor", Message: "precondition failed", Cause: ErrMissingResume}
	}
	if jd == nil {
		return nil, &Error{Op: "tailor", Message: "precondition failed", Cause: ErrMissingJD}
	}

	l.emit(ProgressEvent{Stage: StagePreflight, Message: "Checking tailoring service"})
	if _, err := l.svc.Health(ctx); err != nil {
		return nil, &Error{Op: "tailor", Message: "precondition failed", Cause: fmt.Errorf("%w: %w", ErrServiceUnavailable, err)}
	}

	baseline := scoring.Score(resumeText, jd)
	l.emit(ProgressEvent{Stage: StageBaseline, Message: fmt.Sprintf("Baseline ATS %d, match %d", baseline.ATS, baseline.Match), Scores: &baseline})

	l.emit(ProgressEvent{Stage: StageTailor, Message: fmt.Sprintf("Tailoring with up to %d iterations", l.opts.ReviewIterations)})
	resp, err := l.svc.Tailor(ctx, remote.TailorRequest{
		ResumeText:        resumeText,
		JobDescription:    jd.Description,
		JobTitle:          jd.Title,
		Instructions:      instructions,
		ReviewIterations:  l.opts.ReviewIterations,
		ReviewerMaxPasses: l.opts.ReviewerMaxPasses,
	})
	if err != nil {
		if remote.IsKind(err, remote.KindUnreachable) || remote.IsKind(err, remote.KindTimeout) {
			err = fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		return nil, &Error{Op: "tailor", Message: "tailoring request failed", Cause: err}
	}

	before := baseline
	if resp.ScoresBefore != nil {
		before = *resp.ScoresBefore
	}
	var after types.Scores
	if resp.ScoresAfter != nil {
		after = *resp.ScoresAfter
	} else {
		after = scoring.Score(resp.TailoredText, jd)
	}

	r := &TailoredResume{
		TailoredText:      resp.TailoredText,
		MasterText:        resumeText,
		JobTitle:          jd.Title,
		ATSScore:          after.ATS,
		MatchScore:        after.Match,
		ScoresBefore:      before,
		ScoresAfter:       after,
		ServiceIterations: resp.ReviewIterations,
		ReviewLog:         append([]remote.ReviewLogEntry(nil), resp.ReviewLog...),
	}
	if resp.Files != nil {
		r.Files = *resp.Files
	}
	r.setVerdict(resp.ReviewerPassed, lastFeedback(resp.ReviewLog))

	passed := r.ReviewerPassed()
	l.emit(ProgressEvent{Stage: StageTailor, Message: verdictMessage(r), Scores: &after, Passed: &passed})
	l.logger.Info("resume tailored",
		zap.String("job_title", jd.Title),
		zap.Int("ats_before", before.ATS),
		zap.Int("ats_after", after.ATS),
		zap.Int("service_iterations", resp.ReviewIterations),
		zap.Bool("reviewer_passed", passed))
	l.record(ctx, types.HistoryTailor, jd.Title, verdictMessage(r))

	return r, nil
}

// Review runs one extra reviewer pass. On reply the text is replaced and the gate
// follows the verdict; a failing verdict keeps the new text and reports Passed=false.
func (l *Loop) Review(ctx context.Context, r *TailoredResume, jd *types.JobDescription, feedback string) (*ReviewResult, error) {
	if r == nil || strings.TrimSpace(r.TailoredText) == "" {
		return nil, &Error{Op: "review", Message: "precondition failed", Cause: ErrMissingResume}
	}
	if jd == nil {
		return nil, &Error{Op: "review", Message: "precondition failed", Cause: ErrMissingJD}
	}

	round := r.ReviewRounds + 1
	l.emit(ProgressEvent{Stage: StageReview, Round: round, Message: fmt.Sprintf("Running review round %d", round)})

	resp, err := l.svc.Review(ctx, remote.ReviewRequest{
		TailoredText:   r.TailoredText,
		MasterText:     r.MasterText,
		JobDescription: jd.Description,
		Feedback:       feedback,
	})
	if err != nil {
		if remote.IsKind(err, remote.KindUnreachable) || remote.IsKind(err, remote.KindTimeout) {
			err = fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		return nil, &Error{Op: "review", Message: fmt.Sprintf("review round %d failed", round), Cause: err}
	}

	r.TailoredText = resp.ImprovedText
	if resp.ScoresAfter != nil {
		r.ScoresAfter = *resp.ScoresAfter
	} else {
		r.ScoresAfter = scoring.Score(resp.ImprovedText, jd)
	}
	r.ATSScore = r.ScoresAfter.ATS
	r.MatchScore = r.ScoresAfter.Match
	r.ReviewRounds = round
	r.ReviewLog = append(r.ReviewLog, remote.ReviewLogEntry{
		Iteration: len(r.ReviewLog) + 1,
		Passed:    resp.ReviewerPassed,
		Feedback:  resp.Feedback,
		Scores:    &types.Scores{ATS: r.ScoresAfter.ATS, Match: r.ScoresAfter.Match},
	})
	r.setVerdict(resp.ReviewerPassed, resp.Feedback)

	res := &ReviewResult{Passed: resp.ReviewerPassed, Round: round, Scores: r.ScoresAfter, Feedback: resp.Feedback}
	l.emit(ProgressEvent{Stage: StageReview, Round: round, Message: verdictMessage(r), Scores: &res.Scores, Passed: &res.Passed})
	l.logger.Info("review round finished",
		zap.Int("round", round),
		zap.Bool("reviewer_passed", res.Passed),
		zap.Int("ats", res.Scores.ATS))
	l.record(ctx, types.HistoryReview, r.JobTitle, verdictMessage(r))

	return res, nil
}

// Run tailors and then adds up to ExtraReviewRounds review passes while the gate
// stays closed. A failing extra round ends the loop but keeps the draft.
func (l *Loop) Run(ctx context.Context, resumeText string, jd *types.JobDescription, instructions string) (*TailoredResume, error) {
	r, err := l.Tailor(ctx, resumeText, jd, instructions)
	if err != nil {
		return nil, err
	}

	for i := 0; i < l.opts.ExtraReviewRounds && !r.ReviewerPassed(); i++ {
		if _, err := l.Review(ctx, r, jd, r.GateReason()); err != nil {
			l.logger.Warn("extra review round failed, keeping current draft", zap.Error(err))
			break
		}
	}

	l.emit(ProgressEvent{Stage: StageDone, Message: verdictMessage(r)})
	return r, nil
}

func (l *Loop) record(ctx context.Context, kind types.HistoryKind, title, detail string) {
	if l.opts.History == nil {
		return
	}
	if err := l.opts.History.AppendHistory(ctx, types.NewHistoryEntry(kind, title, detail)); err != nil {
		l.logger.Warn("failed to record history", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func lastFeedback(log []remote.ReviewLogEntry) string {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Feedback != "" {
			return log[i].Feedback
		}
		if len(log[i].Issues) > 0 {
			return strings.Join(log[i].Issues, "; ")
		}
	}
	return ""
}

func verdictMessage(r *TailoredResume) string {
	if r.ReviewerPassed() {
		return fmt.Sprintf("Reviewer passed (ATS %d, match %d)", r.ATSScore, r.MatchScore)
	}
	return fmt.Sprintf("Reviewer did not pass (ATS %d, match %d): %s", r.ATSScore, r.MatchScore, r.GateReason())
}
