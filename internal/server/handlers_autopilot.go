package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/autopilot"
)

type autopilotRequest struct {
	URL       string `json:"url" validate:"omitempty,url"`
	Tailoring string `json:"tailoring" validate:"omitempty,oneof=disabled background blocking"`
	MaxSteps  int    `json:"max_steps" validate:"gte=0,lte=10"`
}

type autopilotResult struct {
	*autopilot.Result
	Error          string `json:"error,omitempty"`
	TailoringError string `json:"tailoring_error,omitempty"`
	// TailoringPending means background tailoring is still running; its
	// resume shows up on GET /resume once it finishes.
	TailoringPending bool `json:"tailoring_pending,omitempty"`
}

// handleAutopilotStream runs the step engine and streams progress as SSE.
// Events: progress (autopilot.ProgressEvent), result, error, complete.
func (s *Server) handleAutopilotStream(w http.ResponseWriter, r *http.Request) {
	var req autopilotRequest
	if err := decodeRequest(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.deps.OpenPage == nil {
		s.fail(w, r, fmt.Errorf("browser: %w", ErrNotConfigured))
		return
	}
	if !s.autopilotMu.TryLock() {
		s.fail(w, r, ErrAutopilotBusy)
		return
	}
	defer s.autopilotMu.Unlock()

	opts := s.deps.Autopilot
	if req.Tailoring != "" {
		mode, err := autopilot.ParseTailoringMode(req.Tailoring)
		if err != nil {
			s.fail(w, r, &ErrValidation{Field: "tailoring", Message: err.Error()})
			return
		}
		opts.TailoringMode = mode
	}
	if req.MaxSteps > 0 {
		opts.MaxSteps = req.MaxSteps
	}

	var tailor autopilot.Tailorer
	if s.deps.Loop != nil {
		tailor = s.deps.Loop
	}
	if opts.TailoringMode != autopilot.TailoringDisabled && tailor == nil {
		s.fail(w, r, fmt.Errorf("tailoring: %w", ErrNotConfigured))
		return
	}

	p, release, err := s.deps.OpenPage(r.Context(), req.URL)
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, "failed to open application page: "+err.Error())
		return
	}
	defer release()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts.ResumeText = s.deps.ResumeText
	opts.Logger = s.logger
	if s.deps.Repo != nil {
		opts.History = s.deps.Repo
	}
	opts.OnProgress = func(ev autopilot.ProgressEvent) {
		if err := sse.WriteEvent("progress", ev); err != nil {
			s.logger.Debug("progress event dropped", zap.Error(err))
		}
	}

	res, runErr := autopilot.NewEngine(p, tailor, s.deps.Session, opts).Run(r.Context())

	out := autopilotResult{Result: res}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if res.TailoringErr != nil {
		out.TailoringError = res.TailoringErr.Error()
	}
	out.TailoringPending = res.Tailoring != nil && res.Resume == nil && res.TailoringErr == nil
	sse.WriteEvent("result", out) //nolint:errcheck

	if runErr != nil && !errors.Is(runErr, autopilot.ErrEndedWithoutSubmit) {
		sse.WriteError(runErr.Error(), HTTPStatus(runErr))
	}
	sse.WriteComplete(res.RunID.String(), string(res.Outcome))
}
