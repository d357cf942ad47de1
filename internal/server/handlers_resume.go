package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

type tailorRequest struct {
	ResumeText   string `json:"resume_text"`
	Instructions string `json:"instructions" validate:"max=4000"`
}

type reviewRequest struct {
	Feedback string `json:"feedback" validate:"max=4000"`
}

type reviewResponse struct {
	Review *tailoring.ReviewResult   `json:"review"`
	Resume *tailoring.TailoredResume `json:"resume"`
}

// handleTailor runs the convergence loop for the session's JD.
func (s *Server) handleTailor(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loop == nil {
		s.fail(w, r, fmt.Errorf("tailoring: %w", ErrNotConfigured))
		return
	}
	var req tailorRequest
	if err := decodeRequest(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}

	jd := s.deps.Session.JobDescription()
	if jd == nil {
		s.fail(w, r, ErrNoJobDescription)
		return
	}
	text := req.ResumeText
	if strings.TrimSpace(text) == "" {
		text = s.deps.ResumeText
	}

	resume, err := s.deps.Loop.Run(r.Context(), text, jd, req.Instructions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deps.Session.SetResume(resume)
	s.jsonResponse(w, http.StatusOK, resume)
}

// handleReview runs one extra reviewer pass on the session's resume.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loop == nil {
		s.fail(w, r, fmt.Errorf("tailoring: %w", ErrNotConfigured))
		return
	}
	var req reviewRequest
	if err := decodeRequest(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}

	var body []byte
	err := s.deps.Session.WithResume(func(resume *tailoring.TailoredResume, jd *types.JobDescription) error {
		if jd == nil {
			return ErrNoJobDescription
		}
		feedback := req.Feedback
		if feedback == "" {
			feedback = resume.GateReason()
		}
		res, err := s.deps.Loop.Review(r.Context(), resume, jd, feedback)
		if err != nil {
			return err
		}
		body, err = json.Marshal(reviewResponse{Review: res, Resume: resume})
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.rawJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	var body []byte
	err := s.deps.Session.WithResume(func(resume *tailoring.TailoredResume, _ *types.JobDescription) error {
		var err error
		body, err = json.Marshal(resume)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.rawJSON(w, http.StatusOK, body)
}

// handleDownload streams the resume in the requested format once the reviewer passed it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.fail(w, r, fmt.Errorf("export: %w", ErrNotConfigured))
		return
	}
	format, err := tailoring.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, &ErrValidation{Field: "format", Message: err.Error()})
		return
	}

	var (
		data []byte
		name string
	)
	err = s.deps.Session.WithResume(func(resume *tailoring.TailoredResume, _ *types.JobDescription) error {
		var err error
		data, err = s.deps.Exporter.Bytes(resume, format)
		name = tailoring.FileName(resume.JobTitle, format)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleUse persists the resume as the active snapshot.
func (s *Server) handleUse(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.fail(w, r, fmt.Errorf("export: %w", ErrNotConfigured))
		return
	}
	var snap *types.ActiveResumeSnapshot
	err := s.deps.Session.WithResume(func(resume *tailoring.TailoredResume, _ *types.JobDescription) error {
		var err error
		snap, err = s.deps.Exporter.Use(r.Context(), resume)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

func (s *Server) handleActiveResume(w http.ResponseWriter, r *http.Request) {
	if s.deps.Repo == nil {
		s.fail(w, r, fmt.Errorf("storage: %w", ErrNotConfigured))
		return
	}
	snap, err := s.deps.Repo.LoadActiveResume(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if snap == nil {
		s.errorResponse(w, http.StatusNotFound, "no active resume")
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

// rawJSON writes an already encoded JSON body.
func (s *Server) rawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
