package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBytes = 2 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into v and validates it. An empty body is
// accepted when allowEmpty is set.
func decodeRequest(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return &ErrValidation{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
		}
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ErrValidation{Field: verrs[0].Field(), Message: validationMessage(verrs[0])}
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "url":
		return "must be a URL"
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

// handleHealth reports this server and, when configured, the tailoring service.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Service != nil {
		h, err := s.deps.Service.Health(r.Context())
		if err != nil {
			resp["service"] = map[string]any{"status": "unavailable", "error": err.Error()}
		} else {
			resp["service"] = h
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

type setJDRequest struct {
	Title       string `json:"title" validate:"max=300"`
	Description string `json:"description" validate:"required"`
}

// handleSetJD loads a pasted job description into the session.
func (s *Server) handleSetJD(w http.ResponseWriter, r *http.Request) {
	var req setJDRequest
	if err := decodeRequest(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	jd, err := s.deps.Session.LoadPasted(req.Title, req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, jd)
}

func (s *Server) handleGetJD(w http.ResponseWriter, r *http.Request) {
	jd := s.deps.Session.JobDescription()
	if jd == nil {
		s.fail(w, r, ErrNoJobDescription)
		return
	}
	s.jsonResponse(w, http.StatusOK, jd)
}

func (s *Server) handleResetSession(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Repo == nil {
		s.fail(w, r, fmt.Errorf("history: %w", ErrNotConfigured))
		return
	}
	entries, err := s.deps.Repo.History(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"entries": entries})
}
