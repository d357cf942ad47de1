package server

import (
	"fmt"
	"net/http"

	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/types"
)

type learnRequest struct {
	Key    string `json:"key" validate:"required,max=500"`
	Type   string `json:"type" validate:"max=50"`
	Value  string `json:"value" validate:"max=10000"`
	Portal string `json:"portal" validate:"max=200"`
}

func (s *Server) syncer(w http.ResponseWriter, r *http.Request) *fieldsync.Syncer {
	if s.deps.Fields == nil {
		s.fail(w, r, fmt.Errorf("field sync: %w", ErrNotConfigured))
	}
	return s.deps.Fields
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	syncer := s.syncer(w, r)
	if syncer == nil {
		return
	}
	fields, err := syncer.Fields(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"fields": fields, "sync_enabled": syncer.Enabled()})
}

func (s *Server) handleHydrate(w http.ResponseWriter, r *http.Request) {
	syncer := s.syncer(w, r)
	if syncer == nil {
		return
	}
	res, err := syncer.Hydrate(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	syncer := s.syncer(w, r)
	if syncer == nil {
		return
	}
	res, err := syncer.Sync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleLearn records a field answer the user typed on a page.
func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	syncer := s.syncer(w, r)
	if syncer == nil {
		return
	}
	var req learnRequest
	if err := decodeRequest(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := syncer.Learn(r.Context(), types.LearnedFieldEntry{
		Key:    req.Key,
		Type:   req.Type,
		Value:  req.Value,
		Portal: req.Portal,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}
