package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/server"
)

func TestServerSetup(t *testing.T) {
	resume := writeFile(t, "resume.txt", "Jane Doe")
	a, _ := testApp(t, map[string]any{
		"resume_path": resume,
		"autopilot":   map[string]any{"tailoring": "blocking", "max_steps": 4},
	})

	cfg, deps, err := serverSetup(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8787", cfg.Addr)
	assert.Nil(t, cfg.Validator)
	assert.Equal(t, "Jane Doe", deps.ResumeText)
	assert.Equal(t, 4, deps.Autopilot.MaxSteps)
	assert.NotNil(t, deps.Loop)
	assert.NotNil(t, deps.Fields)
	assert.NotNil(t, deps.OpenPage)

	rec := httptest.NewRecorder()
	server.New(cfg, deps).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fields", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerSetup_Secret(t *testing.T) {
	a, _ := testApp(t, map[string]any{"server": map[string]any{"secret": "local-api-secret"}})

	cfg, deps, err := serverSetup(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, cfg.Validator)

	h := server.New(cfg, deps).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerSetup_OpenPageNeedsURL(t *testing.T) {
	a, _ := testApp(t, map[string]any{})
	_, deps, err := serverSetup(context.Background(), a)
	require.NoError(t, err)

	_, _, err = deps.OpenPage(context.Background(), "")
	assert.ErrorContains(t, err, "page URL is required")
}
