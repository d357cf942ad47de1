package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/jobdesc"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

const testJD = "We are hiring a backend engineer to build distributed services in Go. " +
	"You will design APIs, operate PostgreSQL and Redis, and mentor engineers across the team."

// isolateEnv keeps developer .env settings from reaching real databases.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "APPLY_SERVICE_URL", "APPLY_SERVICE_SECRET", "APPLY_API_SECRET", "APPLY_LOG_FILE", "APPLY_SYNC_ENABLED", "APPLY_MAX_STEPS"} {
		t.Setenv(k, "")
	}
}

// useConfig writes cfg as JSON and points the --config global at it.
func useConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testApp(t *testing.T, cfg map[string]any) (*app, *bytes.Buffer) {
	t.Helper()
	useConfig(t, cfg)
	var out bytes.Buffer
	a, err := newApp(&out)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, &out
}

// stubService answers tailoring calls with a fixed verdict.
type stubService struct{ passed bool }

func (s stubService) Health(context.Context) (*remote.HealthResponse, error) {
	return &remote.HealthResponse{Status: "ok"}, nil
}

func (s stubService) Tailor(_ context.Context, req remote.TailorRequest) (*remote.TailorResponse, error) {
	return &remote.TailorResponse{
		Success:        true,
		TailoredText:   "tailored " + req.ResumeText,
		ReviewerPassed: s.passed,
		Files:          &remote.Files{PDF: "JVBERi0xLjc="}, // "%PDF-1.7"
	}, nil
}

func (s stubService) Review(context.Context, remote.ReviewRequest) (*remote.ReviewResponse, error) {
	return nil, errors.New("not used")
}

func tailoredResume(t *testing.T, passed bool) *tailoring.TailoredResume {
	t.Helper()
	jd, err := jobdesc.FromPaste("Backend Engineer", testJD)
	require.NoError(t, err)
	r, err := tailoring.NewLoop(stubService{passed: passed}, tailoring.DefaultOptions()).Tailor(context.Background(), "master resume", jd, "")
	require.NoError(t, err)
	return r
}

// getBinaryPath returns the path to the apply_agent binary for testing
func getBinaryPath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", "apply_agent")
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/apply_agent ./cmd/apply_agent'", binaryPath)
	}
	return binaryPath
}

func runBinary(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinaryPath(t), args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
