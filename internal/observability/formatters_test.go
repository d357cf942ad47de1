package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/jobdesc"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

func init() {
	color.NoColor = true
}

type stubService struct {
	resp *remote.TailorResponse
}

func (s *stubService) Health(context.Context) (*remote.HealthResponse, error) {
	return &remote.HealthResponse{Status: "ok"}, nil
}

func (s *stubService) Tailor(context.Context, remote.TailorRequest) (*remote.TailorResponse, error) {
	return s.resp, nil
}

func (s *stubService) Review(context.Context, remote.ReviewRequest) (*remote.ReviewResponse, error) {
	return nil, errors.New("unused")
}

func tailored(t *testing.T, resp *remote.TailorResponse) *tailoring.TailoredResume {
	t.Helper()
	jd, err := jobdesc.FromPaste("Platform Engineer", strings.Repeat("Operate Go services on Kubernetes. ", 5))
	require.NoError(t, err)
	r, err := tailoring.NewLoop(&stubService{resp: resp}, tailoring.DefaultOptions()).Tailor(context.Background(), "master", jd, "")
	require.NoError(t, err)
	return r
}

func TestPrintAutopilotEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   autopilot.ProgressEvent
		want []string
	}{
		{name: "phase only", ev: autopilot.ProgressEvent{Phase: autopilot.PhaseJDScan, Message: "Scanning"}, want: []string{"[jd_scan]", "Scanning"}},
		{name: "step", ev: autopilot.ProgressEvent{Phase: autopilot.PhaseFilling, Step: 2, MaxSteps: 10, Message: "Filled 3 of 3"}, want: []string{"[step 2/10]", "Filled 3 of 3"}},
		{name: "warning", ev: autopilot.ProgressEvent{Phase: autopilot.PhaseFilling, Step: 1, MaxSteps: 10, Message: "review failed", Warning: true}, want: []string{"⚠ review failed"}},
		{name: "submitted", ev: autopilot.ProgressEvent{Phase: autopilot.PhaseSubmitted, Step: 3, MaxSteps: 10, Message: "Application submitted"}, want: []string{"✓ Application submitted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf).PrintAutopilotEvent(tt.ev)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			assert.True(t, strings.HasSuffix(buf.String(), "\n"))
		})
	}
}

func TestPrintAutopilotResult_Paused(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	unresolved := make([]types.UnresolvedField, 7)
	for i := range unresolved {
		unresolved[i] = types.UnresolvedField{Key: "text:q" + string(rune('a'+i))}
	}
	unresolved[0].Label = "Visa status"

	p.PrintAutopilotResult(&autopilot.Result{
		Outcome:    autopilot.OutcomePaused,
		Steps:      2,
		Actions:    []types.WorkflowStep{types.StepApply, types.StepNext},
		Unresolved: unresolved,
	}, nil)
	output := buf.String()

	assert.Contains(t, output, "AUTOPILOT RESULT")
	assert.Contains(t, output, "paused")
	assert.Contains(t, output, "apply → next")
	assert.Contains(t, output, "Visa status")
	assert.Contains(t, output, "text:qb")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintAutopilotResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintAutopilotResult(&autopilot.Result{
		Outcome:      autopilot.OutcomeExhausted,
		Steps:        10,
		TailoringErr: errors.New("service down"),
	}, errors.New("autopilot ended"))

	assert.Contains(t, buf.String(), "exhausted")
	assert.Contains(t, buf.String(), "Tailoring failed: service down")
	assert.Contains(t, buf.String(), "Error: autopilot ended")
}

func TestPrintAutopilotResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintAutopilotResult(nil, nil)
	assert.Empty(t, buf.String())
}

func TestPrintTailoredResume(t *testing.T) {
	t.Run("passed", func(t *testing.T) {
		r := tailored(t, &remote.TailorResponse{
			Success:          true,
			TailoredText:     "tailored Go Kubernetes",
			ScoresBefore:     &types.Scores{ATS: 40, Match: 35},
			ScoresAfter:      &types.Scores{ATS: 72, Match: 80},
			ReviewerPassed:   true,
			ReviewIterations: 2,
			Files:            &remote.Files{PDF: "JVBERi0="},
			ReviewLog:        []remote.ReviewLogEntry{{Iteration: 1, Passed: false, Feedback: "add metrics"}, {Iteration: 2, Passed: true}},
		})
		var buf bytes.Buffer
		NewPrinter(&buf).PrintTailoredResume(r)
		output := buf.String()

		assert.Contains(t, output, "TAILORED RESUME")
		assert.Contains(t, output, "Platform Engineer")
		assert.Contains(t, output, "40 → 72 (+32)")
		assert.Contains(t, output, "35 → 80 (+45)")
		assert.Contains(t, output, "PASSED")
		assert.Contains(t, output, "pdf, txt")
		assert.Contains(t, output, "✗ round 1: add metrics")
		assert.Contains(t, output, "✓ round 2")
	})

	t.Run("blocked", func(t *testing.T) {
		r := tailored(t, &remote.TailorResponse{
			Success:      true,
			TailoredText: "tailored",
			ReviewLog:    []remote.ReviewLogEntry{{Iteration: 1, Feedback: "too long"}},
		})
		var buf bytes.Buffer
		NewPrinter(&buf).PrintTailoredResume(r)

		assert.Contains(t, buf.String(), "BLOCKED")
		assert.Contains(t, buf.String(), "too long")
	})

	t.Run("nil", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintTailoredResume(nil)
		assert.Empty(t, buf.String())
	})
}

func TestPrintMergeSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMergeSummary(&fieldsync.Result{
		Direction: fieldsync.DirectionHydrate,
		Persisted: true,
		Summary:   fieldsync.Summary{Added: 2, Updated: 1, Unchanged: 4},
		Total:     7,
	})
	output := buf.String()
	assert.Contains(t, output, "LEARNED FIELDS")
	assert.Contains(t, output, "hydrate")
	assert.Contains(t, output, "Added:     2")
	assert.Contains(t, output, "Total:     7")
	assert.Contains(t, output, "Saved locally")

	buf.Reset()
	p.PrintMergeSummary(&fieldsync.Result{Direction: fieldsync.DirectionSync, Skipped: true})
	assert.Contains(t, buf.String(), "disabled")
	assert.NotContains(t, buf.String(), "┌")
}

func TestPrintLearnedFieldsAndHistory(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLearnedFields(types.LearnedFields{
		"text:city":  {Key: "text:city", Value: "Berlin", UpdatedAt: 2},
		"text:email": {Key: "text:email", Value: "me@example.com", UpdatedAt: 1},
	})
	output := buf.String()
	assert.Contains(t, output, "LEARNED FIELDS (2)")
	assert.Less(t, strings.Index(output, "text:city"), strings.Index(output, "text:email"))

	buf.Reset()
	p.PrintHistory([]types.HistoryEntry{
		{Kind: types.HistoryAutopilot, Title: "Go Engineer", Detail: "submitted after 3 step(s)", At: time.Now()},
	})
	assert.Contains(t, buf.String(), "autopilot")
	assert.Contains(t, buf.String(), "Go Engineer (submitted after 3 step(s))")

	buf.Reset()
	p.PrintHistory(nil)
	assert.Contains(t, buf.String(), "No history yet")
}

func TestPrintHealth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHealth("http://localhost:5001", &remote.HealthResponse{Status: "ok", Version: "1.4"}, nil)
	assert.Contains(t, buf.String(), "✓ http://localhost:5001 is healthy (version 1.4)")

	buf.Reset()
	p.PrintHealth("http://localhost:5001", nil, errors.New("connection refused"))
	assert.Contains(t, buf.String(), "unavailable: connection refused")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrinter_ConcurrentEventsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.PrintAutopilotEvent(autopilot.ProgressEvent{Phase: autopilot.PhaseFilling, Step: 1, MaxSteps: 10, Message: "filling"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.PrintTailoringEvent(tailoring.ProgressEvent{Stage: tailoring.StageTailor, Message: "tailoring"})
		}
	}()
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2*n)
	for _, line := range lines {
		ok := line == "[step 1/10] filling" || line == "["+string(tailoring.StageTailor)+"] tailoring"
		assert.True(t, ok, "unexpected line %q", line)
	}
}
