package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// replayPage returns statuses in order and repeats the last one.
type replayPage struct {
	statuses []types.WorkflowStatus
	actions  []types.WorkflowStep
}

func (p *replayPage) DetectJD(context.Context) (*types.DetectResult, error) {
	return &types.DetectResult{Success: true, JD: types.DetectedJD{Title: "Backend Engineer", Description: testJD}}, nil
}

func (p *replayPage) WorkflowAction(_ context.Context, step types.WorkflowStep) (*types.ActionResult, error) {
	p.actions = append(p.actions, step)
	return &types.ActionResult{Success: true}, nil
}

func (p *replayPage) WorkflowStatus(context.Context) (*types.WorkflowStatus, error) {
	s := p.statuses[0]
	if len(p.statuses) > 1 {
		p.statuses = p.statuses[1:]
	}
	return &s, nil
}

func (p *replayPage) FillForm(context.Context) (*types.FillResult, error) {
	return &types.FillResult{}, nil
}

func noWaitOptions() autopilot.Options {
	opts := autopilot.DefaultOptions()
	opts.Timings = autopilot.Timings{}
	opts.TailoringMode = autopilot.TailoringDisabled
	return opts
}

func TestDriveAutopilot(t *testing.T) {
	tests := []struct {
		name     string
		statuses []types.WorkflowStatus
		wantErr  string
		wantOut  string
	}{
		{
			name:     "submitted",
			statuses: []types.WorkflowStatus{{}, {}, {SubmitAvailable: true}},
			wantOut:  "submitted",
		},
		{
			name:     "stopped without a control",
			statuses: []types.WorkflowStatus{{}},
			wantErr:  "application was not submitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := testApp(t, map[string]any{"export_dir": t.TempDir()})
			p := &replayPage{statuses: tt.statuses}

			err := driveAutopilot(context.Background(), a, p, nil, noWaitOptions())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestDriveAutopilot_ExportsPassedResume(t *testing.T) {
	dir := t.TempDir()
	a, out := testApp(t, map[string]any{"export_dir": dir})
	p := &replayPage{statuses: []types.WorkflowStatus{{}, {}, {SubmitAvailable: true}}}

	opts := noWaitOptions()
	opts.TailoringMode = autopilot.TailoringBlocking
	opts.ResumeText = "master resume"

	err := driveAutopilot(context.Background(), a, p, tailoring.NewLoop(stubService{passed: true}, tailoring.DefaultOptions()), opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Saved ")
	assert.Equal(t, []types.WorkflowStep{types.StepSubmit}, p.actions)
}

func TestDriveAutopilot_PrintsOutcomeBeforeBackgroundResume(t *testing.T) {
	dir := t.TempDir()
	a, out := testApp(t, map[string]any{"export_dir": dir})
	p := &replayPage{statuses: []types.WorkflowStatus{{}, {}, {SubmitAvailable: true}}}

	opts := noWaitOptions()
	opts.TailoringMode = autopilot.TailoringBackground
	opts.ResumeText = "master resume"

	err := driveAutopilot(context.Background(), a, p, tailoring.NewLoop(stubService{passed: true}, tailoring.DefaultOptions()), opts)
	require.NoError(t, err)

	got := out.String()
	result := strings.Index(got, "AUTOPILOT RESULT")
	saved := strings.Index(got, "Saved ")
	require.GreaterOrEqual(t, result, 0)
	require.GreaterOrEqual(t, saved, 0)
	assert.Less(t, result, saved)
}

func TestAutopilotCommand_MissingURL(t *testing.T) {
	output, err := runBinary(t, "autopilot")
	assert.Error(t, err)
	assert.Contains(t, output, `required flag(s) "url" not set`)
}
