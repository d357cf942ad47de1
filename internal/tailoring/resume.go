package tailoring

import (
	"encoding/json"

	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/types"
)

// TailoredResume is the AI-tailored draft plus its review state. The reviewer
// flag can only be changed by a Loop; exports check it through RequireReviewerPassed.
type TailoredResume struct {
	TailoredText string
	MasterText   string
	JobTitle     string
	ATSScore     int
	MatchScore   int
	ScoresBefore types.Scores
	ScoresAfter  types.Scores
	// ReviewRounds counts extra review passes run after the initial tailoring.
	ReviewRounds int
	// ServiceIterations is how many review iterations the service ran while tailoring.
	ServiceIterations int
	Files             remote.Files
	ReviewLog         []remote.ReviewLogEntry

	reviewerPassed bool
	gateReason     string
}

// ReviewerPassed reports whether the last reviewer verdict was a pass.
func (r *TailoredResume) ReviewerPassed() bool {
	return r != nil && r.reviewerPassed
}

// GateReason explains why the gate is closed; empty when it is open.
func (r *TailoredResume) GateReason() string {
	if r == nil {
		return "no tailored resume"
	}
	if r.reviewerPassed {
		return ""
	}
	return r.gateReason
}

// RequireReviewerPassed returns a *GateError naming op unless the reviewer passed.
func (r *TailoredResume) RequireReviewerPassed(op string) error {
	if r == nil {
		return &GateError{Operation: op, Reason: "no tailored resume"}
	}
	if !r.reviewerPassed {
		return &GateError{Operation: op, Reason: r.gateReason}
	}
	return nil
}

// Delta is the score improvement over the baseline.
func (r *TailoredResume) Delta() types.Scores {
	return r.ScoresAfter.Delta(r.ScoresBefore)
}

// Snapshot converts the resume to its persisted form.
func (r *TailoredResume) Snapshot() types.ActiveResumeSnapshot {
	return types.ActiveResumeSnapshot{
		Text:           r.TailoredText,
		Scores:         r.ScoresAfter,
		ReviewerPassed: r.reviewerPassed,
		JobTitle:       r.JobTitle,
	}
}

func (r *TailoredResume) setVerdict(passed bool, reason string) {
	r.reviewerPassed = passed
	if passed {
		r.gateReason = ""
		return
	}
	if reason == "" {
		reason = "reviewer did not pass the resume"
	}
	r.gateReason = reason
}

type resumeJSON struct {
	TailoredText      string                  `json:"tailored_text"`
	MasterText        string                  `json:"master_text"`
	JobTitle          string                  `json:"job_title,omitempty"`
	ATSScore          int                     `json:"ats_score"`
	MatchScore        int                     `json:"match_score"`
	ScoresBefore      types.Scores            `json:"scores_before"`
	ScoresAfter       types.Scores            `json:"scores_after"`
	ReviewRounds      int                     `json:"review_rounds"`
	ServiceIterations int                     `json:"service_iterations"`
	ReviewerPassed    bool                    `json:"reviewer_passed"`
	GateReason        string                  `json:"gate_reason,omitempty"`
	Files             remote.Files            `json:"files"`
	ReviewLog         []remote.ReviewLogEntry `json:"review_log,omitempty"`
}

// MarshalJSON includes the reviewer verdict. Resumes are never decoded from JSON,
// so the verdict cannot be forged by a client.
func (r *TailoredResume) MarshalJSON() ([]byte, error) {
	return json.Marshal(resumeJSON{
		TailoredText:      r.TailoredText,
		MasterText:        r.MasterText,
		JobTitle:          r.JobTitle,
		ATSScore:          r.ATSScore,
		MatchScore:        r.MatchScore,
		ScoresBefore:      r.ScoresBefore,
		ScoresAfter:       r.ScoresAfter,
		ReviewRounds:      r.ReviewRounds,
		ServiceIterations: r.ServiceIterations,
		ReviewerPassed:    r.reviewerPassed,
		GateReason:        r.GateReason(),
		Files:             r.Files,
		ReviewLog:         r.ReviewLog,
	})
}
