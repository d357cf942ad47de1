package remote

import "github.com/jonathan/apply-agent/internal/types"

// TailorRequest is the body of POST /tailor.
type TailorRequest struct {
	ResumeText        string `json:"resumeText"`
	JobDescription    string `json:"jobDescription"`
	JobTitle          string `json:"jobTitle,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
	ReviewIterations  int    `json:"reviewIterations"`
	ReviewerMaxPasses int    `json:"reviewerMaxPasses"`
}

// ReviewLogEntry is one iteration reported by the service-side review loop.
type ReviewLogEntry struct {
	Iteration    int           `json:"iteration"`
	ReviewerPass int           `json:"reviewerPass,omitempty"`
	Passed       bool          `json:"passed"`
	Feedback     string        `json:"feedback,omitempty"`
	Issues       []string      `json:"issues,omitempty"`
	Scores       *types.Scores `json:"scores,omitempty"`
}

// Files holds base64-encoded rendered documents.
type Files struct {
	DOCX string `json:"docx,omitempty"`
	PDF  string `json:"pdf,omitempty"`
}

// TailorResponse is the decoded answer of POST /tailor.
type TailorResponse struct {
	Success          bool             `json:"success"`
	Error            string           `json:"error,omitempty"`
	TailoredText     string           `json:"tailoredText"`
	ScoresBefore     *types.Scores    `json:"scoresBefore,omitempty"`
	ScoresAfter      *types.Scores    `json:"scoresAfter,omitempty"`
	ReviewIterations int              `json:"reviewIterations"`
	ReviewLog        []ReviewLogEntry `json:"reviewLog,omitempty"`
	ReviewerPassed   bool             `json:"reviewerPassed"`
	Files            *Files           `json:"files,omitempty"`
}

// ReviewRequest is the body of POST /review.
type ReviewRequest struct {
	TailoredText   string `json:"tailoredText"`
	MasterText     string `json:"masterText"`
	JobDescription string `json:"jobDescription"`
	Feedback       string `json:"feedback,omitempty"`
}

// ReviewResponse is the decoded answer of POST /review.
type ReviewResponse struct {
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	ImprovedText   string        `json:"improvedText"`
	ScoresAfter    *types.Scores `json:"scoresAfter,omitempty"`
	ReviewerPassed bool          `json:"reviewerPassed"`
	Feedback       string        `json:"feedback,omitempty"`
}

// HealthResponse is the decoded answer of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Healthy reports whether the service declared itself usable.
func (h *HealthResponse) Healthy() bool {
	return h != nil && (h.Status == "ok" || h.Status == "healthy")
}

type learnedFieldsPayload struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Fields  types.LearnedFields `json:"fields"`
}

type pushFieldsRequest struct {
	Fields types.LearnedFields `json:"fields"`
}
