package types

// WorkflowStep names an action the page collaborator can perform on the application flow.
type WorkflowStep string

const (
	StepApply  WorkflowStep = "apply"
	StepNext   WorkflowStep = "next"
	StepReview WorkflowStep = "review"
	StepSubmit WorkflowStep = "submit"
	// StepNone is recorded when no workflow action was available.
	StepNone WorkflowStep = "none"
)

// Valid reports whether the step is one the collaborator accepts.
func (s WorkflowStep) Valid() bool {
	switch s {
	case StepApply, StepNext, StepReview, StepSubmit:
		return true
	}
	return false
}

// WorkflowStatus is the page collaborator's view of the current application page.
type WorkflowStatus struct {
	FillableFieldCount int            `json:"fillableFieldCount"`
	HasFillableFields  bool           `json:"hasFillableFields"`
	ApplyAvailable     bool           `json:"applyAvailable"`
	NextAvailable      bool           `json:"nextAvailable"`
	ReviewAvailable    bool           `json:"reviewAvailable"`
	SubmitAvailable    bool           `json:"submitAvailable"`
	ActionCounts       map[string]int `json:"actionCounts,omitempty"`
}

// UnresolvedField is a fillable field for which no known answer exists.
type UnresolvedField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// FillResult reports what a fill pass did.
type FillResult struct {
	Filled     int               `json:"filled"`
	Total      int               `json:"total"`
	Unresolved []UnresolvedField `json:"unresolved"`
}

// ActionResult is the collaborator's reply to a workflow action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DetectedJD is the raw job description payload scraped from the page.
type DetectedJD struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Skills      []string          `json:"skills"`
	Structured  map[string]string `json:"structured,omitempty"`
}

// DetectResult is the collaborator's reply to job description detection.
type DetectResult struct {
	Success bool       `json:"success"`
	JD      DetectedJD `json:"jd"`
	Error   string     `json:"error,omitempty"`
}
