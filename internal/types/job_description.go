// Package types provides type definitions for structured data used throughout the apply-agent system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// JDSource records how a job description entered the session.
type JDSource string

const (
	// JDSourceDetected is a job description scraped from the page by the automation collaborator.
	JDSourceDetected JDSource = "detected"
	// JDSourceManual is a job description pasted by the user.
	JDSourceManual JDSource = "manual"
)

// JDSchemaVersion is the current JobDescription schema version.
const JDSchemaVersion = 1

// JobDescription is a normalized job posting held for the lifetime of a session.
// Values are built through jobdesc.New, which rejects descriptions below the minimum length.
type JobDescription struct {
	Title          string            `json:"title"`
	Description    string            `json:"description" validate:"required"`
	RawDescription string            `json:"raw_description"`
	Skills         []string          `json:"skills"`
	Structured     map[string]string `json:"structured,omitempty"`
	Source         JDSource          `json:"source" validate:"required,oneof=detected manual"`
	SchemaVersion  int               `json:"schema_version" validate:"gte=1"`
}

// HasSkill reports whether the normalized skill set contains name (exact match).
func (jd *JobDescription) HasSkill(name string) bool {
	for _, s := range jd.Skills {
		if s == name {
			return true
		}
	}
	return false
}

// Scores holds heuristic ATS and keyword-match scores in the range 0..100.
type Scores struct {
	ATS   int `json:"ats"`
	Match int `json:"match"`
}

// Delta returns after minus before for both scores.
func (s Scores) Delta(before Scores) Scores {
	return Scores{ATS: s.ATS - before.ATS, Match: s.Match - before.Match}
}

// IsZero reports whether no score was recorded.
func (s Scores) IsZero() bool {
	return s.ATS == 0 && s.Match == 0
}
