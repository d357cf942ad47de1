package jobdesc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/apply-agent/internal/types"
)

// MinDescriptionLength is the minimum cleaned description length, in runes, for a usable JD.
const MinDescriptionLength = 100

// maxTitleLength bounds titles scraped from noisy page headers.
const maxTitleLength = 200

var validate = validator.New()

// Input is a job description candidate before normalization.
type Input struct {
	Title       string
	Description string
	Skills      []string
	Structured  map[string]string
	Source      types.JDSource
}

// New normalizes a candidate and validates it. The raw text is kept as-is in RawDescription.
func New(in Input) (*types.JobDescription, error) {
	cleaned := CleanText(StripHTML(in.Description))
	if n := utf8.RuneCountInString(cleaned); n < MinDescriptionLength {
		return nil, &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("is too short (%d < %d characters)", n, MinDescriptionLength),
		}
	}

	title := CleanText(in.Title)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}

	var structured map[string]string
	if len(in.Structured) > 0 {
		structured = make(map[string]string, len(in.Structured))
		for k, v := range in.Structured {
			if v = CleanText(StripHTML(v)); v != "" {
				structured[strings.TrimSpace(k)] = v
			}
		}
	}

	jd := &types.JobDescription{
		Title:          title,
		Description:    cleaned,
		RawDescription: in.Description,
		Skills:         NormalizeSkills(in.Skills),
		Structured:     structured,
		Source:         in.Source,
		SchemaVersion:  types.JDSchemaVersion,
	}

	if err := validate.Struct(jd); err != nil {
		return nil, &ValidationError{Field: "job description", Message: "failed validation", Cause: err}
	}
	return jd, nil
}

// FromDetection builds a JD from the page collaborator's detection payload.
func FromDetection(d types.DetectedJD) (*types.JobDescription, error) {
	return New(Input{
		Title:       d.Title,
		Description: d.Description,
		Skills:      d.Skills,
		Structured:  d.Structured,
		Source:      types.JDSourceDetected,
	})
}

// FromPaste builds a JD from text the user pasted manually.
func FromPaste(title, text string) (*types.JobDescription, error) {
	return New(Input{Title: title, Description: text, Source: types.JDSourceManual})
}
