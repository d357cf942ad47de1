package jobdesc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestNew_RejectsShortDescription(t *testing.T) {
	text := strings.Repeat("a", 40)

	jd, err := New(Input{Title: "Engineer", Description: text, Source: types.JDSourceManual})
	require.Error(t, err)
	assert.Nil(t, jd)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "description", vErr.Field)
	assert.Contains(t, err.Error(), "40 < 100")
}

func TestNew_LengthThreshold(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "one below threshold", length: MinDescriptionLength - 1, wantErr: true},
		{name: "exactly threshold", length: MinDescriptionLength, wantErr: false},
		{name: "well above threshold", length: MinDescriptionLength * 5, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jd, err := New(Input{Description: strings.Repeat("x", tt.length), Source: types.JDSourceDetected})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, jd)
				return
			}
			require.NoError(t, err)
			assert.Len(t, jd.Description, tt.length)
		})
	}
}

func TestNew_WhitespaceDoesNotCountTowardsLength(t *testing.T) {
	padded := strings.Repeat("word ", 5) + strings.Repeat(" ", 200) + "\n\n\n\n"
	_, err := New(Input{Description: padded, Source: types.JDSourceManual})
	assert.Error(t, err)
}

func TestNew_NormalizesFields(t *testing.T) {
	raw := "<h2>About the role</h2><p>We build   distributed systems in Go and operate them on Kubernetes at scale.</p>" +
		"<ul><li>Design services</li><li>Own reliability for production workloads</li></ul>"

	jd, err := New(Input{
		Title:       "  Senior Backend Engineer \n Apply now",
		Description: raw,
		Skills:      []string{"golang", "Go", "k8s", "  ", "terraform"},
		Structured:  map[string]string{"Requirements ": "<p>5+ years</p>", "Empty": "   "},
		Source:      types.JDSourceDetected,
	})
	require.NoError(t, err)

	assert.Equal(t, "Senior Backend Engineer", jd.Title)
	assert.Equal(t, raw, jd.RawDescription)
	assert.Contains(t, jd.Description, "About the role")
	assert.Contains(t, jd.Description, "We build distributed systems in Go")
	assert.Contains(t, jd.Description, "- Design services")
	assert.NotContains(t, jd.Description, "<p>")
	assert.Equal(t, []string{"Go", "Kubernetes", "Terraform"}, jd.Skills)
	assert.Equal(t, map[string]string{"Requirements": "5+ years"}, jd.Structured)
	assert.Equal(t, types.JDSchemaVersion, jd.SchemaVersion)
}

func TestNew_RejectsUnknownSource(t *testing.T) {
	_, err := New(Input{Description: strings.Repeat("y", 150), Source: "scraped"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestFromDetectionAndPaste(t *testing.T) {
	body := strings.Repeat("Build reliable payment systems. ", 5)

	detected, err := FromDetection(types.DetectedJD{Title: "SRE", Description: body, Skills: []string{"aws"}})
	require.NoError(t, err)
	assert.Equal(t, types.JDSourceDetected, detected.Source)
	assert.True(t, detected.HasSkill("AWS"))

	pasted, err := FromPaste("SRE", body)
	require.NoError(t, err)
	assert.Equal(t, types.JDSourceManual, pasted.Source)
	assert.Empty(t, pasted.Skills)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "crlf and spaces", input: "Line  one\r\nLine\t\ttwo", expected: "Line one\nLine two"},
		{name: "collapses blank runs", input: "a\n\n\n\nb", expected: "a\n\nb"},
		{name: "bullet glyphs", input: "• first\n·second", expected: "- first\n- second"},
		{name: "non-breaking spaces", input: "a\u00a0\u00a0b", expected: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestStripHTML_PlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "5 < 6 and 7 > 3", StripHTML("5 < 6 and 7 > 3"))
}

func TestNormalizeSkill(t *testing.T) {
	tests := map[string]string{
		"golang":            "Go",
		"JS":                "JavaScript",
		"postgres":          "PostgreSQL",
		"python":            "Python",
		"gRPC":              "gRPC",
		"  apache   kafka ": "apache kafka",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSkill(in), "input %q", in)
	}
}
