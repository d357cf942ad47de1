package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/types"
)

func testJD() *types.JobDescription {
	return &types.JobDescription{
		Title: "Backend Engineer",
		Description: "We need a backend engineer to build payment services in Go. " +
			"Payment reliability matters: you will own payment services, observability and on-call. " +
			"Services run on Kubernetes with PostgreSQL.",
		Skills: []string{"Go", "Kubernetes", "PostgreSQL"},
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords(testJD())

	assert.Equal(t, []string{"go", "kubernetes", "postgresql"}, kws[:3], "skills come first")
	assert.Contains(t, kws, "payment")
	assert.Contains(t, kws, "services")
	assert.NotContains(t, kws, "observability", "single occurrences are not mined")
	assert.NotContains(t, kws, "you", "stopwords are dropped")
}

func TestKeywordCoverage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		expected float64
	}{
		{name: "no keywords", text: "anything", keywords: nil, expected: 0},
		{name: "all match", text: "Go and Kubernetes", keywords: []string{"go", "kubernetes"}, expected: 1},
		{name: "word boundary", text: "Google ads", keywords: []string{"go"}, expected: 0},
		{name: "multi word substring", text: "Ran Apache Kafka clusters", keywords: []string{"apache kafka", "rust"}, expected: 0.5},
		{name: "punctuated tokens", text: "Shipped Node.js and C++ tools.", keywords: []string{"node.js", "c++"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, KeywordCoverage(tt.text, tt.keywords), 0.0001)
		})
	}
}

func TestScore_ImprovesWithKeywords(t *testing.T) {
	jd := testJD()
	weak := "Summary\nI like cooking.\nExperience\nChef at a bistro.\njane@example.com"
	strong := "Summary\nBackend engineer building payment services in Go on Kubernetes and PostgreSQL.\n" +
		"Experience\nOwned payment services reliability.\nEducation\nBSc\nSkills\nGo, Kubernetes, PostgreSQL\n" +
		"jane@example.com +1 555 010 0100"

	before := Score(weak, jd)
	after := Score(strong, jd)

	assert.Greater(t, after.Match, before.Match)
	assert.Greater(t, after.ATS, before.ATS)
	assert.LessOrEqual(t, after.ATS, 100)
	assert.GreaterOrEqual(t, before.ATS, 0)
}

func TestScore_EmptyInputs(t *testing.T) {
	assert.Equal(t, types.Scores{}, Score("", testJD()))
	assert.Equal(t, types.Scores{}, Score("resume", nil))
}

func TestLengthScore(t *testing.T) {
	assert.InDelta(t, 0.5, lengthScore(strings.Repeat("w ", 150)), 0.0001)
	assert.InDelta(t, 1.0, lengthScore(strings.Repeat("w ", 500)), 0.0001)
	assert.InDelta(t, 0.5, lengthScore(strings.Repeat("w ", 1500)), 0.0001)
	assert.InDelta(t, 0.0, lengthScore(strings.Repeat("w ", 2500)), 0.0001)
}

func TestToPercent(t *testing.T) {
	assert.Equal(t, 0, toPercent(-0.2))
	assert.Equal(t, 50, toPercent(0.499))
	assert.Equal(t, 100, toPercent(1.7))
}
