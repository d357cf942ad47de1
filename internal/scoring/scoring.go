// Package scoring computes instant, local ATS and keyword-match scores for a resume against a job description.
// Everything here is pure: no I/O and no model calls.
package scoring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/apply-agent/internal/types"
)

// Weights for the ATS score components
const (
	keywordWeight = 0.6
	sectionWeight = 0.2
	lengthWeight  = 0.1
	contactWeight = 0.1
)

const (
	// maxDescriptionKeywords caps terms mined from the description text
	maxDescriptionKeywords = 25
	minKeywordFrequency    = 2
	minKeywordLength       = 3

	idealMinWords = 300
	idealMaxWords = 1000
)

var (
	wordPattern  = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+#.\-]*[A-Za-z0-9+#]|[A-Za-z]`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

// standardSections are headings ATS parsers look for
var standardSections = []string{"experience", "education", "skills", "summary"}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "you": true, "our": true, "are": true,
	"will": true, "this": true, "that": true, "have": true, "from": true, "your": true, "who": true,
	"all": true, "can": true, "not": true, "but": true, "about": true, "into": true, "their": true,
	"they": true, "what": true, "work": true, "team": true, "role": true, "years": true, "including": true,
	"across": true, "within": true, "more": true, "such": true, "other": true, "also": true,
	"experience": true, "ability": true, "strong": true, "working": true, "using": true, "etc": true,
}

// Score returns the ATS and match scores of resumeText against jd.
func Score(resumeText string, jd *types.JobDescription) types.Scores {
	if jd == nil || strings.TrimSpace(resumeText) == "" {
		return types.Scores{}
	}

	keywords := Keywords(jd)
	coverage := KeywordCoverage(resumeText, keywords)

	ats := keywordWeight*coverage +
		sectionWeight*sectionScore(resumeText) +
		lengthWeight*lengthScore(resumeText) +
		contactWeight*contactScore(resumeText)

	return types.Scores{
		ATS:   toPercent(ats),
		Match: toPercent(coverage),
	}
}

// Keywords returns the JD's skills followed by the most frequent meaningful description terms.
func Keywords(jd *types.JobDescription) []string {
	seen := make(map[string]bool)
	keywords := make([]string, 0, len(jd.Skills)+maxDescriptionKeywords)
	for _, skill := range jd.Skills {
		lower := strings.ToLower(skill)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
	}

	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(jd.Description, -1) {
		w = strings.ToLower(w)
		if len(w) < minKeywordLength || stopwords[w] {
			continue
		}
		counts[w]++
	}

	type termCount struct {
		term  string
		count int
	}
	terms := make([]termCount, 0, len(counts))
	for term, count := range counts {
		if count >= minKeywordFrequency && !seen[term] {
			terms = append(terms, termCount{term, count})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].term < terms[j].term
	})

	for i := 0; i < len(terms) && i < maxDescriptionKeywords; i++ {
		keywords = append(keywords, terms[i].term)
	}
	return keywords
}

// KeywordCoverage returns the fraction (0-1) of keywords present in text, matched case-insensitively on word boundaries.
func KeywordCoverage(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	tokens := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(text, -1) {
		tokens[strings.ToLower(w)] = true
	}
	lowerText := " " + strings.ToLower(text) + " "

	matches := 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			// Multi-word skills fall back to substring matching
			if strings.Contains(lowerText, kw) {
				matches++
			}
			continue
		}
		if tokens[kw] {
			matches++
		}
	}

	return float64(matches) / float64(len(keywords))
}

func sectionScore(text string) float64 {
	lower := strings.ToLower(text)
	found := 0
	for _, section := range standardSections {
		if strings.Contains(lower, section) {
			found++
		}
	}
	return float64(found) / float64(len(standardSections))
}

func lengthScore(text string) float64 {
	words := len(strings.Fields(text))
	switch {
	case words >= idealMinWords && words <= idealMaxWords:
		return 1.0
	case words < idealMinWords:
		return float64(words) / float64(idealMinWords)
	default:
		over := float64(words-idealMaxWords) / float64(idealMaxWords)
		if over >= 1.0 {
			return 0.0
		}
		return 1.0 - over
	}
}

func contactScore(text string) float64 {
	score := 0.0
	if emailPattern.MatchString(text) {
		score += 0.5
	}
	if phonePattern.MatchString(text) {
		score += 0.5
	}
	return score
}

func toPercent(v float64) int {
	p := int(v*100 + 0.5)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
