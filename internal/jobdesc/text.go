package jobdesc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	multiSpace = regexp.MustCompile(`[ \t\f\v]+`)
	htmlTag    = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][^>]*>`)
)

// looksLikeHTML reports whether raw contains markup worth parsing.
func looksLikeHTML(raw string) bool {
	return htmlTag.MatchString(raw)
}

// StripHTML converts an HTML fragment to text, keeping block boundaries as line breaks.
// Input without markup is returned unchanged.
func StripHTML(raw string) string {
	if !looksLikeHTML(raw) {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return htmlTag.ReplaceAllString(raw, " ")
	}

	doc.Find("script, style, noscript, svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, section").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "li" {
			s.PrependHtml("- ")
		}
		s.AppendHtml("\n")
	})

	return doc.Text()
}

// CleanText normalizes whitespace while preserving paragraph and bullet structure.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, cleanLine(line))
	}

	return strings.TrimSpace(removeExcessiveBlankLines(strings.Join(cleaned, "\n")))
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	// Normalise bullet glyphs to markdown dashes
	for _, glyph := range []string{"•", "·", "▪", "◦"} {
		if strings.HasPrefix(trimmed, glyph) {
			trimmed = "- " + strings.TrimSpace(strings.TrimPrefix(trimmed, glyph))
			break
		}
	}
	return multiSpace.ReplaceAllString(trimmed, " ")
}

// removeExcessiveBlankLines keeps at most one blank line between paragraphs.
func removeExcessiveBlankLines(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
