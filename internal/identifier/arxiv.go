// Package identifier extracts external cross-reference identifiers from free text.
package identifier

import (
	"regexp"
	"strings"
)

// ArXivAbsBase is the URL prefix for arXiv abstract pages.
const ArXivAbsBase = "https://arxiv.org/abs/"

// arxivPatterns are tried in order against lowercased text.
// Labeled identifiers are the most trustworthy, bare tokens the least.
var arxivPatterns = []*regexp.Regexp{
	// Labeled: arxiv:2301.12345
	regexp.MustCompile(`arxiv:(\d{4}\.\d{4,5})`),
	// URL: arxiv.org/abs/2301.12345 or arxiv.org/pdf/2301.12345
	regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})`),
	// Bare token anywhere
	regexp.MustCompile(`\b(\d{4}\.\d{4,5})\b`),
}

// ExtractArXiv returns the first arXiv identifier found in text.
// Patterns are applied in priority order and the first pattern that matches wins.
// No match is not an error.
func ExtractArXiv(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, p := range arxivPatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ArXivURL returns the abstract page URL for an arXiv identifier.
func ArXivURL(id string) string {
	return ArXivAbsBase + id
}
