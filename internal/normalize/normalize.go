// Package normalize turns raw scraped profile entries into publication records.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/juyoungml/pubsync/internal/identifier"
	"github.com/juyoungml/pubsync/internal/publication"
)

// RawEntry is one listing row as scraped, plus whatever its detail page yielded.
type RawEntry struct {
	Position  int    // 1-based among successfully titled rows
	Title     string // Listing title text
	Authors   string // First gray line of the listing row
	VenueYear string // Second gray line of the listing row
	Citations string // Citation count text as displayed
	DetailURL string // Absolute URL of the detail page

	// Detail page results (empty when the detail fetch failed)
	DetailFetched  bool
	DetailAbstract string
	DetailText     string
}

var yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// Normalizer converts raw entries into records. The zero value uses time.Now.
type Normalizer struct {
	Now func() time.Time
}

func (n Normalizer) currentYear() int {
	if n.Now != nil {
		return n.Now().Year()
	}
	return time.Now().Year()
}

// Normalize builds a record from a raw entry. It performs no I/O.
func (n Normalizer) Normalize(e RawEntry) publication.Record {
	// Year first: venue cleanup depends on the matched token.
	year, loc := ExtractYear(e.VenueYear, n.currentYear())
	venue := CleanVenue(e.VenueYear, loc)
	abstract := ResolveAbstract(e.DetailAbstract, venue)

	links := publication.Links{Paper: e.DetailURL}
	if e.DetailFetched {
		if id, ok := resolveArXiv(e.DetailText, e.Title); ok {
			links.ArXiv = identifier.ArXivURL(id)
		}
	}

	return publication.Record{
		ID:        e.Position,
		Title:     e.Title,
		Authors:   e.Authors,
		Venue:     venue,
		Year:      year,
		Abstract:  abstract,
		Citations: e.Citations,
		Links:     links,
	}
}

// ExtractYear returns the first 19xx/20xx token in text and its byte span.
// When none is found it returns fallback and a nil span.
func ExtractYear(text string, fallback int) (int, []int) {
	loc := yearPattern.FindStringIndex(text)
	if loc == nil {
		return fallback, nil
	}
	year, err := strconv.Atoi(text[loc[0]:loc[1]])
	if err != nil {
		return fallback, nil
	}
	return year, loc
}

// CleanVenue removes the year token at loc, together with a preceding comma
// and whitespace, and substitutes the sentinel venue for an empty remainder.
func CleanVenue(text string, loc []int) string {
	venue := text
	if loc != nil {
		start := loc[0]
		for start > 0 && isSpace(text[start-1]) {
			start--
		}
		if start > 0 && text[start-1] == ',' {
			start--
		}
		venue = text[:start] + text[loc[1]:]
	}
	venue = strings.TrimSpace(venue)
	if venue == "" {
		return publication.SentinelVenue
	}
	return venue
}

// ResolveAbstract truncates the detail abstract, or falls back to a one-line
// description built from the venue.
func ResolveAbstract(detail, venue string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return fmt.Sprintf("Published in %s.", venue)
	}
	return truncateRunes(detail, publication.MaxAbstractLen)
}

// resolveArXiv looks in the detail page text first, then in the title.
// Entries whose detail fetch failed get no identifier at all.
func resolveArXiv(detailText, title string) (string, bool) {
	if id, ok := identifier.ExtractArXiv(detailText); ok {
		return id, true
	}
	return identifier.ExtractArXiv(title)
}

func truncateRunes(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
