// Package export provides functions to export publications to various formats.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/juyoungml/pubsync/internal/identifier"
	"github.com/juyoungml/pubsync/internal/normalize"
	"github.com/juyoungml/pubsync/internal/publication"
)

// ToBibTeX converts a publication to BibTeX format under the given key.
func ToBibTeX(r publication.Record, key string) string {
	entryType := determineEntryType(r)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, key))

	// Authors
	if authors := formatAuthors(r.Authors); authors != "" {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(authors)))
	}

	// Title
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(r.Title)))

	// Venue
	if r.Venue != "" && r.Venue != publication.SentinelVenue {
		fieldName := "journal"
		switch entryType {
		case "inproceedings":
			fieldName = "booktitle"
		case "misc":
			fieldName = "howpublished"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(r.Venue)))
	}

	// Year
	b.WriteString(fmt.Sprintf("  year = {%d},\n", r.Year))

	// arXiv (optional)
	if id := arXivID(r.Links.ArXiv); id != "" {
		b.WriteString(fmt.Sprintf("  eprint = {%s},\n", id))
		b.WriteString("  archivePrefix = {arXiv},\n")
	}

	if r.Links.Paper != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", r.Links.Paper))
	}

	// Abstract (optional, skipped when it is only the venue fallback)
	if r.Abstract != "" && r.Abstract != normalize.ResolveAbstract("", r.Venue) {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(r.Abstract)))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple publications to BibTeX format. Keys are
// made unique by suffixing b, c, ... on collision.
func ToBibTeXList(records []publication.Record) string {
	seen := make(map[string]int)
	var entries []string
	for _, r := range records {
		key := CiteKey(r)
		n := seen[key]
		seen[key]++
		if n > 0 {
			key += suffix(n)
		}
		entries = append(entries, ToBibTeX(r, key))
	}
	return strings.Join(entries, "\n")
}

// suffix returns b for 1, c for 2, ..., then numbers past z.
func suffix(n int) string {
	if n < 25 {
		return string(rune('a' + n))
	}
	return strconv.Itoa(n + 1)
}

// CiteKey builds {FirstAuthorLast}{Year}-{firstTitleWord}, e.g. Kim2024-prometheus.
func CiteKey(r publication.Record) string {
	last := "Anon"
	if authors := splitAuthors(r.Authors); len(authors) > 0 {
		if _, l := splitName(authors[0]); l != "" {
			last = keyPart(l)
		}
	}
	if last == "" {
		last = "Anon"
	}

	key := fmt.Sprintf("%s%d", last, r.Year)
	for _, w := range strings.Fields(r.Title) {
		w = strings.ToLower(keyPart(w))
		if w != "" && !stopWords[w] {
			return key + "-" + w
		}
	}
	return key
}

var stopWords = map[string]bool{"a": true, "an": true, "the": true, "on": true, "of": true}

// keyPart keeps letters and digits only.
func keyPart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// determineEntryType returns the BibTeX entry type for a publication.
func determineEntryType(r publication.Record) string {
	venue := strings.ToLower(r.Venue)

	// Preprints
	if venue == strings.ToLower(publication.SentinelVenue) ||
		strings.Contains(venue, "arxiv") ||
		strings.Contains(venue, "preprint") {
		return "misc"
	}

	// Journals
	if strings.Contains(venue, "journal") ||
		strings.Contains(venue, "transactions") {
		return "article"
	}

	// Conference proceedings
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}
	for _, w := range strings.FieldsFunc(venue, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if conferences[w] {
			return "inproceedings"
		}
	}

	// Default to article
	return "article"
}

var conferences = map[string]bool{
	"neurips": true, "nips": true, "icml": true, "iclr": true,
	"acl": true, "emnlp": true, "naacl": true, "eacl": true, "coling": true, "lrec": true,
	"aaai": true, "ijcai": true, "cvpr": true, "iccv": true, "eccv": true,
	"kdd": true, "sigir": true, "colm": true,
}

// formatAuthors formats a displayed author list in BibTeX style:
// "Kim, S and Suk, J". A trailing ellipsis becomes "and others".
func formatAuthors(authors string) string {
	names := splitAuthors(authors)
	var formatted []string
	for _, n := range names {
		first, last := splitName(n)
		if first != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", last, first))
		} else {
			formatted = append(formatted, last)
		}
	}
	if len(formatted) > 0 && truncatedAuthors(authors) {
		formatted = append(formatted, "others")
	}
	return strings.Join(formatted, " and ")
}

// splitAuthors splits "S Kim, J Suk, ..." into names, dropping ellipses.
func splitAuthors(authors string) []string {
	var names []string
	for _, part := range strings.Split(authors, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.Trim(part, ".…") == "" {
			continue
		}
		names = append(names, part)
	}
	return names
}

func truncatedAuthors(authors string) bool {
	s := strings.TrimSpace(authors)
	return strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…")
}

// splitName treats the last word as the family name.
func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

func arXivID(link string) string {
	id, ok := strings.CutPrefix(link, identifier.ArXivAbsBase)
	if !ok {
		return ""
	}
	return id
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Single pass, so inserted backslashes are not escaped again
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
