// Package publication defines the canonical publication record produced by a sync run.
package publication

import (
	"errors"
	"fmt"
)

const (
	// SentinelVenue is used when no venue text remains after the year is stripped.
	SentinelVenue = "Preprint"

	// MaxAbstractLen is the maximum abstract length in characters.
	MaxAbstractLen = 500

	// DefaultMaxRecords is the per-run cap on produced records.
	DefaultMaxRecords = 20
)

// Record is one normalized publication.
type Record struct {
	// Identity (1-based, dense, stable only within one run)
	ID int `json:"id"`

	// Metadata
	Title    string `json:"title"`
	Authors  string `json:"authors"` // As displayed by the profile, may be empty
	Venue    string `json:"venue"`
	Year     int    `json:"year"`
	Abstract string `json:"abstract"`

	// Citations keeps the displayed text; the profile may render placeholders.
	Citations string `json:"citations"`

	Links Links `json:"links"`
}

// Links maps link kinds to URLs. Paper is always present.
type Links struct {
	Paper string `json:"paper"`
	ArXiv string `json:"arxiv,omitempty"`
}

// Link kinds in serialization order.
const (
	KindPaper = "paper"
	KindArXiv = "arxiv"
)

// LinkEntry is a single kind/URL pair.
type LinkEntry struct {
	Kind string
	URL  string
}

// Entries returns the present links in serialization order.
func (l Links) Entries() []LinkEntry {
	entries := []LinkEntry{{Kind: KindPaper, URL: l.Paper}}
	if l.ArXiv != "" {
		entries = append(entries, LinkEntry{Kind: KindArXiv, URL: l.ArXiv})
	}
	return entries
}

// ErrInvalidRecord is returned by Validate when a record breaks an invariant.
var ErrInvalidRecord = errors.New("invalid publication record")

// Validate checks the invariants of a single run's output:
// ids are 1..N in order, titles and paper links are non-empty,
// and every year has four digits.
func Validate(records []Record) error {
	for i, r := range records {
		if r.ID != i+1 {
			return fmt.Errorf("%w: record %d has id %d, want %d", ErrInvalidRecord, i, r.ID, i+1)
		}
		if r.Title == "" {
			return fmt.Errorf("%w: record %d has empty title", ErrInvalidRecord, r.ID)
		}
		if r.Links.Paper == "" {
			return fmt.Errorf("%w: record %d has no paper link", ErrInvalidRecord, r.ID)
		}
		if r.Year < 1000 || r.Year > 9999 {
			return fmt.Errorf("%w: record %d has year %d", ErrInvalidRecord, r.ID, r.Year)
		}
	}
	return nil
}
