package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/juyoungml/pubsync/internal/publication"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 50 // Default limit for search/list commands

	SearchTitleMaxLen = 70 // Used in search result summaries
	ListTitleMaxLen   = 60 // Used in list command output
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is the JSON body written when a command fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString shortens s to maxLen runes, ending with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// printRecordSummary prints one publication as a numbered block.
func printRecordSummary(r publication.Record, titleLen int) {
	fmt.Printf("[%d] %s\n", r.ID, truncateString(r.Title, titleLen))
	if r.Authors != "" {
		fmt.Printf("    %s\n", r.Authors)
	}
	fmt.Printf("    %s (%d)\n", r.Venue, r.Year)
	if r.Links.ArXiv != "" {
		fmt.Printf("    %s\n", r.Links.ArXiv)
	}
	fmt.Println()
}
