package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/juyoungml/pubsync/internal/config"
	"github.com/juyoungml/pubsync/internal/merge"
	"github.com/juyoungml/pubsync/internal/pipeline"
	"github.com/juyoungml/pubsync/internal/publication"
	"github.com/juyoungml/pubsync/internal/scholar"
)

// Exit codes
const (
	ExitSuccess            = 0 // Success
	ExitError              = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError        = 2 // Configuration error (missing profile id, invalid values)
	ExitDataError          = 3 // Data error (generated file unusable, malformed snapshot)
	ExitListingUnavailable = 4 // Profile listing could not be fetched
	ExitNoPublications     = 5 // Listing yielded no publications
	ExitWriteFailure       = 6 // Backup or merge write failed
	ExitOutOfSync          = 7 // Generated file differs from the current snapshot
)

// exitCodeFor maps a pipeline error to its exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid), errors.Is(err, scholar.ErrEmptyProfileID):
		return ExitConfigError
	case errors.Is(err, scholar.ErrListingUnavailable), errors.Is(err, scholar.ErrNetworkError):
		return ExitListingUnavailable
	case errors.Is(err, pipeline.ErrNoPublications):
		return ExitNoPublications
	case errors.Is(err, merge.ErrTargetMissing),
		errors.Is(err, merge.ErrSectionNotFound),
		errors.Is(err, merge.ErrUnbalanced),
		errors.Is(err, merge.ErrMalformed),
		errors.Is(err, publication.ErrInvalidRecord):
		return ExitDataError
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ExitWriteFailure
	}
	// A failed rename into place
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return ExitWriteFailure
	}
	return ExitError
}
