// Package pipeline runs one synchronization: scrape the profile, normalize the
// entries, persist backups and merge the generated file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/merge"
	"github.com/juyoungml/pubsync/internal/normalize"
	"github.com/juyoungml/pubsync/internal/publication"
)

// ErrNoPublications indicates the listing yielded no usable entries.
var ErrNoPublications = errors.New("no publications found")

// Scraper fetches raw entries for a profile.
type Scraper interface {
	Scrape(ctx context.Context, profileID string) ([]normalize.RawEntry, error)
}

// Options configures a run.
type Options struct {
	Scraper    Scraper
	Normalizer normalize.Normalizer
	Backup     backup.Writer
	Merger     merge.Merger
	ProfileID  string
	TargetPath string

	// DryRun scrapes and normalizes but writes nothing.
	DryRun bool

	// Now returns the run start time. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Summary describes a completed run.
type Summary struct {
	Count    int                  `json:"count"`
	Current  string               `json:"current,omitempty"`
	Snapshot string               `json:"snapshot,omitempty"`
	Target   string               `json:"target"`
	Changed  bool                 `json:"changed"`
	Digest   string               `json:"digest"`
	DryRun   bool                 `json:"dry_run,omitempty"`
	Records  []publication.Record `json:"-"`
}

// Run executes the pipeline. The merge is computed before anything is
// written, so a missing or unmergeable target aborts the run with no files
// touched. Backups are written next, then the merge is committed.
func Run(ctx context.Context, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runStart := now()

	entries, err := opts.Scraper.Scrape(ctx, opts.ProfileID)
	if err != nil {
		return Summary{}, fmt.Errorf("scraping profile: %w", err)
	}
	if len(entries) == 0 {
		return Summary{}, ErrNoPublications
	}

	records := make([]publication.Record, 0, len(entries))
	for i, e := range entries {
		rec := opts.Normalizer.Normalize(e)
		rec.ID = i + 1
		records = append(records, rec)
	}
	if err := publication.Validate(records); err != nil {
		return Summary{}, err
	}

	data, err := backup.Encode(records)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Count:   len(records),
		Target:  opts.TargetPath,
		Digest:  backup.Digest(data),
		DryRun:  opts.DryRun,
		Records: records,
	}

	plan, err := opts.Merger.Prepare(opts.TargetPath, records)
	if err != nil {
		return Summary{}, err
	}
	summary.Changed = plan.Changed()

	if opts.DryRun {
		logger.Info("dry run complete", "count", summary.Count, "changed", summary.Changed)
		return summary, nil
	}

	res, err := opts.Backup.Write(records, runStart)
	if err != nil {
		return Summary{}, err
	}
	summary.Current = res.Current
	summary.Snapshot = res.Snapshot
	logger.Debug("wrote backups", "current", res.Current, "snapshot", res.Snapshot)

	if err := plan.Commit(); err != nil {
		return Summary{}, err
	}
	logger.Info("merged publications", "target", opts.TargetPath, "count", summary.Count, "changed", summary.Changed)

	return summary, nil
}
