package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/merge"
	"github.com/juyoungml/pubsync/internal/normalize"
	"github.com/juyoungml/pubsync/internal/publication"
)

type fakeScraper struct {
	entries []normalize.RawEntry
	err     error
}

func (f *fakeScraper) Scrape(ctx context.Context, profileID string) ([]normalize.RawEntry, error) {
	return f.entries, f.err
}

const target = `export const portfolioData = {
  personal: { name: "Jane" },
  publications: [],
  news: [],
};
`

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local) }

func sampleEntries() []normalize.RawEntry {
	return []normalize.RawEntry{
		{Position: 1, Title: "Prometheus 2", Authors: "S Kim", VenueYear: "EMNLP, 2024", Citations: "120",
			DetailURL: "https://scholar.example.com/p1", DetailFetched: true, DetailAbstract: "An evaluator.", DetailText: "see arXiv:2405.01535"},
		{Position: 2, Title: "CLIcK", Authors: "E Kim", VenueYear: "", Citations: "0",
			DetailURL: "https://scholar.example.com/p2"},
	}
}

type fixture struct {
	dataDir string
	target  string
	opts    Options
	scraper *fakeScraper
}

func newFixture(t *testing.T, writeTarget bool) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		dataDir: filepath.Join(root, "data"),
		target:  filepath.Join(root, "portfolio.ts"),
		scraper: &fakeScraper{entries: sampleEntries()},
	}
	if writeTarget {
		if err := os.WriteFile(f.target, []byte(target), 0644); err != nil {
			t.Fatalf("writing target: %v", err)
		}
	}
	f.opts = Options{
		Scraper:    f.scraper,
		Normalizer: normalize.Normalizer{Now: fixedNow},
		Backup:     backup.Writer{Dir: f.dataDir},
		Merger:     merge.Merger{},
		ProfileID:  "abc123",
		TargetPath: f.target,
		Now:        fixedNow,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return f
}

func TestRun(t *testing.T) {
	f := newFixture(t, true)

	summary, err := Run(context.Background(), f.opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Count != 2 || !summary.Changed {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Snapshot != filepath.Join(f.dataDir, "publications_backup_20260304_050607.json") {
		t.Errorf("Snapshot = %q", summary.Snapshot)
	}
	if len(summary.Digest) != 64 {
		t.Errorf("Digest = %q, want 64 hex chars", summary.Digest)
	}

	current, err := os.ReadFile(summary.Current)
	if err != nil {
		t.Fatalf("reading current: %v", err)
	}
	if backup.Digest(current) != summary.Digest {
		t.Error("Digest does not fingerprint the current file")
	}

	records, err := backup.ReadFile(summary.Current)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if records[0].Venue != "EMNLP" || records[0].Links.ArXiv != "https://arxiv.org/abs/2405.01535" {
		t.Errorf("record 1 = %+v", records[0])
	}
	if records[1].Venue != publication.SentinelVenue || records[1].Year != 2026 || records[1].Abstract != "Published in Preprint." {
		t.Errorf("record 2 = %+v", records[1])
	}

	merged, err := os.ReadFile(f.target)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if !strings.Contains(string(merged), `title: "Prometheus 2",`) {
		t.Errorf("target not merged:\n%s", merged)
	}
	if !strings.HasSuffix(string(merged), "  news: [],\n};\n") {
		t.Errorf("bytes after the section changed:\n%s", merged)
	}
	inSync, err := merge.Merger{}.InSync(merged, records)
	if err != nil || !inSync {
		t.Errorf("InSync() = %v, %v; want true", inSync, err)
	}
}

func TestRun_SecondRunLeavesTargetUnchanged(t *testing.T) {
	f := newFixture(t, true)
	if _, err := Run(context.Background(), f.opts); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	first, _ := os.ReadFile(f.target)

	summary, err := Run(context.Background(), f.opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if summary.Changed {
		t.Error("second run reported a change")
	}
	second, _ := os.ReadFile(f.target)
	if string(first) != string(second) {
		t.Error("second run modified the target")
	}
}

func TestRun_AssignsDenseIDs(t *testing.T) {
	f := newFixture(t, true)
	f.scraper.entries[0].Position = 7
	f.scraper.entries[1].Position = 9

	summary, err := Run(context.Background(), f.opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, r := range summary.Records {
		if r.ID != i+1 {
			t.Errorf("record %d has id %d", i, r.ID)
		}
	}
}

func TestRun_MissingTargetWritesNothing(t *testing.T) {
	f := newFixture(t, false)

	_, err := Run(context.Background(), f.opts)
	if !errors.Is(err, merge.ErrTargetMissing) {
		t.Fatalf("Run() error = %v, want ErrTargetMissing", err)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Errorf("data directory exists after aborted run: %v", err)
	}
}

func TestRun_SectionMissingWritesNothing(t *testing.T) {
	f := newFixture(t, false)
	if err := os.WriteFile(f.target, []byte("export const d = { news: [] };\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), f.opts)
	if !errors.Is(err, merge.ErrSectionNotFound) {
		t.Fatalf("Run() error = %v, want ErrSectionNotFound", err)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Errorf("data directory exists after aborted run: %v", err)
	}
}

func TestRun_NoPublications(t *testing.T) {
	f := newFixture(t, true)
	f.scraper.entries = nil

	_, err := Run(context.Background(), f.opts)
	if !errors.Is(err, ErrNoPublications) {
		t.Fatalf("Run() error = %v, want ErrNoPublications", err)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Error("backups written for an empty listing")
	}
	data, _ := os.ReadFile(f.target)
	if string(data) != target {
		t.Error("target modified for an empty listing")
	}
}

func TestRun_ScrapeFailure(t *testing.T) {
	f := newFixture(t, true)
	scrapeErr := errors.New("listing unavailable")
	f.scraper.err = scrapeErr

	_, err := Run(context.Background(), f.opts)
	if !errors.Is(err, scrapeErr) {
		t.Fatalf("Run() error = %v, want wrapped scrape error", err)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Error("backups written after a scrape failure")
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t, true)
	f.opts.DryRun = true

	summary, err := Run(context.Background(), f.opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.DryRun || summary.Count != 2 || !summary.Changed || summary.Current != "" {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Error("dry run wrote backups")
	}
	data, _ := os.ReadFile(f.target)
	if string(data) != target {
		t.Error("dry run modified the target")
	}
}
