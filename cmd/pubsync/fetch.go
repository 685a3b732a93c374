package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/merge"
	"github.com/juyoungml/pubsync/internal/normalize"
	"github.com/juyoungml/pubsync/internal/pipeline"
	"github.com/juyoungml/pubsync/internal/scholar"
)

var (
	fetchDryRun  bool
	fetchProfile string
	fetchMax     int
)

func init() {
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Scrape and normalize without writing backups or the generated file")
	fetchCmd.Flags().StringVar(&fetchProfile, "profile", "", "Profile id (overrides config)")
	fetchCmd.Flags().IntVar(&fetchMax, "max", 0, "Maximum publications to keep (overrides config)")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrape the profile and update backups and the generated file",
	Long: `Scrape the configured profile, normalize each publication, write the
current snapshot and a timestamped backup, then rewrite the publications
array of the generated file in place.

The generated file is checked before anything is written: a missing file or
section aborts the run with no files touched.

Examples:
  pubsync fetch
  pubsync fetch --profile abc123XYZ --max 10
  pubsync fetch --dry-run --human`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if fetchProfile != "" {
		cfg.ProfileID = fetchProfile
	}
	if cmd.Flags().Changed("max") {
		cfg.MaxPublications = fetchMax
	}
	mustValidateConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.Default()
	client := scholar.NewClient(
		scholar.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		scholar.WithBaseURL(cfg.BaseURL),
		scholar.WithLanguage(cfg.Language),
		scholar.WithUserAgent(cfg.UserAgent),
		scholar.WithDelay(cfg.RequestDelay),
		scholar.WithMaxEntries(cfg.MaxPublications),
		scholar.WithLogger(logger),
	)

	summary, err := pipeline.Run(ctx, pipeline.Options{
		Scraper:    client,
		Normalizer: normalize.Normalizer{},
		Backup:     backupWriter(cfg),
		Merger:     merge.Merger{Field: cfg.Section},
		ProfileID:  cfg.ProfileID,
		TargetPath: cfg.TargetFile,
		DryRun:     fetchDryRun,
		Logger:     logger,
	})
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		printFetchSummary(summary)
	} else {
		outputJSON(summary)
	}
	return nil
}

func printFetchSummary(s pipeline.Summary) {
	if s.DryRun {
		fmt.Printf("Dry run: %d publications scraped\n\n", s.Count)
		for _, r := range s.Records {
			printRecordSummary(r, SearchTitleMaxLen)
		}
		if s.Changed {
			fmt.Printf("%s would be updated\n", s.Target)
		} else {
			fmt.Printf("%s is already up to date\n", s.Target)
		}
		return
	}

	fmt.Printf("Saved %d publications\n", s.Count)
	fmt.Printf("  current:  %s\n", s.Current)
	fmt.Printf("  backup:   %s\n", s.Snapshot)
	if s.Changed {
		fmt.Printf("Updated %s\n", s.Target)
	} else {
		fmt.Printf("%s already up to date\n", s.Target)
	}
}
