// Package main provides the pubsync CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/config"
	"github.com/juyoungml/pubsync/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubsync",
	Short: "Keep a website's publication list in sync with a scholar profile",
	Long: `pubsync scrapes a public academic profile, normalizes each publication,
keeps timestamped JSON backups and rewrites the publications array of the
website's generated data file in place.

Backups are the source of truth; an ephemeral SQLite index serves search,
list and export. All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(verbose))
	},
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pubsync.yml (default: search upwards, then global config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

// newLogger returns a text logger on stderr.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// mustLoadConfig resolves the effective configuration, exits on error.
func mustLoadConfig() *config.Config {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	cfg, err := config.Resolve(configPath, cwd)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustValidateConfig exits with a config error when cfg cannot drive a fetch.
func mustValidateConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		if cfg.ProfileID == "" && humanOutput {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "%v", err)
	}
}

// backupWriter returns the writer for the configured data directory.
func backupWriter(cfg *config.Config) backup.Writer {
	return backup.Writer{Dir: cfg.DataDir, Prefix: cfg.SnapshotPrefix}
}

// mustOpenIndex opens the query index, rebuilding it when the current
// snapshot changed since the last build. The caller must Close the DB.
func mustOpenIndex(cfg *config.Config) *storage.DB {
	current := backupWriter(cfg).CurrentPath()
	if _, err := os.Stat(current); err != nil {
		exitWithError(ExitDataError, "no snapshot at %s\n\nRun 'pubsync fetch' first.", current)
	}

	dbPath := cfg.Index()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		exitWithError(ExitError, "creating index directory: %v", err)
	}
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}

	stale, err := db.IsStale(current)
	if err != nil {
		db.Close()
		exitWithError(ExitDataError, "checking index: %v", err)
	}
	if stale {
		n, err := db.RebuildFromSnapshot(current)
		if err != nil {
			db.Close()
			exitWithError(ExitDataError, "rebuilding index: %v", err)
		}
		slog.Debug("rebuilt stale index", "publications", n, "index", dbPath)
	}
	return db
}
