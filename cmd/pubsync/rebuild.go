package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/storage"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query index from the current snapshot",
	Long: `Rebuild the SQLite query index from the current JSON snapshot.

The index is rebuilt automatically when the snapshot changes; use this if
the index file becomes corrupted.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

// RebuildResult is the response for the rebuild command.
type RebuildResult struct {
	Status       string `json:"status"`
	Publications int    `json:"publications"`
	Index        string `json:"index"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

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
	defer db.Close()

	count, err := db.RebuildFromSnapshot(current)
	if err != nil {
		exitWithError(ExitDataError, "rebuilding index: %v", err)
	}

	if humanOutput {
		outputHuman("Rebuilt query index with %d publications\n", count)
	} else {
		outputJSON(RebuildResult{
			Status:       "rebuilt",
			Publications: count,
			Index:        dbPath,
		})
	}
	return nil
}
