package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/merge"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the generated file matches the current snapshot",
	Long: `Verify that the publications array of the generated file equals the
rendering of the current snapshot. Nothing is written.

Exits with status 7 when the file is out of sync.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status       string `json:"status"`
	Publications int    `json:"publications"`
	Snapshot     string `json:"snapshot"`
	Target       string `json:"target"`
	Digest       string `json:"digest"`
	Backups      int    `json:"backups"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	w := backupWriter(cfg)

	current := w.CurrentPath()
	data, err := os.ReadFile(current)
	if err != nil {
		exitWithError(ExitDataError, "reading snapshot: %v\n\nRun 'pubsync fetch' first.", err)
	}
	records, err := backup.ReadFile(current)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	snapshots, err := w.Snapshots()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	src, err := os.ReadFile(cfg.TargetFile)
	if err != nil {
		if os.IsNotExist(err) {
			exitWithError(ExitDataError, "%v: %s", merge.ErrTargetMissing, cfg.TargetFile)
		}
		exitWithError(ExitError, "reading generated file: %v", err)
	}

	inSync, err := merge.Merger{Field: cfg.Section}.InSync(src, records)
	if err != nil {
		exitWithError(exitCodeFor(err), "checking %s: %v", cfg.TargetFile, err)
	}

	result := CheckResult{
		Status:       "ok",
		Publications: len(records),
		Snapshot:     current,
		Target:       cfg.TargetFile,
		Digest:       backup.Digest(data),
		Backups:      len(snapshots),
	}
	if !inSync {
		result.Status = "out_of_sync"
	}

	if humanOutput {
		if inSync {
			fmt.Printf("%s matches %s (%d publications, %d backups)\n", result.Target, result.Snapshot, result.Publications, result.Backups)
		} else {
			fmt.Printf("%s is out of sync with %s\n\nRun 'pubsync fetch' to update it.\n", result.Target, result.Snapshot)
		}
	} else {
		outputJSON(result)
	}

	if !inSync {
		os.Exit(ExitOutOfSync)
	}
	return nil
}
