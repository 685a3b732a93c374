package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/export"
	"github.com/juyoungml/pubsync/internal/publication"
)

var (
	exportBibtex bool
	exportIDs    string
)

func init() {
	exportCmd.Flags().BoolVar(&exportBibtex, "bibtex", false, "Export to BibTeX format")
	exportCmd.Flags().StringVar(&exportIDs, "ids", "", "Export only specified ids (comma-separated)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export backed-up publications to BibTeX",
	Long: `Export the publications of the current snapshot to BibTeX.

Examples:
  pubsync export --bibtex
  pubsync export --bibtex --ids 1,3
  pubsync export --bibtex > publications.bib`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if !exportBibtex {
		exitWithError(ExitError, "--bibtex flag is required")
	}

	cfg := mustLoadConfig()
	db := mustOpenIndex(cfg)
	defer db.Close()

	var records []publication.Record
	if exportIDs != "" {
		for _, field := range strings.Split(exportIDs, ",") {
			field = strings.TrimSpace(field)
			id, err := strconv.Atoi(field)
			if err != nil {
				exitWithError(ExitError, "invalid id %q", field)
			}
			r, err := db.GetByID(id)
			if err != nil {
				exitWithError(ExitError, "getting publication %d: %v", id, err)
			}
			if r == nil {
				exitWithError(ExitError, "unknown id: %d", id)
			}
			records = append(records, *r)
		}
	} else {
		var err error
		records, err = db.ListAll(0)
		if err != nil {
			exitWithError(ExitError, "listing publications: %v", err)
		}
	}

	// BibTeX is always text output, never JSON
	fmt.Print(export.ToBibTeXList(records))
	return nil
}
