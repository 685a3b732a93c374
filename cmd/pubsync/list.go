package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/publication"
)

var listLimit int

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum publications to list (0 = all)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backed-up publications in listing order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one publication by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenIndex(cfg)
	defer db.Close()

	records, err := db.ListAll(listLimit)
	if err != nil {
		exitWithError(ExitError, "listing publications: %v", err)
	}
	if records == nil {
		records = []publication.Record{}
	}

	if humanOutput {
		if len(records) == 0 {
			fmt.Println("No publications")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%3d  %d  %s\n", r.ID, r.Year, truncateString(r.Title, ListTitleMaxLen))
		}
	} else {
		outputJSON(records)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		exitWithError(ExitError, "invalid id %q: must be a positive integer", args[0])
	}

	cfg := mustLoadConfig()
	db := mustOpenIndex(cfg)
	defer db.Close()

	r, err := db.GetByID(id)
	if err != nil {
		exitWithError(ExitError, "getting publication %d: %v", id, err)
	}
	if r == nil {
		exitWithError(ExitError, "no publication with id %d", id)
	}

	if humanOutput {
		printRecordSummary(*r, SearchTitleMaxLen)
		fmt.Printf("    %s\n", r.Abstract)
		fmt.Printf("    citations: %s\n", r.Citations)
		if r.Links.Paper != "" {
			fmt.Printf("    paper: %s\n", r.Links.Paper)
		}
	} else {
		outputJSON(r)
	}
	return nil
}
