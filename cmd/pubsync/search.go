package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/publication"
	"github.com/juyoungml/pubsync/internal/storage"
)

var (
	searchLimit  int
	searchAuthor string
	searchYear   string
	searchVenue  string
	searchArXiv  bool
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	searchCmd.Flags().StringVarP(&searchAuthor, "author", "a", "", "Search by author name (prefix match)")
	searchCmd.Flags().StringVar(&searchYear, "year", "", "Filter by year: exact (2024), range (2020:2024), or open (2020: or :2024)")
	searchCmd.Flags().StringVar(&searchVenue, "venue", "", "Filter by venue (partial match)")
	searchCmd.Flags().BoolVar(&searchArXiv, "arxiv", false, "Only publications with an arXiv link")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search backed-up publications",
	Long: `Search the publications of the current snapshot.

The positional query searches title, authors, abstract and venue. Filters
combine with AND.

Year syntax:
  --year 2024         - Exact year
  --year 2020:2024    - Range (inclusive)
  --year 2020:        - 2020 and later
  --year :2020        - 2020 and earlier

Examples:
  pubsync search "diffusion"
  pubsync search -a Kim --year 2023:
  pubsync search --venue NeurIPS --arxiv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters := storage.SearchFilters{
		Author: searchAuthor,
		Venue:  searchVenue,
		ArXiv:  searchArXiv,
	}
	if len(args) > 0 {
		filters.Keyword = args[0]
	}
	if searchYear != "" {
		from, to, err := parseYearRange(searchYear)
		if err != nil {
			exitWithError(ExitError, "invalid year format: %v", err)
		}
		filters.YearFrom = from
		filters.YearTo = to
	}

	if filters == (storage.SearchFilters{}) {
		exitWithError(ExitError, "must specify a query or at least one filter (--author, --year, --venue, --arxiv)")
	}

	cfg := mustLoadConfig()
	db := mustOpenIndex(cfg)
	defer db.Close()

	records, err := db.SearchWithFilters(filters, searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	// Empty result is not an error
	if records == nil {
		records = []publication.Record{}
	}

	if humanOutput {
		if len(records) == 0 {
			fmt.Println("No publications found")
		} else {
			fmt.Printf("Found %d publications:\n\n", len(records))
			for _, r := range records {
				printRecordSummary(r, SearchTitleMaxLen)
			}
		}
	} else {
		outputJSON(records)
	}
	return nil
}

// parseYearRange parses a year specification into from/to values.
// Supported formats: "2024", "2020:2024", "2020:", ":2024"
func parseYearRange(spec string) (from, to int, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, nil
	}

	if strings.Contains(spec, ":") {
		parts := strings.SplitN(spec, ":", 2)

		if parts[0] != "" {
			from, err = strconv.Atoi(parts[0])
			if err != nil {
				return 0, 0, fmt.Errorf("invalid start year %q", parts[0])
			}
		}
		if parts[1] != "" {
			to, err = strconv.Atoi(parts[1])
			if err != nil {
				return 0, 0, fmt.Errorf("invalid end year %q", parts[1])
			}
		}
		if from > 0 && to > 0 && from > to {
			return 0, 0, fmt.Errorf("start year %d after end year %d", from, to)
		}
		return from, to, nil
	}

	year, err := strconv.Atoi(spec)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", spec)
	}
	return year, year, nil
}
