package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

var (
	searchType      string
	searchProject   string
	searchDateStart string
	searchDateEnd   string
	searchLimit     int
	searchOffset    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a user's memories",
	Long: `Search a user's memories with hybrid keyword and semantic retrieval.
With no query, lists memories by date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by memory type")
	searchCmd.Flags().StringVar(&searchProject, "project", "", "filter by project")
	searchCmd.Flags().StringVar(&searchDateStart, "from", "", "only memories on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchDateEnd, "to", "", "only memories on or before this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip, for paging")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	var query string
	if len(args) > 0 {
		query = args[0]
	}

	out, err := memory.MemorySearch(cmd.Context(), rt.store, memory.MemorySearchParams{
		Query:     query,
		Type:      searchType,
		Project:   searchProject,
		DateStart: searchDateStart,
		DateEnd:   searchDateEnd,
		Limit:     searchLimit,
		Offset:    searchOffset,
	})
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
