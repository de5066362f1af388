package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate counts for a user's store",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	st, err := rt.store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("User: %s\n", rt.store.UserID())
	fmt.Printf("Records: %d (%d archived)\n", st.TotalRecords, st.ArchivedRecords)
	fmt.Printf("Vector entries: %d\n", st.VectorEntries)

	if len(st.ByType) > 0 {
		types := make([]string, 0, len(st.ByType))
		for t := range st.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Println("By type:")
		for _, t := range types {
			fmt.Printf("  %-14s %d\n", t, st.ByType[t])
		}
	}

	return nil
}
