package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

var (
	timelineAnchor  string
	timelineQuery   string
	timelineBefore  int
	timelineAfter   int
	timelineProject string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show memories chronologically around an anchor",
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().StringVar(&timelineAnchor, "anchor", "", "id of the anchor memory")
	timelineCmd.Flags().StringVar(&timelineQuery, "query", "", "search query to locate the anchor")
	timelineCmd.Flags().IntVar(&timelineBefore, "before", 0, "memories to show before the anchor")
	timelineCmd.Flags().IntVar(&timelineAfter, "after", 0, "memories to show after the anchor")
	timelineCmd.Flags().StringVar(&timelineProject, "project", "", "restrict to one project")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := memory.MemoryTimeline(cmd.Context(), rt.store, memory.MemoryTimelineParams{
		AnchorID:    timelineAnchor,
		Query:       timelineQuery,
		DepthBefore: timelineBefore,
		DepthAfter:  timelineAfter,
		Project:     timelineProject,
	})
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
