package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

var getCmd = &cobra.Command{
	Use:   "get <id> [id...]",
	Short: "Show full detail for specific memories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := memory.MemoryGet(cmd.Context(), rt.store, memory.MemoryGetParams{IDs: args})
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
