package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Archive a memory",
	Long:  `Archive a memory so it no longer appears in search, timeline, or retrieval.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := memory.MemoryDelete(cmd.Context(), rt.store, memory.MemoryDeleteParams{ID: args[0]})
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
