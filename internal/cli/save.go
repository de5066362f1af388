package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

var (
	saveTitle      string
	saveType       string
	saveSubtitle   string
	saveNarrative  string
	saveProject    string
	saveFacts      []string
	saveConcepts   []string
	saveEntities   []string
	saveOccurredAt string
	saveConfidence float64
	saveSource     string
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a new memory record",
	RunE:  runSave,
}

func init() {
	saveCmd.Flags().StringVar(&saveTitle, "title", "", "short headline for the memory")
	saveCmd.Flags().StringVar(&saveType, "type", "", "memory type")
	saveCmd.Flags().StringVar(&saveSubtitle, "subtitle", "", "one-line elaboration")
	saveCmd.Flags().StringVar(&saveNarrative, "narrative", "", "full prose account")
	saveCmd.Flags().StringVar(&saveProject, "project", "", "project tag")
	saveCmd.Flags().StringSliceVar(&saveFacts, "fact", nil, "discrete factual statement (repeatable)")
	saveCmd.Flags().StringSliceVar(&saveConcepts, "concept", nil, "topic keyword (repeatable)")
	saveCmd.Flags().StringSliceVar(&saveEntities, "entity", nil, "person or system mentioned (repeatable)")
	saveCmd.Flags().StringVar(&saveOccurredAt, "occurred", "", "when the event happened (YYYY-MM-DD)")
	saveCmd.Flags().Float64Var(&saveConfidence, "confidence", -1, "confidence in the memory (0-1)")
	saveCmd.Flags().StringVar(&saveSource, "source", "", "how the memory was obtained")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	params := memory.MemorySaveParams{
		Title:      saveTitle,
		Type:       saveType,
		Subtitle:   saveSubtitle,
		Narrative:  saveNarrative,
		Project:    saveProject,
		Facts:      saveFacts,
		Concepts:   saveConcepts,
		Entities:   saveEntities,
		OccurredAt: saveOccurredAt,
		Source:     saveSource,
	}
	if saveConfidence >= 0 {
		params.Confidence = &saveConfidence
	}

	out, err := memory.MemorySave(cmd.Context(), rt.store, params)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
