package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Generate an explanation for every scene",
	Long: `Read the speaker stream written by "scholar parse", ask the configured LLM
for a short analytical explanation of each scene and write the explanation
stream.

Required environment variables (depending on llm.provider):
  OPENAI_API_KEY     - for the openai provider
  GEMINI_API_KEY     - for the gemini provider`,
	Args: cobra.NoArgs,
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, err := openPipeline(ctx, app, needs{llm: true})
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer pipeline.Close()

	explanations, err := pipeline.Explain(ctx)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Wrote %d scene explanations to %s",
		len(explanations), pipeline.Config().Streams.Path(chunk.StreamExplanation))))
	return nil
}
