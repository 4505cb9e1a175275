package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reindex bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the chunk streams into the vector store",
	Long: `Embed every configured collection's chunk stream and store it in the
vector store. Chunks already present are skipped unless --reindex is given.

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&reindex, "reindex", false, "Delete and re-insert chunks that are already indexed")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := loadConfig()
	if err != nil {
		return err
	}
	if app.VectorStore.Type == "memory" {
		fmt.Println(mutedStyle.Render("→ vector_store.type is memory; ask and serve index the streams on startup"))
		return nil
	}

	pipeline, err := openPipeline(ctx, app, needs{retrieval: true})
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer pipeline.Close()

	counts, err := pipeline.Index(ctx, reindex)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	for _, c := range pipeline.Config().Collections {
		n, ok := counts[c.Name]
		if !ok {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("- %s: no stream, skipped", c.Name)))
			continue
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s: indexed %d chunks", c.Name, n)))
	}
	return nil
}
