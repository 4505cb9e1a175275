package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/scholar/internal/config"
	"github.com/Yates-Labs/scholar/internal/orchestrator"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scholar",
	Short: "Scholar - question answering over a play script",
	Long: `Scholar parses a play script into speaker-attributed chunks, derives
scene-level, windowed and explained views of it, indexes them into a vector
store and answers questions with citations to Act and Scene.

Typical flow:
  scholar parse julius_caesar.pdf
  scholar explain
  scholar index
  scholar ask "Why does Brutus join the conspiracy?"`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./scholar.yaml or ~/.config/scholar/config.yaml)")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// needs selects which external collaborators a command builds.
type needs struct {
	retrieval bool
	llm       bool
}

// openPipeline builds only the components a command uses, so parsing works
// without API keys or a running Milvus.
func openPipeline(ctx context.Context, app *config.AppConfig, n needs) (*orchestrator.Pipeline, error) {
	var components orchestrator.Components

	if n.retrieval {
		embedder, err := orchestrator.NewEmbedder(app)
		if err != nil {
			return nil, err
		}
		store, err := orchestrator.NewVectorStore(ctx, app)
		if err != nil {
			return nil, err
		}
		components.Embedder = embedder
		components.VectorStore = store
	}

	if n.llm {
		llm, err := orchestrator.NewLLM(ctx, app)
		if err != nil {
			components.Close()
			return nil, err
		}
		components.LLM = llm
	}

	p, err := orchestrator.NewPipeline(orchestrator.ConfigFromApp(app), components)
	if err != nil {
		components.Close()
		return nil, err
	}

	// An in-memory store starts empty in every process.
	if n.retrieval && app.VectorStore.Type == "memory" {
		if _, err := p.Index(ctx, false); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}
