package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/Yates-Labs/scholar/internal/chunk"
	"github.com/Yates-Labs/scholar/internal/config"
	"github.com/Yates-Labs/scholar/internal/narrative"
	"github.com/Yates-Labs/scholar/internal/parse"
	"github.com/Yates-Labs/scholar/internal/rag"
)

// LoadDocument reads a PDF or form-feed separated text export into pages.
func LoadDocument(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before loading: %w", err)
	}

	pages, err := parse.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Printf("[Pipeline] Loaded %d pages from %s", len(pages), path)
	return pages, nil
}

// ParsePages runs the classifier and assembler over pages, skipping front
// matter. Parsing is a single ordered pass.
func ParsePages(ctx context.Context, pages [][]string, cfg PipelineConfig) ([]chunk.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before parsing: %w", err)
	}

	chunks := parse.Parse(pages, parse.Options{
		Title:            cfg.Title,
		FrontMatterPages: cfg.FrontMatterPages,
	})

	counts := chunk.CountByType(chunks)
	log.Printf("[Pipeline] Parsed %d chunks (%d speech, %d narration, %d stage directions)",
		len(chunks), counts[chunk.TypeSpeech], counts[chunk.TypeNarration], counts[chunk.TypeStageDirection])
	return chunks, nil
}

// NewEmbedder builds the OpenAI embedder named by the configuration.
func NewEmbedder(app *config.AppConfig) (rag.Embedder, error) {
	embedder, err := rag.NewOpenAIEmbedder(app.Embedder.Model, app.Embedder.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewVectorStore builds the configured vector store.
func NewVectorStore(ctx context.Context, app *config.AppConfig) (rag.VectorStore, error) {
	switch app.VectorStore.Type {
	case "memory":
		return rag.NewMemoryStore(app.Embedder.Dimension), nil
	case "milvus":
		m := app.VectorStore.Milvus
		store, err := rag.NewMilvusStore(ctx, rag.MilvusConfig{
			Address:          m.Address,
			CollectionPrefix: m.CollectionPrefix,
			Dimension:        app.Embedder.Dimension,
			IndexType:        m.IndexType,
			MetricType:       m.MetricType,
			M:                m.M,
			EfConstruction:   m.EfConstruction,
			Ef:               m.Ef,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", config.ErrInvalidConfig, app.VectorStore.Type)
	}
}

// NewLLM builds the configured LLM.
func NewLLM(ctx context.Context, app *config.AppConfig) (narrative.LLM, error) {
	llm, err := narrative.NewLLM(ctx, ConfigFromApp(app).LLMConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	return llm, nil
}
