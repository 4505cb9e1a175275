package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/Yates-Labs/scholar/internal/chunk"
	"github.com/Yates-Labs/scholar/internal/config"
	"github.com/Yates-Labs/scholar/internal/derive"
	"github.com/Yates-Labs/scholar/internal/narrative"
	"github.com/Yates-Labs/scholar/internal/rag"
)

// ErrMissingComponent is returned when a stage runs without the collaborator
// it needs (for example asking without an embedder).
var ErrMissingComponent = errors.New("pipeline component not configured")

// PipelineConfig holds configuration for every pipeline stage.
type PipelineConfig struct {
	// Title is the work being read; it drives header stripping and prompts
	Title string

	// FrontMatterPages is the number of leading pages the parser skips
	FrontMatterPages int

	// Streams locates the persisted JSONL chunk files
	Streams config.StreamsConfig

	// Window sizes the sliding context windows
	Window derive.WindowOptions

	// Collections are queried in order; the order breaks confidence ties
	Collections []rag.Collection

	// TopK is the number of hits requested from each collection
	TopK int

	// MaxContext is the maximum number of ranked results placed in the prompt (0 = all)
	MaxContext int

	// Index controls batch size and re-indexing behaviour
	Index rag.IndexOptions

	// ExplainConcurrency bounds parallel scene-explanation requests
	ExplainConcurrency int

	// LLMConfig holds the LLM configuration for answers and explanations
	LLMConfig narrative.LLMConfig
}

// DefaultPipelineConfig returns defaults matching config.Default.
func DefaultPipelineConfig() PipelineConfig {
	return ConfigFromApp(config.Default())
}

// ConfigFromApp maps the application configuration onto the pipeline.
func ConfigFromApp(app *config.AppConfig) PipelineConfig {
	collections := make([]rag.Collection, len(app.Retrieval.Collections))
	for i, c := range app.Retrieval.Collections {
		collections[i] = rag.Collection{Name: c.Name, Weight: c.Weight}
	}

	index := rag.DefaultIndexOptions()
	if app.Embedder.BatchSize > 0 {
		index.BatchSize = app.Embedder.BatchSize
	}

	return PipelineConfig{
		Title:              app.Title,
		FrontMatterPages:   app.FrontMatterPages,
		Streams:            app.Streams,
		Window:             derive.WindowOptions{Size: app.Window.Size, Step: app.Window.Step},
		Collections:        collections,
		TopK:               app.Retrieval.TopK,
		MaxContext:         app.Retrieval.MaxContext,
		Index:              index,
		ExplainConcurrency: app.Explain.Concurrency,
		LLMConfig: narrative.LLMConfig{
			Provider:    app.LLM.Provider,
			Model:       app.LLM.Model,
			Temperature: app.LLM.Temperature,
			MaxTokens:   app.LLM.MaxTokens,
		},
	}
}

// Components are the external collaborators. Any of them may be nil; stages
// that need a missing one fail with ErrMissingComponent.
type Components struct {
	Embedder    rag.Embedder
	VectorStore rag.VectorStore
	LLM         narrative.LLM
}

// Close releases whichever components hold resources. It is safe on a
// partially built set.
func (c Components) Close() error {
	var errs []error
	if c.VectorStore != nil {
		errs = append(errs, c.VectorStore.Close())
	}
	if closer, ok := c.LLM.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Pipeline orchestrates parsing, derivation, indexing and question answering.
type Pipeline struct {
	config      PipelineConfig
	embedder    rag.Embedder
	vectorStore rag.VectorStore
	llm         narrative.LLM
	ranker      *rag.Ranker
	generator   *narrative.Generator
}

// NewPipeline wires a pipeline from already-built components.
func NewPipeline(cfg PipelineConfig, components Components) (*Pipeline, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	if err := rag.ValidateCollections(cfg.Collections); err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:      cfg,
		embedder:    components.Embedder,
		vectorStore: components.VectorStore,
		llm:         components.LLM,
	}

	if p.embedder != nil && p.vectorStore != nil {
		ranker, err := rag.NewRanker(p.embedder, p.vectorStore, cfg.Collections, cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("failed to create ranker: %w", err)
		}
		p.ranker = ranker
	}
	if p.llm != nil {
		p.generator = narrative.NewGenerator(p.llm, cfg.LLMConfig).WithTitle(cfg.Title)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// Close releases resources held by the vector store and the LLM.
func (p *Pipeline) Close() error {
	return Components{VectorStore: p.vectorStore, LLM: p.llm}.Close()
}

// IngestResult holds the streams written by Ingest.
type IngestResult struct {
	Speaker []chunk.Chunk
	Scenes  []chunk.Chunk
	Windows []chunk.Chunk
}

// Ingest parses pages into the speaker stream, derives the scene and context
// window streams from its dialogue, and writes all three to disk.
func (p *Pipeline) Ingest(ctx context.Context, pages [][]string) (*IngestResult, error) {
	speaker, err := ParsePages(ctx, pages, p.config)
	if err != nil {
		return nil, err
	}

	dialogue := chunk.Dialogue(speaker)
	scenes := derive.Scenes(dialogue)
	windows, err := derive.Windows(dialogue, p.config.Window)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] Derived %d scene chunks and %d context windows", len(scenes), len(windows))

	result := &IngestResult{Speaker: speaker, Scenes: scenes, Windows: windows}
	streams := []struct {
		name   string
		chunks []chunk.Chunk
	}{
		{chunk.StreamSpeaker, speaker},
		{chunk.StreamScene, scenes},
		{chunk.StreamContext, windows},
	}
	for _, s := range streams {
		if err := p.writeStream(s.name, s.chunks); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Explain reads the speaker stream, asks the LLM about every scene and writes
// the explanation stream.
func (p *Pipeline) Explain(ctx context.Context) ([]chunk.Chunk, error) {
	if p.generator == nil {
		return nil, fmt.Errorf("%w: LLM", ErrMissingComponent)
	}
	if _, ok := p.llm.(*narrative.ExcerptLLM); ok {
		return nil, fmt.Errorf("%w: scene explanations need a model", narrative.ErrUnsupportedPrompt)
	}

	speaker, err := p.readStream(chunk.StreamSpeaker)
	if err != nil {
		return nil, err
	}

	dialogue := chunk.Dialogue(speaker)
	log.Printf("[Pipeline] Explaining %d scenes", len(derive.GroupByScene(dialogue)))
	explanations, err := derive.Explanations(ctx, p.generator, dialogue, p.config.ExplainConcurrency)
	if err != nil {
		return nil, err
	}

	if err := p.writeStream(chunk.StreamExplanation, explanations); err != nil {
		return nil, err
	}
	return explanations, nil
}

// Index embeds every configured collection's stream into the vector store.
// Streams that have not been produced yet are skipped. It returns the number
// of chunks inserted per collection.
func (p *Pipeline) Index(ctx context.Context, reindex bool) (map[string]int, error) {
	if p.embedder == nil || p.vectorStore == nil {
		return nil, fmt.Errorf("%w: embedder and vector store", ErrMissingComponent)
	}

	opts := p.config.Index
	if reindex {
		opts.ForceReindex = true
		opts.SkipExisting = false
	}

	counts := make(map[string]int, len(p.config.Collections))
	for _, c := range p.config.Collections {
		chunks, err := p.readStream(c.Name)
		if errors.Is(err, chunk.ErrStreamNotFound) {
			log.Printf("[Pipeline] Warning: no %s stream at %s, skipping", c.Name, p.config.Streams.Path(c.Name))
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("[Pipeline] Indexing %d chunks into %s", len(chunks), c.Name)
		n, err := rag.IndexChunks(ctx, c.Name, chunks, p.embedder, p.vectorStore, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", c.Name, err)
		}
		counts[c.Name] = n
		log.Printf("[Pipeline] Indexed %d new chunks into %s", n, c.Name)
	}
	return counts, nil
}

// AskResult is the answer to one question plus the evidence it was built on.
type AskResult struct {
	QueryID string
	Answer  *narrative.Answer
	Sources []rag.Source
}

// Ask answers a question about the play.
// The pipeline: ranking -> context prefix -> prompt assembly -> LLM generation
func (p *Pipeline) Ask(ctx context.Context, query string) (*AskResult, error) {
	if p.ranker == nil {
		return nil, fmt.Errorf("%w: embedder and vector store", ErrMissingComponent)
	}
	if p.generator == nil {
		return nil, fmt.Errorf("%w: LLM", ErrMissingComponent)
	}
	if strings.TrimSpace(query) == "" {
		return nil, rag.ErrEmptyQuery
	}

	queryID := uuid.NewString()
	log.Printf("[Pipeline] %s: answering %q", queryID, query)

	// Stage 1: Retrieval - rank hits from every collection
	results, err := p.ranker.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] %s: ranked %d results across %d collections", queryID, len(results), len(p.config.Collections))

	// Stage 2: Context - keep the highest-confidence prefix
	selected := rag.Prefix(results, p.config.MaxContext)
	if len(selected) < len(results) {
		log.Printf("[Pipeline] %s: trimmed context to %d results (max size)", queryID, len(selected))
	}
	contextBlock := rag.BuildContext(selected)

	// Stage 3: Generation
	answer, err := p.generator.Answer(ctx, query, contextBlock)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] %s: generated answer (%d characters)", queryID, len(answer.Text))

	return &AskResult{
		QueryID: queryID,
		Answer:  answer,
		Sources: rag.Sources(selected),
	}, nil
}

func (p *Pipeline) writeStream(stream string, chunks []chunk.Chunk) error {
	path := p.config.Streams.Path(stream)
	if err := chunk.WriteFile(path, chunks); err != nil {
		return fmt.Errorf("failed to write %s stream: %w", stream, err)
	}
	log.Printf("[Pipeline] Wrote %d chunks to %s", len(chunks), path)
	return nil
}

func (p *Pipeline) readStream(stream string) ([]chunk.Chunk, error) {
	path := p.config.Streams.Path(stream)
	chunks, skipped, err := chunk.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Printf("[Pipeline] Warning: skipped %d malformed lines in %s", skipped, path)
	}
	return chunks, nil
}
