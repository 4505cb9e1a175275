package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yates-Labs/scholar/internal/chunk"
	"github.com/Yates-Labs/scholar/internal/config"
	"github.com/Yates-Labs/scholar/internal/narrative"
	"github.com/Yates-Labs/scholar/internal/rag"
)

// keywordEmbedder counts a few names so related texts land near each other.
type keywordEmbedder struct{}

var keywords = []string{"caesar", "brutus", "march", "flavius"}

func (keywordEmbedder) Embed(ctx context.Context, texts []string) ([]rag.EmbeddingRecord, error) {
	records := make([]rag.EmbeddingRecord, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(keywords)+1)
		for k, word := range keywords {
			vec[k] = float32(strings.Count(lower, word))
		}
		vec[len(keywords)] = 1
		records[i] = rag.EmbeddingRecord{Text: text, Embedding: vec, Index: i, Model: "keyword"}
	}
	return records, nil
}

func (keywordEmbedder) GetModel() string  { return "keyword" }
func (keywordEmbedder) GetDimension() int { return len(keywords) + 1 }

var testPages = [][]string{
	{"Front matter that must be skipped"},
	{
		"ACT 1",
		"SCENE 1",
		"FLAVIUS Hence! Home, you idle creatures.",
		"MARULLUS Where is thy leather apron?",
		"Exeunt.",
		"SCENE 2",
		"CAESAR Calpurnia!",
		"CASCA Peace, ho! Caesar speaks.",
		"BRUTUS Beware the ides of March.",
	},
}

func testConfig(t *testing.T) PipelineConfig {
	t.Helper()
	cfg := DefaultPipelineConfig()
	cfg.FrontMatterPages = 1
	cfg.Streams.Dir = t.TempDir()
	return cfg
}

func newTestPipeline(t *testing.T, llm narrative.LLM) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testConfig(t), Components{
		Embedder:    keywordEmbedder{},
		VectorStore: rag.NewMemoryStore(len(keywords) + 1),
		LLM:         llm,
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.TopK != 2 {
		t.Errorf("Expected TopK=2, got %d", cfg.TopK)
	}
	if cfg.MaxContext != 0 {
		t.Errorf("Expected MaxContext=0, got %d", cfg.MaxContext)
	}
	if cfg.Window.Size != 5 || cfg.Window.Step != 3 {
		t.Errorf("Expected window 5/3, got %+v", cfg.Window)
	}
	if len(cfg.Collections) != 4 || cfg.Collections[0].Name != chunk.StreamScene {
		t.Errorf("Expected scene-first collections, got %+v", cfg.Collections)
	}
	if cfg.Index.BatchSize != 32 || !cfg.Index.SkipExisting {
		t.Errorf("Unexpected index options %+v", cfg.Index)
	}
}

func TestConfigFromApp(t *testing.T) {
	app := config.Default()
	app.Retrieval.Collections = []config.CollectionConfig{{Name: "speaker", Weight: 2}}
	app.LLM.Provider = "excerpt"
	app.Embedder.BatchSize = 8

	cfg := ConfigFromApp(app)
	if len(cfg.Collections) != 1 || cfg.Collections[0].Weight != 2 {
		t.Errorf("collections not mapped: %+v", cfg.Collections)
	}
	if cfg.LLMConfig.Provider != "excerpt" {
		t.Errorf("expected excerpt provider, got %q", cfg.LLMConfig.Provider)
	}
	if cfg.Index.BatchSize != 8 {
		t.Errorf("expected batch size 8, got %d", cfg.Index.BatchSize)
	}
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Window.Step = 0
	if _, err := NewPipeline(cfg, Components{}); err == nil {
		t.Error("expected error for invalid window")
	}

	cfg = DefaultPipelineConfig()
	cfg.Collections = nil
	if _, err := NewPipeline(cfg, Components{}); !errors.Is(err, rag.ErrInvalidCollection) {
		t.Errorf("expected ErrInvalidCollection, got %v", err)
	}
}

func TestPipeline_Ingest(t *testing.T) {
	p := newTestPipeline(t, nil)

	result, err := p.Ingest(context.Background(), testPages)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(result.Speaker) != 6 {
		t.Fatalf("expected 6 speaker chunks, got %d", len(result.Speaker))
	}
	if result.Speaker[2].Type != chunk.TypeStageDirection {
		t.Errorf("expected stage direction at index 2, got %s", result.Speaker[2].Type)
	}
	if len(result.Scenes) != 2 {
		t.Errorf("expected 2 scenes, got %d", len(result.Scenes))
	}
	if len(result.Windows) != 2 {
		t.Errorf("expected 2 windows, got %d", len(result.Windows))
	}

	for _, stream := range []string{chunk.StreamSpeaker, chunk.StreamScene, chunk.StreamContext} {
		chunks, skipped, err := chunk.ReadFile(p.Config().Streams.Path(stream))
		if err != nil {
			t.Fatalf("reading %s stream: %v", stream, err)
		}
		if skipped != 0 || len(chunks) == 0 {
			t.Errorf("%s stream: %d chunks, %d skipped", stream, len(chunks), skipped)
		}
	}
}

func TestPipeline_Ingest_WritesStreamsInOrder(t *testing.T) {
	p := newTestPipeline(t, nil)
	streams := p.Config().Streams

	// A directory where the scene stream belongs makes that write fail.
	if err := os.MkdirAll(streams.Path(chunk.StreamScene), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Ingest(context.Background(), testPages); err == nil {
		t.Fatal("expected the scene write to fail")
	}
	if _, _, err := chunk.ReadFile(streams.Path(chunk.StreamSpeaker)); err != nil {
		t.Errorf("speaker stream is written first: %v", err)
	}
	if _, _, err := chunk.ReadFile(streams.Path(chunk.StreamContext)); !errors.Is(err, chunk.ErrStreamNotFound) {
		t.Errorf("context stream must not be written after a failed scene write, got %v", err)
	}
}

func TestPipeline_Explain(t *testing.T) {
	llm := narrative.NewMockLLM("")
	p := newTestPipeline(t, llm)

	if _, err := p.Ingest(context.Background(), testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	explanations, err := p.Explain(context.Background())
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	if len(explanations) != 2 {
		t.Fatalf("expected 2 explanations, got %d", len(explanations))
	}
	if explanations[0].ID != "1_1" || explanations[1].ID != "1_2" {
		t.Errorf("unexpected ids %q %q", explanations[0].ID, explanations[1].ID)
	}
	if llm.Calls() != 2 {
		t.Errorf("expected 2 LLM calls, got %d", llm.Calls())
	}
	if _, _, err := chunk.ReadFile(p.Config().Streams.Path(chunk.StreamExplanation)); err != nil {
		t.Errorf("explanation stream not written: %v", err)
	}
}

func TestPipeline_Explain_ExcerptProviderLeavesStreamUntouched(t *testing.T) {
	p := newTestPipeline(t, narrative.NewExcerptLLM())

	if _, err := p.Ingest(context.Background(), testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	_, err := p.Explain(context.Background())
	if !errors.Is(err, narrative.ErrUnsupportedPrompt) {
		t.Fatalf("expected ErrUnsupportedPrompt, got %v", err)
	}
	_, _, err = chunk.ReadFile(p.Config().Streams.Path(chunk.StreamExplanation))
	if !errors.Is(err, chunk.ErrStreamNotFound) {
		t.Errorf("explanation stream should not be written, got %v", err)
	}
}

func TestPipeline_Explain_MissingStream(t *testing.T) {
	p := newTestPipeline(t, narrative.NewMockLLM("x"))

	_, err := p.Explain(context.Background())
	if !errors.Is(err, chunk.ErrStreamNotFound) {
		t.Errorf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestPipeline_Index(t *testing.T) {
	p := newTestPipeline(t, narrative.NewMockLLM(""))
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := p.Explain(ctx); err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	counts, err := p.Index(ctx, false)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	want := map[string]int{"speaker": 6, "scene": 2, "context": 2, "explanation": 2}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s: expected %d indexed, got %d", name, n, counts[name])
		}
	}

	again, err := p.Index(ctx, false)
	if err != nil {
		t.Fatalf("second Index failed: %v", err)
	}
	if again["speaker"] != 0 {
		t.Errorf("expected existing chunks to be skipped, got %d", again["speaker"])
	}

	forced, err := p.Index(ctx, true)
	if err != nil {
		t.Fatalf("forced Index failed: %v", err)
	}
	if forced["speaker"] != 6 {
		t.Errorf("expected reindex of 6 chunks, got %d", forced["speaker"])
	}
}

func TestPipeline_Index_SkipsMissingStreams(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	counts, err := p.Index(ctx, false)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if _, ok := counts[chunk.StreamExplanation]; ok {
		t.Error("explanation stream should have been skipped")
	}
}

func TestPipeline_Ask(t *testing.T) {
	llm := narrative.NewMockLLM("Brutus is warned by the soothsayer.")
	p := newTestPipeline(t, llm)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := p.Index(ctx, false); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	result, err := p.Ask(ctx, "Who hears about the ides of March?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.QueryID == "" {
		t.Error("expected a query id")
	}
	if result.Answer.Text != "Brutus is warned by the soothsayer." {
		t.Errorf("unexpected answer %q", result.Answer.Text)
	}
	// scene, context and speaker collections each return topK=2 hits
	if len(result.Sources) != 6 {
		t.Fatalf("expected 6 sources, got %d", len(result.Sources))
	}
	for i := 1; i < len(result.Sources); i++ {
		if result.Sources[i].Confidence > result.Sources[i-1].Confidence {
			t.Errorf("sources not sorted at %d: %v > %v", i, result.Sources[i].Confidence, result.Sources[i-1].Confidence)
		}
	}

	prompt := llm.LastPrompt()
	if !strings.Contains(prompt, "Question: Who hears about the ides of March?") {
		t.Error("prompt should contain the question")
	}
	if !strings.Contains(prompt, "[Act 1]") {
		t.Error("prompt should contain context entries")
	}
}

func TestPipeline_Ask_MaxContext(t *testing.T) {
	p := newTestPipeline(t, narrative.NewMockLLM("ok"))
	p.config.MaxContext = 3
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testPages); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := p.Index(ctx, false); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	result, err := p.Ask(ctx, "Caesar")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(result.Sources) != 3 {
		t.Errorf("expected 3 sources, got %d", len(result.Sources))
	}
}

func TestPipeline_Ask_Errors(t *testing.T) {
	ctx := context.Background()

	noLLM := newTestPipeline(t, nil)
	if _, err := noLLM.Ask(ctx, "Who?"); !errors.Is(err, ErrMissingComponent) {
		t.Errorf("expected ErrMissingComponent, got %v", err)
	}

	p := newTestPipeline(t, narrative.NewMockLLM("ok"))
	if _, err := p.Ask(ctx, "   "); !errors.Is(err, rag.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}

	failing := newTestPipeline(t, narrative.NewMockLLMWithError(errors.New("quota")))
	if _, err := failing.Ask(ctx, "Who?"); !errors.Is(err, narrative.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

type closingStore struct {
	rag.VectorStore
	closed int
}

func (s *closingStore) Close() error {
	s.closed++
	return nil
}

type closingLLM struct {
	*narrative.MockLLM
	closed int
}

func (l *closingLLM) Close() error {
	l.closed++
	return errors.New("already closed")
}

func TestComponents_Close(t *testing.T) {
	store := &closingStore{VectorStore: rag.NewMemoryStore(2)}
	llm := &closingLLM{MockLLM: narrative.NewMockLLM("ok")}

	err := Components{VectorStore: store, LLM: llm}.Close()
	if store.closed != 1 || llm.closed != 1 {
		t.Errorf("expected both closed once, got store=%d llm=%d", store.closed, llm.closed)
	}
	if err == nil || !strings.Contains(err.Error(), "already closed") {
		t.Errorf("expected the LLM close error, got %v", err)
	}

	// Only the LLM was built when NewPipeline rejected the config.
	llmOnly := &closingLLM{MockLLM: narrative.NewMockLLM("ok")}
	_ = Components{LLM: llmOnly}.Close()
	if llmOnly.closed != 1 {
		t.Errorf("expected LLM closed without a store, got %d", llmOnly.closed)
	}

	if err := (Components{}).Close(); err != nil {
		t.Errorf("empty components should close cleanly: %v", err)
	}
}

func TestPipeline_IndexWithoutStore(t *testing.T) {
	p, err := NewPipeline(testConfig(t), Components{})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if _, err := p.Index(context.Background(), false); !errors.Is(err, ErrMissingComponent) {
		t.Errorf("expected ErrMissingComponent, got %v", err)
	}
}

func TestLoadDocument(t *testing.T) {
	pages, err := LoadDocument(context.Background(), filepath.Join("..", "parse", "testdata", "two_page.txt"))
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if len(pages) != 3 {
		t.Errorf("expected 3 pages, got %d", len(pages))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadDocument(ctx, "unused.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewVectorStore(t *testing.T) {
	app := config.Default()
	app.VectorStore.Type = "memory"

	store, err := NewVectorStore(context.Background(), app)
	if err != nil {
		t.Fatalf("NewVectorStore failed: %v", err)
	}
	if _, ok := store.(*rag.MemoryStore); !ok {
		t.Errorf("expected *rag.MemoryStore, got %T", store)
	}

	app.VectorStore.Type = "qdrant"
	if _, err := NewVectorStore(context.Background(), app); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
