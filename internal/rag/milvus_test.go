package rag

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

func TestDefaultMilvusConfig(t *testing.T) {
	t.Setenv("MILVUS_ADDRESS", "")
	t.Setenv("MILVUS_COLLECTION_PREFIX", "")
	config := DefaultMilvusConfig()

	if config.Address != "localhost:19530" {
		t.Errorf("unexpected address %q", config.Address)
	}
	if config.CollectionPrefix != "julius_caesar_" {
		t.Errorf("unexpected prefix %q", config.CollectionPrefix)
	}
	if config.Dimension != DefaultEmbeddingDimension {
		t.Errorf("expected dimension %d, got %d", DefaultEmbeddingDimension, config.Dimension)
	}
	if config.IndexType != "HNSW" {
		t.Errorf("expected index type HNSW, got %s", config.IndexType)
	}
	if config.MetricType != "L2" {
		t.Errorf("expected metric type L2, got %s", config.MetricType)
	}
}

func TestDefaultMilvusConfig_EnvOverride(t *testing.T) {
	t.Setenv("MILVUS_ADDRESS", "milvus:19530")
	t.Setenv("MILVUS_COLLECTION_PREFIX", "test_")
	config := DefaultMilvusConfig()

	if config.Address != "milvus:19530" || config.CollectionPrefix != "test_" {
		t.Errorf("env overrides not applied: %+v", config)
	}
}

func TestMilvusStore_CollectionName(t *testing.T) {
	store := &MilvusStore{config: MilvusConfig{CollectionPrefix: "julius_caesar_"}}
	if got := store.CollectionName(chunk.StreamScene); got != "julius_caesar_scene" {
		t.Errorf("unexpected collection name %q", got)
	}
}

func TestMilvusStore_EmptyRecords(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}
	if err := store.Insert(context.Background(), chunk.StreamSpeaker, nil); err != ErrEmptyRecords {
		t.Errorf("expected ErrEmptyRecords, got %v", err)
	}
}

func TestMilvusStore_SearchDimensionMismatch(t *testing.T) {
	store := &MilvusStore{config: MilvusConfig{Dimension: 4}}
	_, err := store.Search(context.Background(), chunk.StreamScene, []float32{1, 0}, 2)
	if err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestMilvusConfig_ValidateIndex(t *testing.T) {
	tests := []struct {
		name       string
		indexType  string
		metricType string
		wantErr    bool
	}{
		{"hnsw l2", "HNSW", "L2", false},
		{"flat l2", "FLAT", "L2", false},
		{"lower case", "flat", "l2", false},
		{"inner product", "HNSW", "IP", true},
		{"cosine", "HNSW", "COSINE", true},
		{"ivf", "IVF_FLAT", "L2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := MilvusConfig{IndexType: tt.indexType, MetricType: tt.metricType, M: 16, EfConstruction: 256, Ef: 64}
			err := config.validateIndex()
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedIndex) {
					t.Errorf("expected ErrUnsupportedIndex, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := config.index(); err != nil {
				t.Errorf("index() failed: %v", err)
			}
			if _, err := config.searchParam(); err != nil {
				t.Errorf("searchParam() failed: %v", err)
			}
		})
	}
}

func TestMilvusConfig_IndexFollowsType(t *testing.T) {
	config := MilvusConfig{IndexType: "FLAT", MetricType: "L2", M: 16, EfConstruction: 256, Ef: 64}
	idx, err := config.index()
	if err != nil {
		t.Fatalf("index() failed: %v", err)
	}
	if idx.IndexType() != entity.Flat {
		t.Errorf("expected FLAT index, got %s", idx.IndexType())
	}

	config.IndexType = "HNSW"
	idx, err = config.index()
	if err != nil {
		t.Fatalf("index() failed: %v", err)
	}
	if idx.IndexType() != entity.HNSW {
		t.Errorf("expected HNSW index, got %s", idx.IndexType())
	}
}

func TestNewMilvusStore_RejectsSimilarityMetric(t *testing.T) {
	config := DefaultMilvusConfig()
	config.MetricType = "IP"
	if _, err := NewMilvusStore(context.Background(), config); !errors.Is(err, ErrUnsupportedIndex) {
		t.Errorf("expected ErrUnsupportedIndex before connecting, got %v", err)
	}
}

func TestIDFilter(t *testing.T) {
	got := idFilter([]string{"1_2", `we"ird`})
	want := `chunk_id in ["1_2", "we\"ird"]`
	if got != want {
		t.Errorf("idFilter = %s, want %s", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Brutè", 5); got != "Brut" {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
	if got := truncate("Cinna", 10); got != "Cinna" {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

// Integration test: index a stream, search it, delete it.
func TestMilvusStore_Integration_FullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	ctx := context.Background()
	config := DefaultMilvusConfig()
	config.CollectionPrefix = "scholar_test_"

	store, err := NewMilvusStore(ctx, config)
	if err != nil {
		t.Skipf("Milvus not available: %v", err)
	}
	defer store.Close()

	embedder, err := NewOpenAIEmbedder(DefaultEmbeddingModel, config.Dimension)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	a, _ := chunk.New("0", chunk.TypeSpeech, chunk.Str("3"), chunk.Str("2"), chunk.Str("ANTONY"), "Friends, Romans, countrymen, lend me your ears!")
	b, _ := chunk.New("1", chunk.TypeSpeech, chunk.Str("3"), chunk.Str("1"), chunk.Str("CAESAR"), "Et tu, Brute? Then fall, Caesar.")
	_ = store.Delete(ctx, chunk.StreamSpeaker, []string{"0", "1"})

	n, err := IndexChunks(ctx, chunk.StreamSpeaker, []chunk.Chunk{a, b}, embedder, store, IndexOptions{BatchSize: 2, ForceReindex: true})
	if err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	query, err := EmbedQuery(ctx, embedder, "Who asks the crowd to lend their ears?")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	hits, err := store.Search(ctx, chunk.StreamSpeaker, query, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || chunk.Value(hits[0].Metadata.Speaker) != "ANTONY" {
		t.Errorf("expected ANTONY as nearest hit, got %+v", hits)
	}

	missing, err := store.Search(ctx, "no_such_stream", query, 1)
	if err != nil || len(missing) != 0 {
		t.Errorf("expected empty result for missing collection, got %v, %v", missing, err)
	}

	if err := store.Delete(ctx, chunk.StreamSpeaker, []string{"0", "1"}); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}
