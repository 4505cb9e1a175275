package rag

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
)

func TestNewOpenAIEmbedder_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder(DefaultEmbeddingModel, DefaultEmbeddingDimension)
	if err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewOpenAIEmbedder_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	embedder, err := NewOpenAIEmbedder("", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.GetModel() != DefaultEmbeddingModel {
		t.Errorf("GetModel() = %q, want %q", embedder.GetModel(), DefaultEmbeddingModel)
	}
	if embedder.GetDimension() != DefaultEmbeddingDimension {
		t.Errorf("GetDimension() = %d, want %d", embedder.GetDimension(), DefaultEmbeddingDimension)
	}
}

func TestOpenAIEmbedder_EmptyTexts(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	embedder, err := NewOpenAIEmbedder(DefaultEmbeddingModel, DefaultEmbeddingDimension)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	// Rejected before any request is made.
	if _, err := embedder.Embed(context.Background(), []string{}); err != ErrEmptyTexts {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

func TestEmbedQuery_Normalizes(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
			return []EmbeddingRecord{{Text: texts[0], Embedding: []float32{0, 2, 0}}}, nil
		},
	}

	v, err := EmbedQuery(context.Background(), embedder, "Beware the ides of March")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	if v[0] != 0 || math.Abs(float64(v[1])-1) > 1e-6 || v[2] != 0 {
		t.Errorf("expected unit vector, got %v", v)
	}
}

func TestEmbedQuery_NoRecords(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
			return nil, nil
		},
	}

	if _, err := EmbedQuery(context.Background(), embedder, "q"); !errors.Is(err, ErrEmbeddingFailed) {
		t.Errorf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	embedder, err := NewOpenAIEmbedder(DefaultEmbeddingModel, DefaultEmbeddingDimension)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	texts := []string{"Beware the ides of March.", "The fault, dear Brutus, is not in our stars"}
	records, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(records) != len(texts) {
		t.Fatalf("expected %d records, got %d", len(texts), len(records))
	}
	for i, record := range records {
		if record.Text != texts[i] {
			t.Errorf("record[%d].Text = %q, want %q", i, record.Text, texts[i])
		}
		if len(record.Embedding) != DefaultEmbeddingDimension {
			t.Errorf("record[%d] embedding dimension = %d, want %d", i, len(record.Embedding), DefaultEmbeddingDimension)
		}
	}
}
