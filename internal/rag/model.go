package rag

import (
	"context"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

// Metadata travels with every stored chunk and comes back with each hit.
// Nil fields mean the chunk had no such marker.
type Metadata struct {
	Act     *string    `json:"act"`
	Scene   *string    `json:"scene"`
	Speaker *string    `json:"speaker"`
	Type    chunk.Type `json:"type"`
}

// MetadataOf extracts the stored metadata of a chunk.
func MetadataOf(c chunk.Chunk) Metadata {
	return Metadata{Act: c.Act, Scene: c.Scene, Speaker: c.Speaker, Type: c.Type}
}

// ChunkRecord is one chunk ready for storage.
type ChunkRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// Hit is one similarity-search result. Distance is non-negative and lower
// means more similar.
type Hit struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float32  `json:"distance"`
}

// VectorStore stores chunk embeddings in named collections and answers
// nearest-neighbour queries against one collection at a time.
type VectorStore interface {
	// Insert adds records to a collection, creating it if needed
	Insert(ctx context.Context, collection string, records []ChunkRecord) error

	// Flush ensures all pending data in the collection is persisted
	Flush(ctx context.Context, collection string) error

	// Search returns up to topK hits ordered by ascending distance.
	// A collection that does not exist yields no hits.
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]Hit, error)

	// Query checks which chunk IDs exist in the collection
	Query(ctx context.Context, collection string, ids []string) (map[string]bool, error)

	// Delete removes records by chunk ID
	Delete(ctx context.Context, collection string, ids []string) error

	// GetStats returns collection statistics (row count and so on)
	GetStats(ctx context.Context, collection string) (map[string]interface{}, error)

	// Close releases resources and closes connections
	Close() error
}

// IndexOptions provides configuration for chunk indexing
type IndexOptions struct {
	// BatchSize determines how many chunks to embed at once
	BatchSize int

	// ForceReindex will delete and re-insert chunks even if they exist
	ForceReindex bool

	// SkipExisting will check if a chunk already exists and skip it
	SkipExisting bool
}
