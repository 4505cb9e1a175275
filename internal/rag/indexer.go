package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var ErrIndexFailed = errors.New("indexing failed")

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:    32, // Batch size for embedding API calls
		ForceReindex: false,
		SkipExisting: true,
	}
}

// IndexChunks embeds chunks and stores them in one collection:
//  1. drops chunks with empty text
//  2. deletes existing IDs when ForceReindex is set, or skips them when SkipExisting is
//  3. embeds the remaining texts in batches and normalizes every vector
//  4. inserts each batch with its metadata and flushes it
//
// It returns the number of chunks inserted.
func IndexChunks(
	ctx context.Context,
	collection string,
	chunks []chunk.Chunk,
	embedder Embedder,
	vectorStore VectorStore,
	opts IndexOptions,
) (int, error) {
	if embedder == nil {
		return 0, fmt.Errorf("%w: embedder cannot be nil", ErrIndexFailed)
	}
	if vectorStore == nil {
		return 0, fmt.Errorf("%w: vector store cannot be nil", ErrIndexFailed)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	toIndex := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			toIndex = append(toIndex, c)
		}
	}
	if len(toIndex) == 0 {
		return 0, nil
	}

	if opts.ForceReindex {
		if err := vectorStore.Delete(ctx, collection, chunkIDs(toIndex)); err != nil {
			return 0, fmt.Errorf("%w: failed to delete existing chunks: %w", ErrIndexFailed, err)
		}
	} else if opts.SkipExisting {
		toIndex = filterNewChunks(ctx, collection, toIndex, vectorStore)
	}

	inserted := 0
	for batchStart := 0; batchStart < len(toIndex); batchStart += opts.BatchSize {
		batchEnd := min(batchStart+opts.BatchSize, len(toIndex))
		batch := toIndex[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embeddings, err := embedder.Embed(ctx, texts)
		if err != nil {
			return inserted, fmt.Errorf("%w: failed to generate embeddings for batch starting at %d: %w", ErrIndexFailed, batchStart, err)
		}
		if len(embeddings) != len(batch) {
			return inserted, fmt.Errorf("%w: expected %d embeddings, got %d", ErrIndexFailed, len(batch), len(embeddings))
		}

		records := make([]ChunkRecord, len(batch))
		for i, c := range batch {
			records[i] = ChunkRecord{
				ID:        c.ID,
				Text:      c.Text,
				Metadata:  MetadataOf(c),
				Embedding: Normalize(embeddings[i].Embedding),
			}
		}

		if err := vectorStore.Insert(ctx, collection, records); err != nil {
			return inserted, fmt.Errorf("%w: failed to insert batch starting at %d: %w", ErrIndexFailed, batchStart, err)
		}
		if err := vectorStore.Flush(ctx, collection); err != nil {
			return inserted, fmt.Errorf("%w: failed to flush batch starting at %d: %w", ErrIndexFailed, batchStart, err)
		}
		inserted += len(batch)
	}

	return inserted, nil
}

// filterNewChunks removes chunks whose IDs already exist in the collection.
// If the existence query fails every chunk is kept.
func filterNewChunks(ctx context.Context, collection string, chunks []chunk.Chunk, vectorStore VectorStore) []chunk.Chunk {
	existing, err := vectorStore.Query(ctx, collection, chunkIDs(chunks))
	if err != nil {
		return chunks
	}

	fresh := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !existing[c.ID] {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

func chunkIDs(chunks []chunk.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
