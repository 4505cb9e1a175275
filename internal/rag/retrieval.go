package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var (
	ErrEmptyQuery        = errors.New("query cannot be empty")
	ErrRetrievalFailed   = errors.New("retrieval failed")
	ErrInvalidCollection = errors.New("invalid collection configuration")
)

// Collection is a named source with a static ranking weight.
type Collection struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// DefaultCollections lists every collection in query order. The order breaks
// confidence ties.
func DefaultCollections() []Collection {
	return []Collection{
		{Name: chunk.StreamScene, Weight: 1.40},
		{Name: chunk.StreamExplanation, Weight: 1.30},
		{Name: chunk.StreamContext, Weight: 1.10},
		{Name: chunk.StreamSpeaker, Weight: 1.00},
	}
}

// DefaultTopK is the number of hits requested from each collection.
const DefaultTopK = 2

// ValidateCollections rejects an empty list, blank or duplicate names, and
// negative weights.
func ValidateCollections(collections []Collection) error {
	if len(collections) == 0 {
		return fmt.Errorf("%w: at least one collection is required", ErrInvalidCollection)
	}
	seen := make(map[string]bool, len(collections))
	for _, c := range collections {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollection)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidCollection, c.Name)
		}
		if c.Weight < 0 {
			return fmt.Errorf("%w: negative weight for %q", ErrInvalidCollection, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// RankedResult is one hit scored against every other hit of the query.
type RankedResult struct {
	ID         string
	Text       string
	Metadata   Metadata
	Collection string
	Distance   float32
	Confidence float64
}

// Confidence converts a distance into a weighted similarity:
// 1/(1+d) scaled by the collection weight. Negative distances count as 0.
func Confidence(distance float32, weight float64) float64 {
	d := math.Max(float64(distance), 0)
	return 1 / (1 + d) * weight
}

// Ranker fans a query out to every collection and fuses the hits into one
// list ordered by confidence.
type Ranker struct {
	embedder    Embedder
	vectorStore VectorStore
	collections []Collection
	topK        int
}

// NewRanker creates a ranker. A topK of 0 uses DefaultTopK.
func NewRanker(embedder Embedder, vectorStore VectorStore, collections []Collection, topK int) (*Ranker, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if err := ValidateCollections(collections); err != nil {
		return nil, err
	}
	if topK < 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if topK == 0 {
		topK = DefaultTopK
	}

	return &Ranker{
		embedder:    embedder,
		vectorStore: vectorStore,
		collections: append([]Collection(nil), collections...),
		topK:        topK,
	}, nil
}

// Collections returns the configured collections in query order.
func (r *Ranker) Collections() []Collection {
	return append([]Collection(nil), r.collections...)
}

// TopK returns the per-collection hit count.
func (r *Ranker) TopK() int {
	return r.topK
}

// Rank embeds the query once, searches every collection concurrently with the
// normalized vector, then sorts all hits by confidence descending. Ties keep
// collection order, then each collection's own result order. Any failure
// aborts the query.
func (r *Ranker) Rank(ctx context.Context, query string) ([]RankedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	queryVector, err := EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", ErrRetrievalFailed, err)
	}

	perCollection := make([][]Hit, len(r.collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range r.collections {
		i, c := i, c
		g.Go(func() error {
			hits, err := r.vectorStore.Search(gctx, c.Name, queryVector, r.topK)
			if err != nil {
				return fmt.Errorf("%w: collection %s: %w", ErrRetrievalFailed, c.Name, err)
			}
			perCollection[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []RankedResult
	for i, c := range r.collections {
		for _, h := range perCollection[i] {
			results = append(results, RankedResult{
				ID:         h.ID,
				Text:       h.Text,
				Metadata:   h.Metadata,
				Collection: c.Name,
				Distance:   h.Distance,
				Confidence: Confidence(h.Distance, c.Weight),
			})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Confidence > results[b].Confidence
	})
	return results, nil
}

// Source is the external view of a ranked result.
type Source struct {
	Text       string  `json:"text"`
	Act        *string `json:"act"`
	Scene      *string `json:"scene"`
	Collection string  `json:"collection"`
	Confidence float64 `json:"confidence"`
}

// Sources converts ranked results for output, rounding confidence to four
// decimal places. Order is preserved.
func Sources(results []RankedResult) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			Text:       r.Text,
			Act:        r.Metadata.Act,
			Scene:      r.Metadata.Scene,
			Collection: r.Collection,
			Confidence: Round(r.Confidence, 4),
		}
	}
	return sources
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
