package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-process VectorStore. Distances are squared
// L2, matching MilvusStore, so both stores rank identically.
type MemoryStore struct {
	mu          sync.RWMutex
	dimension   int
	collections map[string][]ChunkRecord
}

// NewMemoryStore creates an empty store. A dimension of 0 accepts any length
// but still requires every vector in a collection to agree.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension:   dimension,
		collections: make(map[string][]ChunkRecord),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	want := m.dimension
	if existing := m.collections[collection]; want == 0 && len(existing) > 0 {
		want = len(existing[0].Embedding)
	}
	for _, r := range records {
		if want == 0 {
			want = len(r.Embedding)
		}
		if len(r.Embedding) != want {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, want, len(r.Embedding))
		}
	}
	m.collections[collection] = append(m.collections[collection], records...)
	return nil
}

func (m *MemoryStore) Flush(ctx context.Context, collection string) error {
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.collections[collection]
	hits := make([]Hit, 0, len(records))
	for _, r := range records {
		hits = append(hits, Hit{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: squaredL2(queryVector, r.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existence := make(map[string]bool, len(ids))
	for _, id := range ids {
		existence[id] = false
	}
	for _, r := range m.collections[collection] {
		if _, asked := existence[r.ID]; asked {
			existence[r.ID] = true
		}
	}
	return existence, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.collections[collection][:0]
	for _, r := range m.collections[collection] {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	m.collections[collection] = kept
	return nil
}

func (m *MemoryStore) GetStats(ctx context.Context, collection string) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"row_count": len(m.collections[collection]),
	}, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
