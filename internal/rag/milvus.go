package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

// Common errors for vector store operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyRecords     = errors.New("no records provided for insertion")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
	ErrUnsupportedIndex = errors.New("unsupported index configuration")
)

// Field names of every chunk collection.
const (
	fieldPK        = "pk"
	fieldChunkID   = "chunk_id"
	fieldText      = "text"
	fieldEmbedding = "embedding"
	fieldAct       = "act"
	fieldScene     = "scene"
	fieldSpeaker   = "speaker"
	fieldType      = "type"

	maxTextLength = 65535
)

var outputFields = []string{fieldChunkID, fieldText, fieldAct, fieldScene, fieldSpeaker, fieldType}

// MilvusConfig holds configuration for the Milvus connection and the
// collections it creates.
type MilvusConfig struct {
	Address          string // Milvus server address (e.g., "localhost:19530")
	CollectionPrefix string // Prepended to each logical collection name
	Dimension        int    // Vector dimension, must match the embedder
	IndexType        string // Index type, HNSW or FLAT (default: "HNSW")
	MetricType       string // Distance metric, only L2 keeps lower-is-better distances (default: "L2")

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	Ef             int // HNSW search ef (default: 64)
}

// DefaultMilvusConfig returns default configuration, honouring MILVUS_ADDRESS
// and MILVUS_COLLECTION_PREFIX.
func DefaultMilvusConfig() MilvusConfig {
	address := os.Getenv("MILVUS_ADDRESS")
	if address == "" {
		address = "localhost:19530"
	}

	prefix := os.Getenv("MILVUS_COLLECTION_PREFIX")
	if prefix == "" {
		prefix = "julius_caesar_"
	}

	return MilvusConfig{
		Address:          address,
		CollectionPrefix: prefix,
		Dimension:        DefaultEmbeddingDimension,
		IndexType:        "HNSW",
		MetricType:       string(entity.L2),
		M:                16,
		EfConstruction:   256,
		Ef:               64,
	}
}

const (
	indexHNSW = "HNSW"
	indexFlat = "FLAT"
)

// validateIndex rejects metrics whose scores are similarities, since the
// ranker turns distances into confidence assuming lower is closer.
func (c MilvusConfig) validateIndex() error {
	if !strings.EqualFold(c.MetricType, string(entity.L2)) {
		return fmt.Errorf("%w: metric type %q, only L2 is supported", ErrUnsupportedIndex, c.MetricType)
	}
	switch strings.ToUpper(c.IndexType) {
	case indexHNSW, indexFlat:
		return nil
	default:
		return fmt.Errorf("%w: index type %q, expected HNSW or FLAT", ErrUnsupportedIndex, c.IndexType)
	}
}

// index builds the collection index named by IndexType.
func (c MilvusConfig) index() (entity.Index, error) {
	metric := entity.MetricType(strings.ToUpper(c.MetricType))
	if strings.ToUpper(c.IndexType) == indexFlat {
		return entity.NewIndexFlat(metric)
	}
	return entity.NewIndexHNSW(metric, c.M, c.EfConstruction)
}

// searchParam builds the search parameters matching the index.
func (c MilvusConfig) searchParam() (entity.SearchParam, error) {
	if strings.ToUpper(c.IndexType) == indexFlat {
		return entity.NewIndexFlatSearchParam()
	}
	return entity.NewIndexHNSWSearchParam(c.Ef)
}

// MilvusStore implements VectorStore with one Milvus collection per logical
// collection. Collections are created lazily on first insert.
type MilvusStore struct {
	client client.Client
	config MilvusConfig

	mu     sync.Mutex
	loaded map[string]bool
}

// NewMilvusStore connects to Milvus.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if config.MetricType == "" {
		config.MetricType = string(entity.L2)
	}
	if config.IndexType == "" {
		config.IndexType = indexHNSW
	}
	if config.Ef <= 0 {
		config.Ef = 64
	}
	if err := config.validateIndex(); err != nil {
		return nil, err
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &MilvusStore{
		client: c,
		config: config,
		loaded: make(map[string]bool),
	}, nil
}

// CollectionName maps a logical collection to its physical name.
func (m *MilvusStore) CollectionName(collection string) string {
	return m.config.CollectionPrefix + collection
}

// open makes sure the physical collection is loaded. When create is false
// a missing collection is reported as (false, nil).
func (m *MilvusStore) open(ctx context.Context, collection string, create bool) (bool, error) {
	name := m.CollectionName(collection)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded[name] {
		return true, nil
	}

	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !has {
		if !create {
			return false, nil
		}
		if err := m.createCollection(ctx, name); err != nil {
			return false, err
		}
	}

	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return false, fmt.Errorf("failed to load collection: %w", err)
	}
	m.loaded[name] = true
	return true, nil
}

func (m *MilvusStore) createCollection(ctx context.Context, name string) error {
	varchar := func(field string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       field,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}

	schema := &entity.Schema{
		CollectionName: name,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       fieldPK,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			varchar(fieldChunkID, 64),
			varchar(fieldText, maxTextLength),
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.config.Dimension)},
			},
			varchar(fieldAct, 16),
			varchar(fieldScene, 16),
			varchar(fieldSpeaker, 64),
			varchar(fieldType, 32),
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := m.config.index()
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Insert adds chunk records to a collection. Nil metadata fields are stored
// as empty strings and read back as nil.
func (m *MilvusStore) Insert(ctx context.Context, collection string, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if _, err := m.open(ctx, collection, true); err != nil {
		return err
	}

	n := len(records)
	ids := make([]string, n)
	texts := make([]string, n)
	embeddings := make([][]float32, n)
	acts := make([]string, n)
	scenes := make([]string, n)
	speakers := make([]string, n)
	types := make([]string, n)

	for i, r := range records {
		if len(r.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(r.Embedding))
		}
		ids[i] = r.ID
		texts[i] = truncate(r.Text, maxTextLength)
		embeddings[i] = r.Embedding
		acts[i] = chunk.Value(r.Metadata.Act)
		scenes[i] = chunk.Value(r.Metadata.Scene)
		speakers[i] = truncate(chunk.Value(r.Metadata.Speaker), 64)
		types[i] = string(r.Metadata.Type)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnFloatVector(fieldEmbedding, m.config.Dimension, embeddings),
		entity.NewColumnVarChar(fieldAct, acts),
		entity.NewColumnVarChar(fieldScene, scenes),
		entity.NewColumnVarChar(fieldSpeaker, speakers),
		entity.NewColumnVarChar(fieldType, types),
	}

	if _, err := m.client.Insert(ctx, m.CollectionName(collection), "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

// Flush persists pending inserts of a collection.
func (m *MilvusStore) Flush(ctx context.Context, collection string) error {
	if err := m.client.Flush(ctx, m.CollectionName(collection), false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

// Search performs a top-K nearest-neighbour search in one collection.
func (m *MilvusStore) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]Hit, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}
	exists, err := m.open(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Hit{}, nil
	}

	sp, err := m.config.searchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.CollectionName(collection),
		nil, // partition names
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(queryVector)},
		fieldEmbedding,
		entity.MetricType(strings.ToUpper(m.config.MetricType)),
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	res := results[0]
	hits := make([]Hit, res.ResultCount)
	for i := range hits {
		hits[i].Distance = res.Scores[i]
	}
	for _, field := range res.Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		data := col.Data()
		for i := range hits {
			switch field.Name() {
			case fieldChunkID:
				hits[i].ID = data[i]
			case fieldText:
				hits[i].Text = data[i]
			case fieldAct:
				hits[i].Metadata.Act = optional(data[i])
			case fieldScene:
				hits[i].Metadata.Scene = optional(data[i])
			case fieldSpeaker:
				hits[i].Metadata.Speaker = optional(data[i])
			case fieldType:
				hits[i].Metadata.Type = chunk.Type(data[i])
			}
		}
	}
	return hits, nil
}

// Query checks which chunk IDs exist in a collection
func (m *MilvusStore) Query(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	existence := make(map[string]bool, len(ids))
	for _, id := range ids {
		existence[id] = false
	}
	if len(ids) == 0 {
		return existence, nil
	}
	exists, err := m.open(ctx, collection, false)
	if err != nil || !exists {
		return existence, err
	}

	results, err := m.client.Query(ctx, m.CollectionName(collection), nil, idFilter(ids), []string{fieldChunkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	for _, column := range results {
		if column.Name() != fieldChunkID {
			continue
		}
		if varcharCol, ok := column.(*entity.ColumnVarChar); ok {
			for _, id := range varcharCol.Data() {
				existence[id] = true
			}
		}
	}
	return existence, nil
}

// Delete removes records by chunk ID
func (m *MilvusStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	exists, err := m.open(ctx, collection, false)
	if err != nil || !exists {
		return err
	}
	if err := m.client.Delete(ctx, m.CollectionName(collection), "", idFilter(ids)); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// GetStats returns collection statistics
func (m *MilvusStore) GetStats(ctx context.Context, collection string) (map[string]interface{}, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.CollectionName(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return map[string]interface{}{
		"row_count": stats["row_count"],
	}, nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// idFilter builds `chunk_id in ["a", "b"]`.
func idFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s in [%s]", fieldChunkID, strings.Join(quoted, ", "))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
