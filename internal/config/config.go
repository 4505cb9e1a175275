// Package config loads the YAML application configuration. Secrets never live
// in the file; API keys come from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// StreamsConfig locates the persisted JSONL chunk streams.
type StreamsConfig struct {
	Dir         string `yaml:"dir"`
	Speaker     string `yaml:"speaker"`
	Context     string `yaml:"context"`
	Scene       string `yaml:"scene"`
	Explanation string `yaml:"explanation"`
}

// Path returns the file path of a named stream.
func (s StreamsConfig) Path(stream string) string {
	var name string
	switch stream {
	case "speaker":
		name = s.Speaker
	case "context":
		name = s.Context
	case "scene":
		name = s.Scene
	case "explanation":
		name = s.Explanation
	}
	if name == "" {
		name = stream + ".jsonl"
	}
	return filepath.Join(s.Dir, name)
}

// WindowConfig sizes the sliding context windows.
type WindowConfig struct {
	Size int `yaml:"size"`
	Step int `yaml:"step"`
}

// CollectionConfig is one weighted retrieval source. List order breaks ties.
type CollectionConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// RetrievalConfig controls query-time ranking.
type RetrievalConfig struct {
	TopK        int                `yaml:"top_k"`
	Collections []CollectionConfig `yaml:"collections"`
	// MaxContext caps how many ranked results reach the prompt; 0 keeps all.
	MaxContext int `yaml:"max_context"`
}

// EmbedderConfig configures the OpenAI embedder.
type EmbedderConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// MilvusConfig contains connection and index details for Milvus.
type MilvusConfig struct {
	Address          string `yaml:"address"`
	CollectionPrefix string `yaml:"collection_prefix"`
	IndexType        string `yaml:"index_type"`
	MetricType       string `yaml:"metric_type"`
	M                int    `yaml:"m"`
	EfConstruction   int    `yaml:"ef_construction"`
	Ef               int    `yaml:"ef"`
}

// VectorStoreConfig selects the vector store: "milvus" or "memory".
type VectorStoreConfig struct {
	Type   string       `yaml:"type"`
	Milvus MilvusConfig `yaml:"milvus"`
}

// LLMConfig selects the answer model: "openai", "gemini" or "excerpt".
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ExplainConfig bounds parallel scene-explanation requests.
type ExplainConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ServerConfig configures the HTTP query server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Title            string            `yaml:"title"`
	FrontMatterPages int               `yaml:"front_matter_pages"`
	Streams          StreamsConfig     `yaml:"streams"`
	Window           WindowConfig      `yaml:"window"`
	Retrieval        RetrievalConfig   `yaml:"retrieval"`
	Embedder         EmbedderConfig    `yaml:"embedder"`
	VectorStore      VectorStoreConfig `yaml:"vector_store"`
	LLM              LLMConfig         `yaml:"llm"`
	Explain          ExplainConfig     `yaml:"explain"`
	Server           ServerConfig      `yaml:"server"`
}

// Load reads a config from path. Fields the file leaves out keep their
// defaults; a missing file yields the defaults. MILVUS_ADDRESS overrides the
// configured Milvus address.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	applyConfigDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./scholar.yaml first, then ~/.config/scholar/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "scholar.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "scholar", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Title:            "Julius Caesar",
		FrontMatterPages: 8,
		Streams: StreamsConfig{
			Dir:         "data",
			Speaker:     "speaker.jsonl",
			Context:     "context.jsonl",
			Scene:       "scene.jsonl",
			Explanation: "explanation.jsonl",
		},
		Window: WindowConfig{Size: 5, Step: 3},
		Retrieval: RetrievalConfig{
			TopK: 2,
			Collections: []CollectionConfig{
				{Name: "scene", Weight: 1.40},
				{Name: "explanation", Weight: 1.30},
				{Name: "context", Weight: 1.10},
				{Name: "speaker", Weight: 1.00},
			},
		},
		Embedder: EmbedderConfig{Model: "text-embedding-3-small", Dimension: 1536, BatchSize: 32},
		VectorStore: VectorStoreConfig{
			Type: "milvus",
			Milvus: MilvusConfig{
				Address:          "localhost:19530",
				CollectionPrefix: "julius_caesar_",
				IndexType:        "HNSW",
				MetricType:       "L2",
				M:                16,
				EfConstruction:   256,
				Ef:               64,
			},
		},
		LLM:     LLMConfig{Provider: "openai", Model: "gpt-4o", MaxTokens: 1024},
		Explain: ExplainConfig{Concurrency: 4},
		Server:  ServerConfig{Addr: ":8000"},
	}
}

// applyConfigDefaults fills blank strings and zero sizes a partial file may
// have cleared.
func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = def.Title
	}
	if cfg.Streams.Dir == "" {
		cfg.Streams.Dir = def.Streams.Dir
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Milvus.Address == "" {
		cfg.VectorStore.Milvus.Address = def.VectorStore.Milvus.Address
	}
	if cfg.VectorStore.Milvus.MetricType == "" {
		cfg.VectorStore.Milvus.MetricType = def.VectorStore.Milvus.MetricType
	}
	if cfg.VectorStore.Milvus.IndexType == "" {
		cfg.VectorStore.Milvus.IndexType = def.VectorStore.Milvus.IndexType
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.Explain.Concurrency == 0 {
		cfg.Explain.Concurrency = def.Explain.Concurrency
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

func applyEnv(cfg *AppConfig) {
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		cfg.VectorStore.Milvus.Address = addr
	}
}

// Validate rejects configurations no pipeline stage can run with.
func (c *AppConfig) Validate() error {
	if c.FrontMatterPages < 0 {
		return fmt.Errorf("%w: front_matter_pages cannot be negative", ErrInvalidConfig)
	}
	if c.Window.Size <= 0 || c.Window.Step <= 0 {
		return fmt.Errorf("%w: window size and step must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalidConfig)
	}
	if len(c.Retrieval.Collections) == 0 {
		return fmt.Errorf("%w: retrieval.collections cannot be empty", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, col := range c.Retrieval.Collections {
		if col.Name == "" {
			return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidConfig)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidConfig, col.Name)
		}
		if col.Weight < 0 {
			return fmt.Errorf("%w: collection %q has negative weight", ErrInvalidConfig, col.Name)
		}
		seen[col.Name] = true
	}
	switch c.VectorStore.Type {
	case "milvus", "memory":
	default:
		return fmt.Errorf("%w: unknown vector_store.type %q", ErrInvalidConfig, c.VectorStore.Type)
	}
	if c.VectorStore.Type == "milvus" {
		m := c.VectorStore.Milvus
		// Ranking converts distances to confidence, so scores must be lower-is-closer.
		if !strings.EqualFold(m.MetricType, "L2") {
			return fmt.Errorf("%w: vector_store.milvus.metric_type %q, only L2 is supported", ErrInvalidConfig, m.MetricType)
		}
		switch strings.ToUpper(m.IndexType) {
		case "HNSW", "FLAT":
		default:
			return fmt.Errorf("%w: vector_store.milvus.index_type %q, expected HNSW or FLAT", ErrInvalidConfig, m.IndexType)
		}
	}
	return nil
}
