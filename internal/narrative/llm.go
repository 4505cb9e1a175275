// Package narrative turns retrieved play excerpts into prose. It defines a
// provider-agnostic LLM interface with OpenAI, Gemini and excerpt-only
// backings plus a deterministic mock for tests. The Generator consumes an
// already-built context block; it never performs retrieval itself.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// Provider names accepted by NewLLM.
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderExcerpt = "excerpt"
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Provider selects the backing: openai, gemini or excerpt.
	Provider string

	// Model specifies the model identifier (e.g., "gpt-4o", "gemini-2.0-flash")
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string
}

// DefaultLLMConfig returns defaults for answering literature questions.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o",
		Temperature: 0,
		MaxTokens:   1024,
	}
}

// NewLLM builds the LLM named by config.Provider.
func NewLLM(ctx context.Context, config LLMConfig) (LLM, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAILLM(config)
	case ProviderGemini:
		return NewGeminiLLM(ctx, config)
	case ProviderExcerpt:
		return NewExcerptLLM(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}
