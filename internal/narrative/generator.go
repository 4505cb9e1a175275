package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Answer is a generated response to a question about the play.
type Answer struct {
	// Question is the user's question as asked
	Question string `json:"question"`

	// Text is the generated answer
	Text string `json:"text"`

	// GeneratedAt is when this answer was created
	GeneratedAt time.Time `json:"generated_at"`

	// Model is the LLM model used to generate this answer
	Model string `json:"model"`
}

// Generator produces answers and scene explanations using an LLM.
type Generator struct {
	llm    LLM
	config LLMConfig
	title  string
}

// NewGenerator creates a generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig) *Generator {
	return &Generator{
		llm:    llm,
		config: config,
		title:  "Julius Caesar",
	}
}

// WithTitle sets the work title used in explanation prompts.
func (g *Generator) WithTitle(title string) *Generator {
	if strings.TrimSpace(title) != "" {
		g.title = title
	}
	return g
}

// Answer builds the grounded prompt around contextBlock and invokes the LLM.
// The context block is passed through unmodified.
func (g *Generator) Answer(ctx context.Context, question, contextBlock string) (*Answer, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}

	prompt, err := AssembleAnswerPrompt(question, contextBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: LLM invocation failed: %w", ErrGenerationFailed, err)
	}

	return &Answer{
		Question:    strings.TrimSpace(question),
		Text:        text,
		GeneratedAt: time.Now(),
		Model:       g.config.Model,
	}, nil
}

// Explain asks the LLM for an analytical explanation of one scene.
func (g *Generator) Explain(ctx context.Context, act, scene, sceneText string) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}

	prompt, err := AssembleExplanationPrompt(g.title, act, scene, sceneText)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: LLM invocation failed for Act %s, Scene %s: %w", ErrGenerationFailed, act, scene, err)
	}
	return strings.TrimSpace(text), nil
}
