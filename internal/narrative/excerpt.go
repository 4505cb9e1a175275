package narrative

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedPrompt is returned by ExcerptLLM for anything but an answer
// prompt. Quoting context cannot explain a scene.
var ErrUnsupportedPrompt = errors.New("excerpt provider only answers questions")

// NoExcerpt is returned by ExcerptLLM when the prompt carries no context.
const NoExcerpt = "No passage in the retrieved context addresses this question."

// ExcerptLLM answers without a model by quoting the highest-ranked context
// entry verbatim. It is used for offline runs.
type ExcerptLLM struct{}

// NewExcerptLLM creates an excerpt-only LLM.
func NewExcerptLLM() *ExcerptLLM {
	return &ExcerptLLM{}
}

// Generate returns the first context entry of an answer prompt.
func (ExcerptLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !isAnswerPrompt(prompt) {
		return "", ErrUnsupportedPrompt
	}
	entries := contextEntries(prompt)
	if len(entries) == 0 {
		return NoExcerpt, nil
	}
	return entries[0], nil
}

func isAnswerPrompt(prompt string) bool {
	return strings.Contains(prompt, contextHeader) && strings.Contains(prompt, "\n\n"+questionHeader)
}
