package narrative

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAILLM answers through OpenAI chat completions. Answer prompts have
// their grounding rules sent as a system message; everything else is a
// single user turn.
type OpenAILLM struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAILLM creates an OpenAI-backed LLM. The key comes from config or
// OPENAI_API_KEY; OPENAI_BASE_URL points it at a compatible endpoint.
func NewOpenAILLM(config LLMConfig) (*OpenAILLM, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set OPENAI_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAILLM{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

// chatParams builds the completion request for one prompt.
func (o *OpenAILLM) chatParams(prompt string) openai.ChatCompletionNewParams {
	system, user := SplitSystemPrompt(prompt)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.config.Model),
		Messages:    messages,
		Temperature: openai.Float(float64(o.config.Temperature)),
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}
	return params
}

// Generate returns the first choice of a chat completion.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	completion, err := o.client.Chat.Completions.New(ctx, o.chatParams(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "length" {
		log.Printf("[OpenAI] Warning: %s reply cut at max_tokens=%d", o.config.Model, o.config.MaxTokens)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty reply (finish reason %q)", ErrLLMFailed, choice.FinishReason)
	}
	return text, nil
}
