package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to the OpenAI chat completions API or any compatible
// endpoint (Groq serves the same wire format under /openai/v1).
type OpenAIProvider struct {
	Model       string
	Temperature float64
	name        string
	apiKey      string
	client      *openai.Client
}

// NewOpenAIProvider creates a provider named name ("openai" or "groq").
// An empty baseURL keeps the go-openai default endpoint.
func NewOpenAIProvider(name, model, apiKey, baseURL string, temperature float64, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		Model:       model,
		Temperature: temperature,
		name:        name,
		apiKey:      apiKey,
		client:      openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) Name() string { return o.name }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Generate sends a chat completion and returns the first choice.
func (o *OpenAIProvider) Generate(ctx context.Context, r Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%s: %w", o.name, ErrNotConfigured)
	}

	var messages []openai.ChatCompletionMessage
	if r.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: r.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: r.Prompt})

	// go-openai drops a zero temperature (omitempty), which the API reads as 1.
	temperature := float32(o.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    messages,
		MaxTokens:   r.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", o.name)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s returned an empty message", o.name)
	}
	return content, nil
}
