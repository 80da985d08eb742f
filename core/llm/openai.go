package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatAPI is the part of the OpenAI client used for text generation
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider generates text through an OpenAI compatible chat API.
// Any endpoint speaking the protocol works, the base URL is configurable.
type OpenAIProvider struct {
	api       ChatAPI
	modelName string
	timeout   time.Duration
}

// NewOpenAIClient creates an OpenAI client for the given key and optional
// base URL. An empty base URL uses the official endpoint.
func NewOpenAIClient(apiKey string, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewOpenAIProvider creates a provider for the given chat model.
// Every generation call is bounded by timeout so an unresponsive endpoint
// cannot block a question forever. A non-positive timeout falls back to
// 30 seconds.
func NewOpenAIProvider(api ChatAPI, modelName string, timeout time.Duration) (*OpenAIProvider, error) {
	if api == nil {
		return nil, fmt.Errorf("chat api is nil")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIProvider{
		api:       api,
		modelName: modelName,
		timeout:   timeout,
	}, nil
}

// Generate runs one chat completion and returns the first choice
func (p *OpenAIProvider) Generate(ctx context.Context, request GenerationRequest) (*GenerationResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: request.Prompt,
	})

	resp, err := p.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.modelName,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	})
	if err != nil {
		return nil, NewGenerationError(p.modelName, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewGenerationError(p.modelName, fmt.Errorf("no choices returned"))
	}

	return &GenerationResponse{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// ModelInfo returns the model behind this provider
func (p *OpenAIProvider) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:     p.modelName,
		Provider: "openai",
	}
}
