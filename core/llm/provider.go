package llm

import (
	"context"
	"fmt"
)

// GenerationRequest is one text generation call to a provider
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
}

// GenerationResponse carries the generated text and token accounting
type GenerationResponse struct {
	Content    string
	TokensUsed int
}

// ModelInfo describes the model behind a provider
type ModelInfo struct {
	Name     string
	Provider string
}

// Provider generates text from a prompt.
// Implementations must be safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, request GenerationRequest) (*GenerationResponse, error)
	ModelInfo() ModelInfo
}

// GenerationError wraps a provider failure with the model it came from.
// Callers at the answer boundary convert it into a degraded answer instead of
// propagating it.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with model %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err as a GenerationError
func NewGenerationError(model string, err error) error {
	return &GenerationError{Model: model, Err: err}
}
