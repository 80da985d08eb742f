package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/model"
)

const (
	hydeTemperature = 0.3
	hydeMaxTokens   = 300
)

const hydePrompt = `Write a detailed hypothetical answer to the following question. The answer will be used for document retrieval, so include keywords and concepts that are likely to appear in relevant documents.

Question: %s

Hypothetical answer:`

// Expander improves retrieval recall by searching with a generated
// hypothetical answer in addition to the original question.
// The hypothetical answer is only used for embedding, never shown to users.
type Expander struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewExpander creates a new hypothetical document expander
func NewExpander(provider llm.Provider, logger *slog.Logger) (*Expander, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Expander{
		provider: provider,
		logger:   logger,
	}, nil
}

// Expand generates a hypothetical answer for the question.
// If generation fails, the question itself is returned so retrieval degrades
// to a plain similarity search instead of failing.
func (h *Expander) Expand(ctx context.Context, question string) string {
	resp, err := h.provider.Generate(ctx, llm.GenerationRequest{
		Prompt:      fmt.Sprintf(hydePrompt, question),
		Temperature: hydeTemperature,
		MaxTokens:   hydeMaxTokens,
	})
	if err != nil {
		h.logger.Warn("Hypothetical answer generation failed, falling back to the question", "error", err)
		return question
	}
	if resp.Content == "" {
		return question
	}
	return resp.Content
}

// Retrieve searches with both the hypothetical answer and the original
// question and merges the results. The hypothetical answer search fetches
// twice as many candidates since it drives recall. Duplicates are removed by
// content, hypothetical answer results keep their position in front.
// At most k chunks are returned.
func (h *Expander) Retrieve(ctx context.Context, engine *Engine, question string, k int, threshold float64) ([]*model.Chunk, error) {
	hypothetical := h.Expand(ctx, question)

	hydeChunks, err := engine.Search(ctx, hypothetical, k*2, threshold)
	if err != nil {
		return nil, err
	}

	questionChunks, err := engine.Search(ctx, question, k, threshold)
	if err != nil {
		return nil, err
	}

	merged := make([]*model.Chunk, 0, k)
	seen := make(map[[32]byte]bool)

	for _, chunk := range append(hydeChunks, questionChunks...) {
		contentHash := sha256.Sum256([]byte(chunk.Content))
		if seen[contentHash] {
			continue
		}
		seen[contentHash] = true

		merged = append(merged, chunk)
		if len(merged) >= k {
			break
		}
	}

	return merged, nil
}
