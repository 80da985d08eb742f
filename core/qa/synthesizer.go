package qa

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/model"
)

const citationContentRunes = 200

const answerSystemPrompt = `You are a helpful assistant answering questions about a document collection.

Follow these rules:
1. Answer only from the provided document fragments, never invent information.
2. If the fragments do not contain enough information, say so clearly.
3. Keep the answer concise and focused.
4. Quote the fragments where it helps.
5. Answer in %s.`

const answerUserPrompt = `Relevant document fragments:

%s

Question: %s

Provide an accurate, helpful answer:`

// Synthesizer turns retrieved chunks into a grounded answer.
// It owns the failure boundary: a failed generation still produces a
// well-formed answer with an apology text and confidence 0.0 instead of an
// error reaching the caller.
type Synthesizer struct {
	provider llm.Provider
	logger   *slog.Logger

	Language    string
	Temperature float32
	MaxTokens   int
}

// NewSynthesizer creates a synthesizer generating answers with the given provider
func NewSynthesizer(provider llm.Provider, config *model.Config, logger *slog.Logger) (*Synthesizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is nil")
	}
	if config == nil {
		config = model.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Synthesizer{
		provider:    provider,
		logger:      logger,
		Language:    config.Language,
		Temperature: config.AnswerTemperature,
		MaxTokens:   config.MaxAnswerTokens,
	}, nil
}

// ModelName returns the name of the generation model
func (s *Synthesizer) ModelName() string {
	return s.provider.ModelInfo().Name
}

// Synthesize generates an answer for the question grounded in the retrieved
// results. On generation failure it returns the complete failure result
// together with the underlying error, so the caller can log it; the result is
// always usable.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []*model.RetrievalResult, method model.RetrievalMethod, start time.Time) (*model.AnswerResult, error) {
	contextBlocks := make([]string, len(results))
	for i, result := range results {
		contextBlocks[i] = fmt.Sprintf("Document fragment %d:\n%s", i+1, result.Chunk.Content)
	}

	response, err := s.provider.Generate(ctx, llm.GenerationRequest{
		SystemPrompt: fmt.Sprintf(answerSystemPrompt, s.Language),
		Prompt:       fmt.Sprintf(answerUserPrompt, strings.Join(contextBlocks, "\n\n"), question),
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
	})
	if err != nil {
		return s.failureResult(question, method, err, start), err
	}

	citations := buildCitations(results)

	return &model.AnswerResult{
		Question:        question,
		Answer:          response.Content,
		Citations:       citations,
		ResponseTime:    time.Since(start).Seconds(),
		SourceCount:     len(citations),
		TokensUsed:      &response.TokensUsed,
		RetrievalMethod: method,
	}, nil
}

// failureResult is the one place producing a confidence of exactly 0.0
func (s *Synthesizer) failureResult(question string, method model.RetrievalMethod, err error, start time.Time) *model.AnswerResult {
	return &model.AnswerResult{
		Question:        question,
		Answer:          fmt.Sprintf("Sorry, something went wrong while answering the question: %v", err),
		Citations:       []model.Citation{},
		Confidence:      0.0,
		ResponseTime:    time.Since(start).Seconds(),
		SourceCount:     0,
		RetrievalMethod: method,
	}
}

// buildCitations projects retrieval results into user-facing citations
func buildCitations(results []*model.RetrievalResult) []model.Citation {
	citations := make([]model.Citation, len(results))
	for i, result := range results {
		chunkIndex := i
		if result.Chunk.ChunkIndex != nil {
			chunkIndex = *result.Chunk.ChunkIndex
		}

		citation := model.Citation{
			Content:         truncateRunes(result.Chunk.Content, citationContentRunes),
			Source:          result.Chunk.SourceFile(),
			ChunkIndex:      chunkIndex,
			RetrievalMethod: result.RetrievalMethod,
		}
		if result.Scored {
			score := math.Round(result.Score*1000) / 1000
			citation.RerankScore = &score
		}
		citations[i] = citation
	}
	return citations
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
