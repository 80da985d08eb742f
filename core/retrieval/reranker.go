package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/model"
)

const (
	semanticScoreTemperature = 0.1
	semanticScoreMaxTokens   = 10
	semanticScoreNeutral     = 0.5
	semanticDocumentMaxChars = 500
)

const semanticScorePrompt = `Rate the relevance of the following document content to the user question on a scale of 0-10:

User question: %s

Document content: %s

Scoring guide:
- 10: fully relevant, directly answers the question
- 8-9: highly relevant, contains important information
- 6-7: moderately relevant, some reference value
- 4-5: slightly relevant, contains little related information
- 0-3: irrelevant

Return only the numeric score (0-10):`

var (
	wordPattern   = regexp.MustCompile(`\w+`)
	numberPattern = regexp.MustCompile(`\d+`)
)

// Reranker reorders retrieved chunks by query relevance.
// The lexical mode scores with word overlap and a length factor. The semantic
// mode additionally asks an LLM for a relevance rating and blends both.
type Reranker struct {
	provider llm.Provider // optional, required only for semantic scoring
	logger   *slog.Logger

	// Lexical mode weights
	LexicalWeight float64
	LengthWeight  float64

	// Semantic mode blend weights
	SemanticLexicalWeight float64
	SemanticWeight        float64
}

// NewReranker creates a reranker with the default weights.
// provider may be nil when only lexical reranking is used.
func NewReranker(provider llm.Provider, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reranker{
		provider:              provider,
		logger:                logger,
		LexicalWeight:         0.8,
		LengthWeight:          0.2,
		SemanticLexicalWeight: 0.3,
		SemanticWeight:        0.7,
	}
}

// Rerank scores all chunks lexically and returns the topK best.
// The ordering is deterministic: ties keep their input order.
func (r *Reranker) Rerank(query string, chunks []*model.Chunk, topK int) []*model.RetrievalResult {
	results := make([]*model.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		lexical := lexicalSimilarity(query, chunk.Content)
		length := lengthFactor(chunk.Content)
		score := lexical*r.LexicalWeight + length*r.LengthWeight

		results = append(results, &model.RetrievalResult{
			Chunk:  chunk,
			Score:  score,
			Scored: true,
		})
	}

	return truncateSorted(results, topK)
}

// RerankSemantic blends lexical similarity with an LLM relevance rating.
// A failed or unparseable rating falls back to a neutral score so one bad
// call cannot zero out a candidate.
func (r *Reranker) RerankSemantic(ctx context.Context, query string, chunks []*model.Chunk, topK int) []*model.RetrievalResult {
	results := make([]*model.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		lexical := lexicalSimilarity(query, chunk.Content)
		semantic := r.semanticScore(ctx, query, chunk.Content)
		score := lexical*r.SemanticLexicalWeight + semantic*r.SemanticWeight

		results = append(results, &model.RetrievalResult{
			Chunk:  chunk,
			Score:  score,
			Scored: true,
		})
	}

	return truncateSorted(results, topK)
}

// semanticScore asks the provider to rate relevance 0-10 and maps it to 0-1
func (r *Reranker) semanticScore(ctx context.Context, query string, document string) float64 {
	if r.provider == nil {
		return semanticScoreNeutral
	}

	if len(document) > semanticDocumentMaxChars {
		document = document[:semanticDocumentMaxChars] + "..."
	}

	resp, err := r.provider.Generate(ctx, llm.GenerationRequest{
		Prompt:      fmt.Sprintf(semanticScorePrompt, query, document),
		Temperature: semanticScoreTemperature,
		MaxTokens:   semanticScoreMaxTokens,
	})
	if err != nil {
		r.logger.Warn("Semantic scoring failed, using neutral score", "error", err)
		return semanticScoreNeutral
	}

	return parseSemanticScore(resp.Content)
}

// parseSemanticScore extracts the first number from the rating response.
// Responses without a number map to the neutral score.
func parseSemanticScore(response string) float64 {
	match := numberPattern.FindString(response)
	if match == "" {
		return semanticScoreNeutral
	}

	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return semanticScoreNeutral
	}

	score := rating / 10.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// truncateSorted sorts results by score descending (stable) and keeps topK
func truncateSorted(results []*model.RetrievalResult, topK int) []*model.RetrievalResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// lexicalSimilarity is the word overlap (intersection over union) of the
// lowercased word sets of query and document
func lexicalSimilarity(query string, document string) float64 {
	queryWords := wordSet(query)
	docWords := wordSet(document)

	if len(queryWords) == 0 || len(docWords) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range queryWords {
		if docWords[word] {
			intersection++
		}
	}
	union := len(queryWords) + len(docWords) - intersection

	return float64(intersection) / float64(union)
}

// lengthFactor dampens very short documents, saturating at 100 characters
func lengthFactor(document string) float64 {
	factor := float64(len(document)) / 100.0
	if factor > 1.0 {
		return 1.0
	}
	return factor
}

func wordSet(text string) map[string]bool {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}
