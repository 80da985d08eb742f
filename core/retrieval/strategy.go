package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/raglite/model"
)

// Strategy is one selectable retrieval pipeline.
// Every strategy returns at most config.TopK results ordered by relevance.
type Strategy interface {
	Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error)
	Method() model.RetrievalMethod
}

// NewStrategy builds the strategy for a retrieval method.
// The method set is closed; an unknown method is a caller error.
func NewStrategy(method model.RetrievalMethod, engine *Engine, expander *Expander, reranker *Reranker) (Strategy, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is nil")
	}

	switch method {
	case model.RetrievalMethodBasic:
		return &BasicStrategy{engine: engine}, nil
	case model.RetrievalMethodHyde:
		if expander == nil {
			return nil, fmt.Errorf("expander is nil")
		}
		return &HydeStrategy{engine: engine, expander: expander}, nil
	case model.RetrievalMethodRerank:
		if reranker == nil {
			return nil, fmt.Errorf("reranker is nil")
		}
		return &RerankStrategy{engine: engine, reranker: reranker}, nil
	case model.RetrievalMethodEnhanced:
		if expander == nil {
			return nil, fmt.Errorf("expander is nil")
		}
		if reranker == nil {
			return nil, fmt.Errorf("reranker is nil")
		}
		return &EnhancedStrategy{engine: engine, expander: expander, reranker: reranker}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidMode, method)
	}
}

// NewStrategies builds one strategy per retrieval method
func NewStrategies(engine *Engine, expander *Expander, reranker *Reranker) (map[model.RetrievalMethod]Strategy, error) {
	strategies := make(map[model.RetrievalMethod]Strategy, len(model.AllRetrievalMethods()))
	for _, method := range model.AllRetrievalMethods() {
		strategy, err := NewStrategy(method, engine, expander, reranker)
		if err != nil {
			return nil, err
		}
		strategies[method] = strategy
	}
	return strategies, nil
}

// BasicStrategy performs plain vector similarity search
type BasicStrategy struct {
	engine *Engine
}

// Method returns the retrieval method of this strategy
func (s *BasicStrategy) Method() model.RetrievalMethod {
	return model.RetrievalMethodBasic
}

// Retrieve returns the TopK most similar chunks in similarity order
func (s *BasicStrategy) Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error) {
	chunks, err := s.engine.Search(ctx, question, config.TopK, config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	return similarityResults(chunks, model.RetrievalMethodBasic), nil
}

// HydeStrategy expands the question with a hypothetical answer before searching
type HydeStrategy struct {
	engine   *Engine
	expander *Expander
}

// Method returns the retrieval method of this strategy
func (s *HydeStrategy) Method() model.RetrievalMethod {
	return model.RetrievalMethodHyde
}

// Retrieve returns at most TopK deduplicated chunks from the merged
// hypothetical answer and question searches
func (s *HydeStrategy) Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error) {
	chunks, err := s.expander.Retrieve(ctx, s.engine, question, config.TopK, config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	return similarityResults(chunks, model.RetrievalMethodHyde), nil
}

// RerankStrategy fetches extra candidates and reorders them lexically
type RerankStrategy struct {
	engine   *Engine
	reranker *Reranker
}

// Method returns the retrieval method of this strategy
func (s *RerankStrategy) Method() model.RetrievalMethod {
	return model.RetrievalMethodRerank
}

// Retrieve fetches CandidateK chunks and returns the TopK best after reranking
func (s *RerankStrategy) Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error) {
	candidates, err := s.engine.Search(ctx, question, config.CandidateK(), config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	results := s.reranker.Rerank(question, candidates, config.TopK)
	setMethod(results, model.RetrievalMethodRerank)
	return results, nil
}

// EnhancedStrategy combines hypothetical answer expansion with reranking
type EnhancedStrategy struct {
	engine   *Engine
	expander *Expander
	reranker *Reranker
}

// Method returns the retrieval method of this strategy
func (s *EnhancedStrategy) Method() model.RetrievalMethod {
	return model.RetrievalMethodEnhanced
}

// Retrieve fetches CandidateK chunks through the expander and returns the
// TopK best after reranking
func (s *EnhancedStrategy) Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error) {
	candidates, err := s.expander.Retrieve(ctx, s.engine, question, config.CandidateK(), config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	results := s.reranker.Rerank(question, candidates, config.TopK)
	setMethod(results, model.RetrievalMethodEnhanced)
	return results, nil
}

// similarityResults wraps chunks as unscored results carrying their
// similarity as score
func similarityResults(chunks []*model.Chunk, method model.RetrievalMethod) []*model.RetrievalResult {
	results := make([]*model.RetrievalResult, len(chunks))
	for i, chunk := range chunks {
		score := 0.0
		if chunk.Similarity != nil {
			score = *chunk.Similarity
		}
		results[i] = &model.RetrievalResult{
			Chunk:           chunk,
			Score:           score,
			Scored:          false,
			RetrievalMethod: method,
		}
	}
	return results
}

func setMethod(results []*model.RetrievalResult, method model.RetrievalMethod) {
	for _, result := range results {
		result.RetrievalMethod = method
	}
}
