package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/siherrmann/raglite/core/retrieval"
	"github.com/siherrmann/raglite/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T, provider *fakeProvider, strategies map[model.RetrievalMethod]retrieval.Strategy) *Chain {
	t.Helper()

	synthesizer, err := NewSynthesizer(provider, nil, nil)
	require.NoError(t, err)

	chain, err := NewChain(strategies, synthesizer, retrieval.NewEstimator(5), model.DefaultQueryConfig(), nil)
	require.NoError(t, err)

	return chain
}

func basicStrategies(results []*model.RetrievalResult, err error) map[model.RetrievalMethod]retrieval.Strategy {
	return map[model.RetrievalMethod]retrieval.Strategy{
		model.RetrievalMethodBasic: &fakeStrategy{method: model.RetrievalMethodBasic, results: results, err: err},
	}
}

func TestNewChain(t *testing.T) {
	synthesizer, err := NewSynthesizer(&fakeProvider{}, nil, nil)
	require.NoError(t, err)
	strategies := basicStrategies(nil, nil)

	t.Run("Valid call NewChain", func(t *testing.T) {
		chain, err := NewChain(strategies, synthesizer, retrieval.NewEstimator(5), model.DefaultQueryConfig(), nil)
		assert.NoError(t, err)
		assert.NotNil(t, chain)
	})

	t.Run("Invalid call without strategies", func(t *testing.T) {
		_, err := NewChain(nil, synthesizer, retrieval.NewEstimator(5), model.DefaultQueryConfig(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no strategies given")
	})

	t.Run("Invalid call with nil synthesizer", func(t *testing.T) {
		_, err := NewChain(strategies, nil, retrieval.NewEstimator(5), model.DefaultQueryConfig(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "synthesizer is nil")
	})

	t.Run("Invalid call with nil estimator", func(t *testing.T) {
		_, err := NewChain(strategies, synthesizer, nil, model.DefaultQueryConfig(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "estimator is nil")
	})
}

func TestChainAsk(t *testing.T) {
	results := []*model.RetrievalResult{
		testResult(1, "Dogs are loyal companions and good friends.", model.RetrievalMethodBasic, 0.9, false),
		testResult(2, "Dogs bark to communicate with each other.", model.RetrievalMethodBasic, 0.8, false),
	}

	t.Run("Valid ask returns a grounded answer with confidence", func(t *testing.T) {
		provider := &fakeProvider{response: "Dogs are loyal companions that bark to communicate."}
		chain := newTestChain(t, provider, basicStrategies(results, nil))

		result, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "Dogs are loyal companions that bark to communicate.", result.Answer)
		assert.Equal(t, model.RetrievalMethodBasic, result.RetrievalMethod)
		assert.Len(t, result.Citations, 2)
		assert.Equal(t, 2, result.SourceCount)
		assert.GreaterOrEqual(t, result.Confidence, 0.1)
		assert.LessOrEqual(t, result.Confidence, 0.95)
	})

	t.Run("Empty question is a caller error", func(t *testing.T) {
		provider := &fakeProvider{response: "answer"}
		chain := newTestChain(t, provider, basicStrategies(results, nil))

		_, err := chain.Ask(context.Background(), "   ", model.RetrievalMethodBasic)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "question is empty")
	})

	t.Run("Unknown method is a caller error", func(t *testing.T) {
		provider := &fakeProvider{response: "answer"}
		chain := newTestChain(t, provider, basicStrategies(results, nil))

		_, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethod("oracle"))

		assert.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidMode)
	})

	t.Run("Retrieval failure produces the apology result without an error", func(t *testing.T) {
		provider := &fakeProvider{response: "answer"}
		chain := newTestChain(t, provider, basicStrategies(nil, errors.New("store down")))

		result, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err, "Expected pipeline failures to stay inside the result")
		require.NotNil(t, result)
		assert.Contains(t, result.Answer, "Sorry, something went wrong")
		assert.Equal(t, 0.0, result.Confidence)
		assert.Empty(t, result.Citations)
		assert.Empty(t, provider.requests, "Expected no generation call after a retrieval failure")
	})

	t.Run("Generation failure produces the apology result without an error", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("model overloaded")}
		chain := newTestChain(t, provider, basicStrategies(results, nil))

		result, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Contains(t, result.Answer, "model overloaded")
		assert.Equal(t, 0.0, result.Confidence)
		assert.Empty(t, result.Citations)
	})

	t.Run("No retrieved chunks keep the confidence at the floor", func(t *testing.T) {
		provider := &fakeProvider{response: "I cannot answer that from the documents."}
		chain := newTestChain(t, provider, basicStrategies(nil, nil))

		result, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		assert.Equal(t, 0.1, result.Confidence)
	})
}

func TestChainLogging(t *testing.T) {
	results := []*model.RetrievalResult{
		testResult(1, "Dogs are loyal companions.", model.RetrievalMethodBasic, 0.9, false),
	}

	t.Run("Answers are logged under the session", func(t *testing.T) {
		provider := &fakeProvider{response: "Dogs are loyal."}
		chain := newTestChain(t, provider, basicStrategies(results, nil))
		logs := &fakeLogs{}
		chain.EnableLogging(logs, "tester_abc123")

		_, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		require.Len(t, logs.results, 1)
		assert.Equal(t, "tester_abc123", logs.sessions[0])
		assert.Equal(t, "Dogs are loyal.", logs.results[0].Answer)
		assert.Equal(t, "fake-model", logs.models[0])
	})

	t.Run("Failed answers are logged too", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("model overloaded")}
		chain := newTestChain(t, provider, basicStrategies(results, nil))
		logs := &fakeLogs{}
		chain.EnableLogging(logs, "tester_abc123")

		_, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		require.Len(t, logs.results, 1)
		assert.Equal(t, 0.0, logs.results[0].Confidence)
	})

	t.Run("Logging failure never fails the answer", func(t *testing.T) {
		provider := &fakeProvider{response: "Dogs are loyal."}
		chain := newTestChain(t, provider, basicStrategies(results, nil))
		chain.EnableLogging(&fakeLogs{err: errors.New("logs down")}, "tester_abc123")

		result, err := chain.Ask(context.Background(), "What are dogs?", model.RetrievalMethodBasic)

		assert.NoError(t, err)
		assert.Equal(t, "Dogs are loyal.", result.Answer)
	})
}

func TestChainCompareModes(t *testing.T) {
	strategies := make(map[model.RetrievalMethod]retrieval.Strategy, len(model.AllRetrievalMethods()))
	for _, method := range model.AllRetrievalMethods() {
		strategies[method] = &fakeStrategy{
			method: method,
			results: []*model.RetrievalResult{
				testResult(1, "Dogs are loyal companions.", method, 0.9, false),
			},
		}
	}
	provider := &fakeProvider{response: "Dogs are loyal companions."}
	chain := newTestChain(t, provider, strategies)

	comparison, err := chain.CompareModes(context.Background(), "What are dogs?")

	assert.NoError(t, err)
	require.NotNil(t, comparison)

	t.Run("Every method produces a result", func(t *testing.T) {
		require.Len(t, comparison.Results, 4)
		for _, method := range model.AllRetrievalMethods() {
			result, ok := comparison.Results[method]
			require.True(t, ok, "Expected a result for method %q", method)
			assert.Equal(t, method, result.RetrievalMethod)
		}
	})

	t.Run("Rankings are permutations of the methods", func(t *testing.T) {
		require.Len(t, comparison.ConfidenceRanking, 4)
		require.Len(t, comparison.SpeedRanking, 4)

		seen := map[model.RetrievalMethod]bool{}
		for _, ranking := range comparison.ConfidenceRanking {
			assert.False(t, seen[ranking.Method], "Expected every method only once")
			seen[ranking.Method] = true
		}
	})

	t.Run("Confidence ranking is descending", func(t *testing.T) {
		for i := 1; i < len(comparison.ConfidenceRanking); i++ {
			assert.GreaterOrEqual(t, comparison.ConfidenceRanking[i-1].Value, comparison.ConfidenceRanking[i].Value)
		}
	})

	t.Run("Speed ranking is ascending", func(t *testing.T) {
		for i := 1; i < len(comparison.SpeedRanking); i++ {
			assert.LessOrEqual(t, comparison.SpeedRanking[i-1].Value, comparison.SpeedRanking[i].Value)
		}
	})

	t.Run("Methods using hypothetical answers rank first by confidence", func(t *testing.T) {
		// Identical results everywhere, only the hyde bonus separates them
		assert.True(t, comparison.ConfidenceRanking[0].Method.UsesHyde())
		assert.True(t, comparison.ConfidenceRanking[1].Method.UsesHyde())
	})

	t.Run("Tied confidences keep a stable method order across runs", func(t *testing.T) {
		// With identical results per method the confidence values tie within
		// the hyde and non-hyde groups, so the ranking has to fall back to
		// the canonical method order instead of map iteration order
		expected := []model.RetrievalMethod{
			model.RetrievalMethodHyde,
			model.RetrievalMethodEnhanced,
			model.RetrievalMethodBasic,
			model.RetrievalMethodRerank,
		}

		for run := 0; run < 5; run++ {
			comparison, err := chain.CompareModes(context.Background(), "What are dogs?")
			require.NoError(t, err)

			methods := make([]model.RetrievalMethod, len(comparison.ConfidenceRanking))
			for i, ranking := range comparison.ConfidenceRanking {
				methods[i] = ranking.Method
			}
			assert.Equal(t, expected, methods, "Expected the same confidence ranking on run %d", run)
		}
	})
}
