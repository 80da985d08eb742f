package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/siherrmann/raglite/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpander(t *testing.T) {
	t.Run("Valid call NewExpander", func(t *testing.T) {
		expander, err := NewExpander(&fakeProvider{}, nil)
		assert.NoError(t, err)
		assert.NotNil(t, expander)
	})

	t.Run("Invalid call with nil provider", func(t *testing.T) {
		_, err := NewExpander(nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "provider is nil")
	})
}

func TestExpanderExpand(t *testing.T) {
	t.Run("Expand returns the generated hypothetical answer", func(t *testing.T) {
		provider := &fakeProvider{response: "A hypothetical answer about dogs."}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		expanded := expander.Expand(context.Background(), "What are dogs?")

		assert.Equal(t, "A hypothetical answer about dogs.", expanded)
		require.Len(t, provider.prompts, 1)
		assert.Contains(t, provider.prompts[0], "What are dogs?")
	})

	t.Run("Expand falls back to the question on generation failure", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("rate limited")}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		expanded := expander.Expand(context.Background(), "What are dogs?")

		assert.Equal(t, "What are dogs?", expanded, "Expected the original question as fallback")
	})

	t.Run("Expand falls back to the question on empty generation", func(t *testing.T) {
		provider := &fakeProvider{response: ""}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		expanded := expander.Expand(context.Background(), "What are dogs?")

		assert.Equal(t, "What are dogs?", expanded)
	})
}

func TestExpanderRetrieve(t *testing.T) {
	// "dogs detail" is the hypothetical answer the fake provider generates;
	// it embeds close to the dog chunks, the question embeds close to cats.
	vectors := map[string][]float32{
		"dogs detail":      {1, 0, 0},
		"What about pets?": {0, 1, 0},
	}
	store := &fakeChunksDB{chunks: []*model.Chunk{
		testChunk(1, "dogs are loyal", []float32{1, 0, 0}),
		testChunk(2, "dogs bark", []float32{0.9, 0.1, 0}),
		testChunk(3, "cats purr", []float32{0, 1, 0}),
		testChunk(4, "birds fly", []float32{0, 0, 1}),
	}}
	engine, err := NewEngine(store, mapEmbed(vectors, []float32{1, 1, 1}))
	require.NoError(t, err)

	t.Run("Retrieve merges hypothetical and question results without duplicates", func(t *testing.T) {
		provider := &fakeProvider{response: "dogs detail"}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		chunks, err := expander.Retrieve(context.Background(), engine, "What about pets?", 3, 0.0)

		assert.NoError(t, err)
		require.Len(t, chunks, 3)

		// No two chunks share content
		seen := map[string]bool{}
		for _, chunk := range chunks {
			assert.False(t, seen[chunk.Content], "Expected no duplicate content, got %q twice", chunk.Content)
			seen[chunk.Content] = true
		}

		// Hypothetical answer results come first
		assert.Equal(t, "dogs are loyal", chunks[0].Content)
	})

	t.Run("Retrieve returns at most k chunks", func(t *testing.T) {
		provider := &fakeProvider{response: "dogs detail"}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		chunks, err := expander.Retrieve(context.Background(), engine, "What about pets?", 2, 0.0)

		assert.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("Retrieve still works when generation fails", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("provider down")}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		chunks, err := expander.Retrieve(context.Background(), engine, "What about pets?", 2, 0.0)

		assert.NoError(t, err, "Expected retrieval to degrade to a plain search")
		require.NotEmpty(t, chunks)
		assert.Equal(t, "cats purr", chunks[0].Content, "Expected the question search to drive results")
	})

	t.Run("Retrieve propagates store errors", func(t *testing.T) {
		failingEngine, err := NewEngine(&fakeChunksDB{err: errors.New("store down")}, mapEmbed(vectors, []float32{1, 1, 1}))
		require.NoError(t, err)

		provider := &fakeProvider{response: "dogs detail"}
		expander, err := NewExpander(provider, nil)
		require.NoError(t, err)

		_, err = expander.Retrieve(context.Background(), failingEngine, "What about pets?", 2, 0.0)
		assert.Error(t, err)
	})
}
