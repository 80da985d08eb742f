package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/raglite/core/pipeline"
	"github.com/siherrmann/raglite/model"
)

// ChunksDB defines the chunk store operations the engine needs
type ChunksDB interface {
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)
}

// Engine performs vector similarity retrieval over the chunk store
type Engine struct {
	chunks ChunksDB
	embed  pipeline.EmbedFunc
}

// NewEngine creates a new retrieval engine
func NewEngine(chunks ChunksDB, embed pipeline.EmbedFunc) (*Engine, error) {
	if chunks == nil {
		return nil, fmt.Errorf("chunk store is nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("embed function is nil")
	}

	return &Engine{
		chunks: chunks,
		embed:  embed,
	}, nil
}

// Search embeds the query and returns the limit nearest chunks.
// If the store holds fewer chunks than limit, all of them are returned.
func (e *Engine) Search(ctx context.Context, query string, limit int, threshold float64) ([]*model.Chunk, error) {
	embedding, err := e.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	return e.chunks.SelectChunksBySimilarity(ctx, embedding, limit, threshold)
}

// CountChunks returns the number of chunks in the store
func (e *Engine) CountChunks(ctx context.Context) (int64, error) {
	return e.chunks.CountChunks(ctx)
}
