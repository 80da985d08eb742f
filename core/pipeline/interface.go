package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/raglite/model"
)

// ChunkFunc is a function that splits text into chunk spans
type ChunkFunc func(text string) ([]ChunkSpan, error)

// EmbedFunc is a function that generates an embedding for one text.
// The context bounds the call, embedding may go through a remote API.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// BatchEmbedFunc is a function that generates embeddings for multiple texts.
// It returns exactly one embedding per input text, in input order. Inputs that
// could not be embedded carry a zero vector instead of failing the batch.
type BatchEmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ChunkSpan represents one chunk of a source text with its position
type ChunkSpan struct {
	Content    string
	ChunkIndex int
	StartPos   *int
	EndPos     *int
	Metadata   map[string]interface{}
}

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker       ChunkFunc
	Embedder      EmbedFunc
	BatchEmbedder BatchEmbedFunc // Optional, preferred over Embedder when set
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// SetBatchEmbedder sets a batch embedding function.
// When set, Process embeds all chunks through it instead of one call per chunk.
func (p *Pipeline) SetBatchEmbedder(embedder BatchEmbedFunc) {
	p.BatchEmbedder = embedder
}

// Process splits text into chunks and embeds them.
// sourceFile is recorded in every chunk's metadata for citation rendering.
// Chunk index and total chunk count are filled in so answers can reference
// the position of a fragment inside its document.
func (p *Pipeline) Process(ctx context.Context, text string, sourceFile string) ([]*model.Chunk, error) {
	spans, err := p.Chunker(text)
	if err != nil {
		return nil, err
	}

	embeddings, err := p.embedSpans(ctx, spans)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(spans) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d chunks", len(embeddings), len(spans))
	}

	total := len(spans)
	chunks := make([]*model.Chunk, 0, len(spans))
	for i, span := range spans {
		chunkIndex := span.ChunkIndex
		totalChunks := total

		metadata := make(map[string]interface{}, len(span.Metadata)+3)
		for k, v := range span.Metadata {
			metadata[k] = v
		}
		if sourceFile != "" {
			metadata["source_file"] = sourceFile
		}
		if span.StartPos != nil {
			metadata["start_pos"] = *span.StartPos
		}
		if span.EndPos != nil {
			metadata["end_pos"] = *span.EndPos
		}

		chunks = append(chunks, &model.Chunk{
			Content:     span.Content,
			Embedding:   embeddings[i],
			ChunkIndex:  &chunkIndex,
			TotalChunks: &totalChunks,
			Metadata:    metadata,
		})
	}

	return chunks, nil
}

func (p *Pipeline) embedSpans(ctx context.Context, spans []ChunkSpan) ([][]float32, error) {
	if p.BatchEmbedder != nil {
		texts := make([]string, len(spans))
		for i, span := range spans {
			texts[i] = span.Content
		}
		return p.BatchEmbedder(ctx, texts)
	}

	embeddings := make([][]float32, len(spans))
	for i, span := range spans {
		embedding, err := p.Embedder(ctx, span.Content)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}
