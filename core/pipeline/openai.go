package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingBatchSize is the number of texts sent per embedding request
const EmbeddingBatchSize = 10

// EmbeddingAPI is the part of the OpenAI client used for embeddings
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder generates embeddings through an OpenAI compatible API.
// Texts are embedded in batches; a failed batch is retried text by text and
// texts that still fail get a zero vector so ingestion always produces one
// embedding per chunk. Zero vectors are logged, they rank last in cosine
// similarity search.
type OpenAIEmbedder struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for the given embedding model.
// dimensions must match the dimension the model produces, it is used for the
// zero vector fallback.
func NewOpenAIEmbedder(api EmbeddingAPI, modelName string, dimensions int, timeout time.Duration, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if api == nil {
		return nil, fmt.Errorf("embedding api is nil")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIEmbedder{
		api:        api,
		model:      openai.EmbeddingModel(modelName),
		dimensions: dimensions,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Embed generates an embedding for one text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.requestEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for all texts in input order.
// The returned slice always has one embedding per input text.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += EmbeddingBatchSize {
		end := start + EmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchEmbeddings, err := e.requestEmbeddings(ctx, batch)
		if err != nil {
			e.logger.Warn("Embedding batch failed, retrying texts individually", "batch_start", start, "batch_size", len(batch), "error", err)
			batchEmbeddings = e.embedIndividually(ctx, batch, start)
		}

		embeddings = append(embeddings, batchEmbeddings...)
	}

	return embeddings, nil
}

// EmbedFunc returns the single text embedding function of this embedder
func (e *OpenAIEmbedder) EmbedFunc() EmbedFunc {
	return e.Embed
}

// BatchEmbedFunc returns the batch embedding function of this embedder
func (e *OpenAIEmbedder) BatchEmbedFunc() BatchEmbedFunc {
	return e.EmbedBatch
}

// requestEmbeddings bounds the request by the configured timeout on top of
// the caller's context, so cancellation still propagates.
func (e *OpenAIEmbedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	return embeddings, nil
}

// embedIndividually retries each text of a failed batch on its own and fills
// in a zero vector for texts that still fail.
func (e *OpenAIEmbedder) embedIndividually(ctx context.Context, texts []string, batchStart int) [][]float32 {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.requestEmbeddings(ctx, []string{text})
		if err != nil {
			e.logger.Warn("Embedding failed, using zero vector", "index", batchStart+i, "error", err)
			embeddings[i] = make([]float32, e.dimensions)
			continue
		}
		embeddings[i] = embedding[0]
	}
	return embeddings
}
