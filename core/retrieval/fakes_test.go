package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/core/pipeline"
	"github.com/siherrmann/raglite/model"
)

// fakeChunksDB ranks its chunks by cosine similarity in memory
type fakeChunksDB struct {
	chunks []*model.Chunk
	err    error
}

func (f *fakeChunksDB) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}

	type scored struct {
		chunk      *model.Chunk
		similarity float64
	}

	ranked := make([]scored, 0, len(f.chunks))
	for _, chunk := range f.chunks {
		similarity := cosine(embedding, chunk.Embedding)
		if threshold > 0 && similarity < threshold {
			continue
		}
		ranked = append(ranked, scored{chunk: chunk, similarity: similarity})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}

	results := make([]*model.Chunk, len(ranked))
	for i, entry := range ranked {
		chunkCopy := *entry.chunk
		similarity := entry.similarity
		chunkCopy.Similarity = &similarity
		results[i] = &chunkCopy
	}
	return results, nil
}

func (f *fakeChunksDB) CountChunks(ctx context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.chunks)), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// mapEmbed embeds known texts with fixed vectors and everything else with a
// fallback vector
func mapEmbed(vectors map[string][]float32, fallback []float32) pipeline.EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if vector, ok := vectors[text]; ok {
			return vector, nil
		}
		return fallback, nil
	}
}

// fakeProvider returns a canned generation response and records prompts
type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Generate(ctx context.Context, request llm.GenerationRequest) (*llm.GenerationResponse, error) {
	f.prompts = append(f.prompts, request.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerationResponse{Content: f.response, TokensUsed: 10}, nil
}

func (f *fakeProvider) ModelInfo() llm.ModelInfo {
	return llm.ModelInfo{Name: "fake-model", Provider: "fake"}
}

func testChunk(id int64, content string, embedding []float32) *model.Chunk {
	index := int(id)
	return &model.Chunk{
		ID:         id,
		Content:    content,
		Embedding:  embedding,
		ChunkIndex: &index,
		Metadata:   map[string]interface{}{"source_file": "test.txt"},
	}
}
