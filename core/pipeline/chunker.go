package pipeline

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/raglite/helper"
)

// chunk boundary separators in order of preference
var windowSeparators = []string{"\n\n", "\n", "。", ". ", "，", " "}

// WindowChunker creates a chunker that splits text into overlapping windows of
// at most chunkSize runes. Window boundaries are moved back to the last
// paragraph, line, sentence or word break inside the window so chunks do not
// cut words apart. Consecutive windows overlap by overlap runes. All positions
// are rune offsets, multi byte characters are never split.
func WindowChunker(chunkSize int, overlap int) ChunkFunc {
	return func(text string) ([]ChunkSpan, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, fmt.Errorf("overlap must be in [0, chunk size)")
		}

		if strings.TrimSpace(text) == "" {
			return []ChunkSpan{}, nil
		}

		runes := []rune(text)
		var spans []ChunkSpan
		chunkIdx := 0
		start := 0

		for start < len(runes) {
			end := start + chunkSize
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = splitPoint(runes, start, end)
			}

			content := strings.TrimSpace(string(runes[start:end]))
			if content != "" {
				startPos := start
				endPos := end
				spans = append(spans, ChunkSpan{
					Content:    content,
					ChunkIndex: chunkIdx,
					StartPos:   &startPos,
					EndPos:     &endPos,
					Metadata:   make(map[string]interface{}),
				})
				chunkIdx++
			}

			if end >= len(runes) {
				break
			}

			next := end - overlap
			if next <= start {
				next = start + 1
			}
			start = next
		}

		return spans, nil
	}
}

// splitPoint moves the window end back to the best separator inside the
// second half of the window. Offsets are rune based so the cut always lands
// on a rune boundary. Falls back to the hard cut when no separator is found.
func splitPoint(runes []rune, start int, end int) int {
	window := string(runes[start:end])
	minCut := (end - start) / 2

	for _, sep := range windowSeparators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(sep)
		if cut > minCut {
			return start + cut
		}
	}
	return end
}

// SentenceChunker creates a chunker that splits by sentences
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]ChunkSpan, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		// Handle empty or whitespace-only text
		if strings.TrimSpace(text) == "" {
			return []ChunkSpan{}, nil
		}

		sentences := splitSentences(text)

		var spans []ChunkSpan
		var currentChunk []string
		chunkIdx := 0
		pos := 0

		appendChunk := func() {
			content := strings.Join(currentChunk, " ")
			startPos := pos
			endPos := pos + len(content)

			spans = append(spans, ChunkSpan{
				Content:    content,
				ChunkIndex: chunkIdx,
				StartPos:   &startPos,
				EndPos:     &endPos,
				Metadata:   make(map[string]interface{}),
			})

			pos = endPos
			currentChunk = nil
			chunkIdx++
		}

		for _, sentence := range sentences {
			currentChunk = append(currentChunk, sentence)
			if len(currentChunk) >= maxSentencesPerChunk {
				appendChunk()
			}
		}

		// Add remaining sentences
		if len(currentChunk) > 0 {
			appendChunk()
		}

		return spans, nil
	}
}

// ParagraphChunker creates a chunker that splits by paragraphs
func ParagraphChunker() ChunkFunc {
	return func(text string) ([]ChunkSpan, error) {
		paragraphs := strings.Split(text, "\n\n")

		var spans []ChunkSpan
		chunkIdx := 0
		pos := 0

		for _, para := range paragraphs {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			startPos := pos
			endPos := pos + len(para)

			spans = append(spans, ChunkSpan{
				Content:    para,
				ChunkIndex: chunkIdx,
				StartPos:   &startPos,
				EndPos:     &endPos,
				Metadata:   make(map[string]interface{}),
			})

			pos = endPos + 2 // Account for "\n\n"
			chunkIdx++
		}

		return spans, nil
	}
}

func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")

	sentences := strings.Split(text, "|")
	var result []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// SemanticChunker creates a chunker that uses embeddings to identify natural boundaries.
// It analyzes semantic similarity between sentences and creates chunks at points where similarity drops.
func SemanticChunker(maxChunkSize int, similarityThreshold float32) ChunkFunc {
	return func(text string) ([]ChunkSpan, error) {
		// Prepare model (download if needed)
		modelName := "sentence-transformers/all-MiniLM-L6-v2"
		modelPath, err := helper.PrepareModel(modelName, "")
		if err != nil {
			return nil, err
		}

		// Initialize hugot session with Go backend
		session, err := hugot.NewGoSession()
		if err != nil {
			return nil, fmt.Errorf("failed to create hugot session: %w", err)
		}
		defer session.Destroy()

		// Create sentence transformers pipeline configuration
		config := hugot.FeatureExtractionConfig{
			ModelPath: modelPath,
			Name:      "semantic-chunker-pipeline",
		}
		sentencePipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
		}

		cleanSentences := splitSentences(text)
		if len(cleanSentences) == 0 {
			return nil, fmt.Errorf("no sentences found in text")
		}

		// Get embeddings for all sentences
		embeddingResult, err := sentencePipeline.RunPipeline(cleanSentences)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		embeddings := embeddingResult.Embeddings
		if len(embeddings) != len(cleanSentences) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d sentences", len(embeddings), len(cleanSentences))
		}

		// Group sentences based on semantic similarity
		var spans []ChunkSpan
		var currentChunk []string
		var currentEmbeddings [][]float32
		var currentLength int
		chunkIdx := 0
		pos := 0

		appendChunk := func() {
			content := strings.Join(currentChunk, " ")
			startPos := pos
			endPos := pos + len(content)

			spans = append(spans, ChunkSpan{
				Content:    content,
				ChunkIndex: chunkIdx,
				StartPos:   &startPos,
				EndPos:     &endPos,
				Metadata: map[string]interface{}{
					"embedding_model": modelName,
					"num_sentences":   len(currentChunk),
					"chunking_method": "semantic",
				},
			})

			pos = endPos
			currentChunk = nil
			currentEmbeddings = nil
			currentLength = 0
			chunkIdx++
		}

		for i, sentence := range cleanSentences {
			sentenceLen := len(sentence)
			shouldBreak := false

			// Check if we should create a chunk boundary
			if len(currentChunk) > 0 {
				// Calculate average embedding of current chunk
				avgEmbedding := make([]float32, len(currentEmbeddings[0]))
				for _, emb := range currentEmbeddings {
					for j := range emb {
						avgEmbedding[j] += emb[j]
					}
				}
				for j := range avgEmbedding {
					avgEmbedding[j] /= float32(len(currentEmbeddings))
				}

				// Calculate similarity between current chunk and new sentence
				similarity := cosineSimilarity(avgEmbedding, embeddings[i])

				// Break if similarity drops below threshold or size limit exceeded
				if similarity < similarityThreshold || currentLength+sentenceLen > maxChunkSize {
					shouldBreak = true
				}
			}

			if shouldBreak {
				appendChunk()
			}

			currentChunk = append(currentChunk, sentence)
			currentEmbeddings = append(currentEmbeddings, embeddings[i])
			currentLength += sentenceLen
		}

		// Final chunk
		if len(currentChunk) > 0 {
			appendChunk()
		}

		return spans, nil
	}
}
