package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RetrievalMethod identifies one of the selectable retrieval pipelines
type RetrievalMethod string

const (
	RetrievalMethodBasic    RetrievalMethod = "basic"
	RetrievalMethodHyde     RetrievalMethod = "hyde"
	RetrievalMethodRerank   RetrievalMethod = "rerank"
	RetrievalMethodEnhanced RetrievalMethod = "hyde+rerank"
)

// ErrInvalidMode is returned when a caller requests an unknown retrieval method
var ErrInvalidMode = errors.New("invalid retrieval method")

// AllRetrievalMethods returns the closed set of retrieval methods in a fixed order
func AllRetrievalMethods() []RetrievalMethod {
	return []RetrievalMethod{
		RetrievalMethodBasic,
		RetrievalMethodHyde,
		RetrievalMethodRerank,
		RetrievalMethodEnhanced,
	}
}

// ParseRetrievalMethod converts a mode name into a RetrievalMethod.
// An unknown name is a caller error, never silently defaulted.
func ParseRetrievalMethod(name string) (RetrievalMethod, error) {
	switch RetrievalMethod(name) {
	case RetrievalMethodBasic, RetrievalMethodHyde, RetrievalMethodRerank, RetrievalMethodEnhanced:
		return RetrievalMethod(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

// Valid reports whether the method belongs to the closed set
func (m RetrievalMethod) Valid() bool {
	_, err := ParseRetrievalMethod(string(m))
	return err == nil
}

// UsesHyde reports whether the method expands the query with a hypothetical answer
func (m RetrievalMethod) UsesHyde() bool {
	return m == RetrievalMethodHyde || m == RetrievalMethodEnhanced
}

// Chunk represents a stored unit of retrievable text.
// Chunks are created once at ingestion time and never updated in place.
type Chunk struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
	ChunkIndex  *int      `json:"chunk_index,omitempty"`
	TotalChunks *int      `json:"total_chunks,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Similarity *float64 `json:"similarity,omitempty"`
}

// SourceFile returns the source_file metadata entry or "unknown"
func (c *Chunk) SourceFile() string {
	if c.Metadata != nil {
		if source, ok := c.Metadata["source_file"].(string); ok && source != "" {
			return source
		}
	}
	return "unknown"
}
