package model

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the whole question answering pipeline.
// All components receive their configuration through constructors; there is
// no process-wide state.
type Config struct {
	// LLM configuration
	APIKey            string
	BaseURL           string
	ModelName         string
	AnswerTemperature float32
	MaxAnswerTokens   int

	// Embedding configuration
	EmbeddingModel string
	EmbeddingDim   int

	// Ingestion configuration
	ChunkSize    int
	ChunkOverlap int

	// Retrieval configuration
	TopK int

	// Answer language
	Language string

	// Timeout applied to every external call (embedding, generation)
	RequestTimeout time.Duration
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		ModelName:         "gpt-3.5-turbo",
		AnswerTemperature: 0.1,
		MaxAnswerTokens:   1000,
		EmbeddingModel:    "text-embedding-ada-002",
		EmbeddingDim:      1536,
		ChunkSize:         1024,
		ChunkOverlap:      128,
		TopK:              5,
		Language:          "English",
		RequestTimeout:    30 * time.Second,
	}
}

// ConfigFromEnv returns the default configuration overridden by environment
// variables. A .env file in the working directory is loaded if present.
func ConfigFromEnv() *Config {
	_ = godotenv.Load()

	config := DefaultConfig()
	config.APIKey = os.Getenv("OPENAI_API_KEY")

	if baseURL := os.Getenv("OPENAI_API_BASE"); baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName := os.Getenv("MODEL_NAME"); modelName != "" {
		config.ModelName = modelName
	}
	if embeddingModel := os.Getenv("EMBEDDING_MODEL"); embeddingModel != "" {
		config.EmbeddingModel = embeddingModel
	}
	if language := os.Getenv("ANSWER_LANGUAGE"); language != "" {
		config.Language = language
	}

	config.EmbeddingDim = envInt("EMBEDDING_DIM", config.EmbeddingDim)
	config.ChunkSize = envInt("CHUNK_SIZE", config.ChunkSize)
	config.ChunkOverlap = envInt("CHUNK_OVERLAP", config.ChunkOverlap)
	config.TopK = envInt("TOP_K", config.TopK)

	return config
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// QueryConfig represents configuration for a single retrieval query
type QueryConfig struct {
	// Maximum number of chunks used to ground one answer
	TopK int `json:"top_k"`
	// Reranking strategies fetch TopK*CandidateFactor candidates before truncating
	CandidateFactor int `json:"candidate_factor"`
	// Minimum cosine similarity for vector search results, 0 disables the cutoff
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                5,
		CandidateFactor:     2,
		SimilarityThreshold: 0.0,
	}
}

// CandidateK returns the number of candidates reranking strategies request
func (c QueryConfig) CandidateK() int {
	if c.CandidateFactor <= 1 {
		return c.TopK
	}
	return c.TopK * c.CandidateFactor
}
