package model

// RetrievalResult represents a chunk retrieved by one retrieval call.
// Score semantics depend on the producer (cosine similarity, lexical overlap
// or LLM-assigned relevance); scores from different producers must not be
// compared without renormalization.
type RetrievalResult struct {
	Chunk           *Chunk          `json:"chunk"`
	Score           float64         `json:"score"`
	Scored          bool            `json:"scored"` // true when Score comes from a reranker
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
}

// Citation is a user-facing projection of a chunk attached to an answer.
// It is derived per answer and never persisted independently.
type Citation struct {
	Content         string          `json:"content"`
	Source          string          `json:"source"`
	ChunkIndex      int             `json:"chunk_index"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	RerankScore     *float64        `json:"rerank_score,omitempty"`
}

// AnswerResult is the unit returned by every retrieval strategy.
// Answer is never empty; on failure it carries a user-visible error message
// and Confidence is exactly 0.0 (the one exception to the 0.1 floor).
type AnswerResult struct {
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	Citations       []Citation      `json:"citations"`
	Confidence      float64         `json:"confidence"`
	ResponseTime    float64         `json:"response_time"`
	SourceCount     int             `json:"source_count"`
	TokensUsed      *int            `json:"tokens_used,omitempty"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
}

// MethodRanking is one entry of a comparison ranking
type MethodRanking struct {
	Method RetrievalMethod `json:"method"`
	Value  float64         `json:"value"`
}

// Comparison holds the results of running all retrieval methods on one question
type Comparison struct {
	Question          string                            `json:"question"`
	Results           map[RetrievalMethod]*AnswerResult `json:"results"`
	ConfidenceRanking []MethodRanking                   `json:"confidence_ranking"` // descending confidence
	SpeedRanking      []MethodRanking                   `json:"speed_ranking"`      // ascending response time
}
