package qa

import (
	"context"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/database"
	"github.com/siherrmann/raglite/model"
)

// fakeProvider returns a canned generation response and records requests
type fakeProvider struct {
	response   string
	tokensUsed int
	err        error
	requests   []llm.GenerationRequest
}

func (f *fakeProvider) Generate(ctx context.Context, request llm.GenerationRequest) (*llm.GenerationResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	tokens := f.tokensUsed
	if tokens == 0 {
		tokens = 42
	}
	return &llm.GenerationResponse{Content: f.response, TokensUsed: tokens}, nil
}

func (f *fakeProvider) ModelInfo() llm.ModelInfo {
	return llm.ModelInfo{Name: "fake-model", Provider: "fake"}
}

// fakeStrategy returns fixed retrieval results
type fakeStrategy struct {
	method  model.RetrievalMethod
	results []*model.RetrievalResult
	err     error
	calls   int
}

func (f *fakeStrategy) Retrieve(ctx context.Context, question string, config model.QueryConfig) ([]*model.RetrievalResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeStrategy) Method() model.RetrievalMethod {
	return f.method
}

// fakeLogs records inserted answer logs
type fakeLogs struct {
	err      error
	sessions []string
	results  []*model.AnswerResult
	models   []string
}

func (f *fakeLogs) CreateConversation(ctx context.Context, userID string) (*database.Conversation, error) {
	return &database.Conversation{SessionID: userID + "_test"}, nil
}

func (f *fakeLogs) InsertQALog(ctx context.Context, sessionID string, result *model.AnswerResult, modelName string) (*database.QALog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions = append(f.sessions, sessionID)
	f.results = append(f.results, result)
	f.models = append(f.models, modelName)
	return &database.QALog{Question: result.Question, Answer: result.Answer}, nil
}

func (f *fakeLogs) SelectQALogs(ctx context.Context, sessionID string, limit int) ([]*database.QALog, error) {
	return nil, nil
}

func (f *fakeLogs) InsertFeedback(ctx context.Context, qaLogID int64, feedbackType string, comment string) (*database.Feedback, error) {
	return nil, nil
}

func testResult(id int64, content string, method model.RetrievalMethod, score float64, scored bool) *model.RetrievalResult {
	index := int(id)
	return &model.RetrievalResult{
		Chunk: &model.Chunk{
			ID:         id,
			Content:    content,
			ChunkIndex: &index,
			Metadata:   map[string]interface{}{"source_file": "guide.txt"},
		},
		Score:           score,
		Scored:          scored,
		RetrievalMethod: method,
	}
}
