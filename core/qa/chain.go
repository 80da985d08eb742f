package qa

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/siherrmann/raglite/core/retrieval"
	"github.com/siherrmann/raglite/database"
	"github.com/siherrmann/raglite/model"
)

// Chain answers questions end to end: it retrieves with the requested
// strategy, synthesizes an answer and estimates its confidence.
// Pipeline failures (store, generation) never surface as errors; they produce
// a failure result instead. Only caller errors (empty question, unknown
// method) are returned as errors.
type Chain struct {
	strategies  map[model.RetrievalMethod]retrieval.Strategy
	synthesizer *Synthesizer
	estimator   *retrieval.Estimator
	queryConfig model.QueryConfig
	logger      *slog.Logger

	// Optional answer logging, enabled via EnableLogging
	logs      database.LogsDBHandlerFunctions
	sessionID string
}

// NewChain creates a question answering chain over the given strategies
func NewChain(strategies map[model.RetrievalMethod]retrieval.Strategy, synthesizer *Synthesizer, estimator *retrieval.Estimator, queryConfig model.QueryConfig, logger *slog.Logger) (*Chain, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies given")
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is nil")
	}
	if estimator == nil {
		return nil, fmt.Errorf("estimator is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Chain{
		strategies:  strategies,
		synthesizer: synthesizer,
		estimator:   estimator,
		queryConfig: queryConfig,
		logger:      logger,
	}, nil
}

// EnableLogging persists every answered question under the given session.
// Logging is fire-and-forget, a failed write is logged and never fails the
// answer.
func (c *Chain) EnableLogging(logs database.LogsDBHandlerFunctions, sessionID string) {
	c.logs = logs
	c.sessionID = sessionID
}

// Ask answers the question with the requested retrieval method
func (c *Chain) Ask(ctx context.Context, question string, method model.RetrievalMethod) (*model.AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	strategy, ok := c.strategies[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidMode, method)
	}

	start := time.Now()

	results, err := strategy.Retrieve(ctx, question, c.queryConfig)
	if err != nil {
		c.logger.Warn("Retrieval failed", "method", method, "error", err)
		result := c.synthesizer.failureResult(question, method, err, start)
		c.logAnswer(ctx, result)
		return result, nil
	}

	result, err := c.synthesizer.Synthesize(ctx, question, results, method, start)
	if err != nil {
		c.logger.Warn("Answer generation failed", "method", method, "error", err)
		c.logAnswer(ctx, result)
		return result, nil
	}

	sources := make([]*model.Chunk, len(results))
	for i, retrieved := range results {
		sources[i] = retrieved.Chunk
	}
	result.Confidence = c.estimator.Estimate(question, result.Answer, sources, method)

	c.logAnswer(ctx, result)

	return result, nil
}

// CompareModes answers the question with every retrieval method and ranks
// the results by confidence and by speed
func (c *Chain) CompareModes(ctx context.Context, question string) (*model.Comparison, error) {
	comparison := &model.Comparison{
		Question: question,
		Results:  make(map[model.RetrievalMethod]*model.AnswerResult, len(model.AllRetrievalMethods())),
	}

	for _, method := range model.AllRetrievalMethods() {
		result, err := c.Ask(ctx, question, method)
		if err != nil {
			return nil, err
		}
		comparison.Results[method] = result
	}

	// Seed rankings in method order so ties stay in a stable order
	for _, method := range model.AllRetrievalMethods() {
		result := comparison.Results[method]
		comparison.ConfidenceRanking = append(comparison.ConfidenceRanking, model.MethodRanking{Method: method, Value: result.Confidence})
		comparison.SpeedRanking = append(comparison.SpeedRanking, model.MethodRanking{Method: method, Value: result.ResponseTime})
	}
	sort.SliceStable(comparison.ConfidenceRanking, func(i, j int) bool {
		return comparison.ConfidenceRanking[i].Value > comparison.ConfidenceRanking[j].Value
	})
	sort.SliceStable(comparison.SpeedRanking, func(i, j int) bool {
		return comparison.SpeedRanking[i].Value < comparison.SpeedRanking[j].Value
	})

	return comparison, nil
}

func (c *Chain) logAnswer(ctx context.Context, result *model.AnswerResult) {
	if c.logs == nil || c.sessionID == "" {
		return
	}

	_, err := c.logs.InsertQALog(ctx, c.sessionID, result, c.synthesizer.ModelName())
	if err != nil {
		c.logger.Warn("Logging answer failed", "session", c.sessionID, "error", err)
	}
}
