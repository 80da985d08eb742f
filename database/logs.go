package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
	loadSql "github.com/siherrmann/raglite/sql"
)

// Conversation groups the question answering logs of one session
type Conversation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QALog is one persisted question answering exchange
type QALog struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversation_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Citations       []byte    `json:"citations,omitempty"` // serialized model.Citation list
	Confidence      *float64  `json:"confidence,omitempty"`
	ResponseTime    *float64  `json:"response_time,omitempty"`
	TokensUsed      *int      `json:"tokens_used,omitempty"`
	ModelName       *string   `json:"model_name,omitempty"`
	RetrievalMethod *string   `json:"retrieval_method,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Feedback is a user judgement ("like"/"dislike") on one logged answer
type Feedback struct {
	ID           int64     `json:"id"`
	QALogID      int64     `json:"qa_log_id"`
	FeedbackType string    `json:"feedback_type"`
	Comment      *string   `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LogsDBHandlerFunctions defines the interface for log database operations.
type LogsDBHandlerFunctions interface {
	CreateConversation(ctx context.Context, userID string) (*Conversation, error)
	InsertQALog(ctx context.Context, sessionID string, result *model.AnswerResult, modelName string) (*QALog, error)
	SelectQALogs(ctx context.Context, sessionID string, limit int) ([]*QALog, error)
	InsertFeedback(ctx context.Context, qaLogID int64, feedbackType string, comment string) (*Feedback, error)
}

// LogsDBHandler persists conversations, answers and feedback.
// The answer pipeline calls it fire-and-forget, a failed log write is logged
// by the caller and never fails the answer.
type LogsDBHandler struct {
	db *helper.Database
}

// NewLogsDBHandler creates a new logs database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewLogsDBHandler(db *helper.Database, force bool) (*LogsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	logsDbHandler := &LogsDBHandler{
		db: db,
	}

	err := loadSql.LoadLogsSql(logsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load logs sql", err)
	}

	err = logsDbHandler.CreateTables()
	if err != nil {
		return nil, helper.NewError("create tables", err)
	}

	db.Logger.Info("Initialized LogsDBHandler")

	return logsDbHandler, nil
}

// CreateTables creates the conversations, qa_logs and user_feedback tables
func (h *LogsDBHandler) CreateTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_logs();`)
	if err != nil {
		log.Panicf("error initializing log tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created log tables")

	return nil
}

// CreateConversation creates a new conversation session and returns it.
// The session id is "<user>_<random>" like the original system used.
func (h *LogsDBHandler) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	if userID == "" {
		userID = "anonymous"
	}
	sessionID := fmt.Sprintf("%s_%s", userID, uuid.New().String()[:8])

	conversation := &Conversation{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_conversation($1, $2)`,
		sessionID,
		userID,
	)

	err := row.Scan(
		&conversation.ID,
		&conversation.SessionID,
		&conversation.UserID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return conversation, nil
}

// InsertQALog records one answered question under a session
func (h *LogsDBHandler) InsertQALog(ctx context.Context, sessionID string, result *model.AnswerResult, modelName string) (*QALog, error) {
	citations, err := json.Marshal(result.Citations)
	if err != nil {
		return nil, helper.NewError("marshal citations", err)
	}

	qaLog := &QALog{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_qa_log($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sessionID,
		result.Question,
		result.Answer,
		citations,
		result.Confidence,
		result.ResponseTime,
		result.TokensUsed,
		modelName,
		string(result.RetrievalMethod),
	)

	err = row.Scan(
		&qaLog.ID,
		&qaLog.ConversationID,
		&qaLog.Question,
		&qaLog.Answer,
		&qaLog.Citations,
		&qaLog.Confidence,
		&qaLog.ResponseTime,
		&qaLog.TokensUsed,
		&qaLog.ModelName,
		&qaLog.RetrievalMethod,
		&qaLog.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return qaLog, nil
}

// SelectQALogs returns the most recent logs of a session, newest first
func (h *LogsDBHandler) SelectQALogs(ctx context.Context, sessionID string, limit int) ([]*QALog, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_qa_logs_by_conversation($1, $2)`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var logs []*QALog
	for rows.Next() {
		qaLog := &QALog{}
		err := rows.Scan(
			&qaLog.ID,
			&qaLog.ConversationID,
			&qaLog.Question,
			&qaLog.Answer,
			&qaLog.Citations,
			&qaLog.Confidence,
			&qaLog.ResponseTime,
			&qaLog.TokensUsed,
			&qaLog.ModelName,
			&qaLog.RetrievalMethod,
			&qaLog.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		logs = append(logs, qaLog)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return logs, nil
}

// InsertFeedback records user feedback on a logged answer
func (h *LogsDBHandler) InsertFeedback(ctx context.Context, qaLogID int64, feedbackType string, comment string) (*Feedback, error) {
	feedback := &Feedback{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_feedback($1, $2, $3)`,
		qaLogID,
		feedbackType,
		comment,
	)

	err := row.Scan(
		&feedback.ID,
		&feedback.QALogID,
		&feedback.FeedbackType,
		&feedback.Comment,
		&feedback.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return feedback, nil
}
