package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
	loadSql "github.com/siherrmann/raglite/sql"
)

// ErrStoreUnavailable indicates that the chunk store cannot be reached.
// Callers treat it as a whole-pipeline failure and degrade to an error answer.
var ErrStoreUnavailable = errors.New("chunk store unavailable")

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.Chunk) error
	InsertChunks(chunks []*model.Chunk) ([]int64, error)
	SelectChunk(id int64) (*model.Chunk, error)
	SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the vector index.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Use the SQL init() function to create all tables and indexes
	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk and fills in the assigned id and timestamps
func (h *ChunksDBHandler) InsertChunk(chunk *model.Chunk) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6)`,
		chunk.DocumentID,
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
		chunk.ChunkIndex,
		chunk.TotalChunks,
		chunk.Metadata,
	)

	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.DocumentRID,
		&chunk.Content,
		pq.Array(&chunk.Embedding),
		&chunk.ChunkIndex,
		&chunk.TotalChunks,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// InsertChunks inserts all chunks in order and returns the assigned ids.
// Ingestion is at-least-once, duplicate chunks are tolerated and not
// deduplicated at this layer.
func (h *ChunksDBHandler) InsertChunks(chunks []*model.Chunk) ([]int64, error) {
	ids := make([]int64, 0, len(chunks))
	for i, chunk := range chunks {
		if err := h.InsertChunk(chunk); err != nil {
			return ids, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
		ids = append(ids, chunk.ID)
	}
	return ids, nil
}

// SelectChunk retrieves a chunk by id
func (h *ChunksDBHandler) SelectChunk(id int64) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.DocumentRID,
		&chunk.Content,
		pq.Array(&chunk.Embedding),
		&chunk.ChunkIndex,
		&chunk.TotalChunks,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks of a document ordered by chunk index
func (h *ChunksDBHandler) SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_document($1)`,
		documentRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Content,
			pq.Array(&chunk.Embedding),
			&chunk.ChunkIndex,
			&chunk.TotalChunks,
			&chunk.Metadata,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity returns the limit nearest chunks by cosine distance.
// If the store holds fewer chunks, all of them are returned without error.
// The ordering is deterministic, ties are broken by chunk id.
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.Chunk, error) {
	if limit < 1 {
		return nil, helper.NewError("similarity search validation", fmt.Errorf("limit must be at least 1, got %d", limit))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		pgvector.NewVector(embedding),
		limit,
		threshold,
	)
	if err != nil {
		return nil, helper.NewError("similarity query", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Content,
			pq.Array(&chunk.Embedding),
			&chunk.ChunkIndex,
			&chunk.TotalChunks,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// CountChunks returns the number of stored chunks
func (h *ChunksDBHandler) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count chunks", err)
	}
	return count, nil
}

// Reset deletes all stored chunks. Chunks are immutable, a full reset or
// document re-ingestion is the only way to remove them.
func (h *ChunksDBHandler) Reset(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_chunks();`)
	if err != nil {
		return helper.NewError("delete all chunks", err)
	}

	h.db.Logger.Info("Deleted all chunks")

	return nil
}
