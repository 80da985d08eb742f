package raglite

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/core/pipeline"
	"github.com/siherrmann/raglite/core/qa"
	"github.com/siherrmann/raglite/core/retrieval"
	"github.com/siherrmann/raglite/database"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
	loadSql "github.com/siherrmann/raglite/sql"
)

// RAG provides a unified interface to ingestion, retrieval and question
// answering over a pgvector-backed document store
type RAG struct {
	DB        *helper.Database
	Chunks    *database.ChunksDBHandler
	Documents *database.DocumentsDBHandler
	Logs      *database.LogsDBHandler
	Pipeline  *pipeline.Pipeline // Optional chunking pipeline
	Providers *llm.Registry      // Generation providers, first registered is the default
	Engine    *retrieval.Engine  // Vector similarity search over the chunk store
	Chain     *qa.Chain          // Question answering chain, set up by UseOpenAI
	// Configuration and logging
	config *model.Config
	log    *slog.Logger
}

// NewRAG creates a new RAG instance with all database handlers initialized.
// Ingestion and answering need a pipeline and a provider on top, see
// UseOpenAI and UseDefaultPipeline.
func NewRAG(dbConfig *helper.DatabaseConfiguration, config *model.Config) (*RAG, error) {
	if config == nil {
		config = model.DefaultConfig()
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("raglite", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (documents first, then chunks)
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	logs, err := database.NewLogsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create logs handler", err)
	}

	return &RAG{
		DB:        db,
		Chunks:    chunks,
		Documents: documents,
		Logs:      logs,
		Providers: llm.NewRegistry(),
		config:    config,
		log:       logger,
	}, nil
}

// Close closes the database connection
func (r *RAG) Close() error {
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the chunking pipeline for document processing
func (r *RAG) SetPipeline(p *pipeline.Pipeline) error {
	if p == nil {
		return helper.NewError("set pipeline", fmt.Errorf("pipeline is nil"))
	}
	r.Pipeline = p

	engine, err := retrieval.NewEngine(r.Chunks, p.Embedder)
	if err != nil {
		return helper.NewError("create retrieval engine", err)
	}
	r.Engine = engine

	return nil
}

// UseDefaultPipeline sets up a fully local pipeline with the sliding window
// chunker and the all-MiniLM-L6-v2 embedding model (384 dimensions).
// No generation provider is configured, so only ingestion and Search work.
func (r *RAG) UseDefaultPipeline() error {
	chunker := pipeline.WindowChunker(r.config.ChunkSize, r.config.ChunkOverlap)
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	return r.SetPipeline(pipeline.NewPipeline(chunker, embedder))
}

// UseOpenAI wires the OpenAI API for both embeddings and answer generation
// and sets up the question answering chain. The API key, base URL and model
// names come from the configuration.
func (r *RAG) UseOpenAI() error {
	if r.config.APIKey == "" {
		return helper.NewError("configure openai", fmt.Errorf("api key is empty"))
	}

	client := llm.NewOpenAIClient(r.config.APIKey, r.config.BaseURL)

	provider, err := llm.NewOpenAIProvider(client, r.config.ModelName, r.config.RequestTimeout)
	if err != nil {
		return helper.NewError("create openai provider", err)
	}
	err = r.Providers.Register("openai", provider)
	if err != nil {
		return helper.NewError("register openai provider", err)
	}

	embedder, err := pipeline.NewOpenAIEmbedder(client, r.config.EmbeddingModel, r.config.EmbeddingDim, r.config.RequestTimeout, r.log)
	if err != nil {
		return helper.NewError("create openai embedder", err)
	}

	chunker := pipeline.WindowChunker(r.config.ChunkSize, r.config.ChunkOverlap)
	p := pipeline.NewPipeline(chunker, embedder.EmbedFunc())
	p.SetBatchEmbedder(embedder.BatchEmbedFunc())

	err = r.SetPipeline(p)
	if err != nil {
		return err
	}

	return r.initAnswering(provider)
}

// UseProvider sets up the question answering chain with a custom generation
// provider. A pipeline has to be set first, its embedder drives retrieval.
func (r *RAG) UseProvider(name string, provider llm.Provider) error {
	if r.Engine == nil {
		return helper.NewError("configure provider", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	err := r.Providers.Register(name, provider)
	if err != nil {
		return helper.NewError("register provider", err)
	}

	return r.initAnswering(provider)
}

// initAnswering builds the strategies and the chain around the provider
func (r *RAG) initAnswering(provider llm.Provider) error {
	expander, err := retrieval.NewExpander(provider, r.log)
	if err != nil {
		return helper.NewError("create hyde expander", err)
	}
	reranker := retrieval.NewReranker(provider, r.log)

	strategies, err := retrieval.NewStrategies(r.Engine, expander, reranker)
	if err != nil {
		return helper.NewError("create retrieval strategies", err)
	}

	synthesizer, err := qa.NewSynthesizer(provider, r.config, r.log)
	if err != nil {
		return helper.NewError("create synthesizer", err)
	}

	queryConfig := model.DefaultQueryConfig()
	queryConfig.TopK = r.config.TopK

	chain, err := qa.NewChain(strategies, synthesizer, retrieval.NewEstimator(r.config.TopK), queryConfig, r.log)
	if err != nil {
		return helper.NewError("create chain", err)
	}
	r.Chain = chain

	return nil
}

// StartSession creates a conversation for the user and logs every following
// answer under it
func (r *RAG) StartSession(ctx context.Context, userID string) (string, error) {
	if r.Chain == nil {
		return "", helper.NewError("start session", fmt.Errorf("answering not configured, use UseOpenAI() or UseProvider() first"))
	}

	conversation, err := r.Logs.CreateConversation(ctx, userID)
	if err != nil {
		return "", helper.NewError("create conversation", err)
	}

	r.Chain.EnableLogging(r.Logs, conversation.SessionID)

	return conversation.SessionID, nil
}

// ProcessAndInsertDocument processes a document by:
// 1. Inserting the document metadata (without content)
// 2. Processing the content into chunks using the pipeline
// 3. Inserting all chunks with the document ID
// The document's Content field is used for processing but not stored in the database.
// Returns the number of chunks inserted and any error encountered.
func (r *RAG) ProcessAndInsertDocument(ctx context.Context, doc *model.Document) (int, error) {
	if r.Pipeline == nil {
		return 0, helper.NewError("process document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	if doc.Content == "" {
		return 0, helper.NewError("process document", fmt.Errorf("document content is empty"))
	}

	// Store content temporarily and clear it before DB insert
	content := doc.Content
	doc.Content = ""

	// Insert document metadata
	if err := r.Documents.InsertDocument(doc); err != nil {
		return 0, helper.NewError("insert document", err)
	}

	r.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title))

	// Process content into chunks
	sourceFile := doc.Source
	if sourceFile == "" {
		sourceFile = fmt.Sprintf("doc_%s", doc.RID.String())
	}
	chunks, err := r.Pipeline.Process(ctx, content, sourceFile)
	if err != nil {
		return 0, helper.NewError("process chunks", err)
	}

	r.log.Info("Processed document into chunks", slog.Int("num_chunks", len(chunks)), slog.String("document_id", doc.RID.String()))

	// Insert all chunks
	for i, chunk := range chunks {
		chunk.DocumentID = doc.ID
		if err := r.Chunks.InsertChunk(chunk); err != nil {
			return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}

	return len(chunks), nil
}

// Search performs vector similarity search without answer generation
func (r *RAG) Search(ctx context.Context, query string, limit int, threshold float64) ([]*model.Chunk, error) {
	if r.Engine == nil {
		return nil, helper.NewError("vector search", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	return r.Engine.Search(ctx, query, limit, threshold)
}

// Ask answers a question with the given retrieval method
func (r *RAG) Ask(ctx context.Context, question string, method model.RetrievalMethod) (*model.AnswerResult, error) {
	if r.Chain == nil {
		return nil, helper.NewError("ask", fmt.Errorf("answering not configured, use UseOpenAI() or UseProvider() first"))
	}

	return r.Chain.Ask(ctx, question, method)
}

// AskBasic answers a question with plain vector similarity retrieval
func (r *RAG) AskBasic(ctx context.Context, question string) (*model.AnswerResult, error) {
	return r.Ask(ctx, question, model.RetrievalMethodBasic)
}

// AskHyde answers a question with hypothetical answer expansion
func (r *RAG) AskHyde(ctx context.Context, question string) (*model.AnswerResult, error) {
	return r.Ask(ctx, question, model.RetrievalMethodHyde)
}

// AskRerank answers a question with lexical reranking over a widened candidate set
func (r *RAG) AskRerank(ctx context.Context, question string) (*model.AnswerResult, error) {
	return r.Ask(ctx, question, model.RetrievalMethodRerank)
}

// AskEnhanced answers a question combining hypothetical answer expansion and reranking
func (r *RAG) AskEnhanced(ctx context.Context, question string) (*model.AnswerResult, error) {
	return r.Ask(ctx, question, model.RetrievalMethodEnhanced)
}

// CompareModes answers the question with every retrieval method and ranks the
// results by confidence and speed
func (r *RAG) CompareModes(ctx context.Context, question string) (*model.Comparison, error) {
	if r.Chain == nil {
		return nil, helper.NewError("compare modes", fmt.Errorf("answering not configured, use UseOpenAI() or UseProvider() first"))
	}

	return r.Chain.CompareModes(ctx, question)
}

// CountChunks returns the number of stored chunks
func (r *RAG) CountChunks(ctx context.Context) (int64, error) {
	return r.Chunks.CountChunks(ctx)
}

// Reset deletes all stored chunks
func (r *RAG) Reset(ctx context.Context) error {
	return r.Chunks.Reset(ctx)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (r *RAG) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return r.Chunks.ChangeIndexType(ctx, indexType, params)
}
