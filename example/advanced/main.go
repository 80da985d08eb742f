package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/raglite"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
)

const sampleContent1 = `This is a comprehensive document about vector databases and their applications.

Vector databases store high dimensional embeddings and answer nearest neighbor queries.
They power semantic search, recommendation systems and retrieval augmented generation.

PostgreSQL with the pgvector extension supports both HNSW and IVFFlat indexes.
HNSW gives better recall at higher build cost, IVFFlat builds faster on large datasets.`

const sampleContent2 = `Machine learning is transforming how we process and retrieve information.

Vector embeddings capture semantic meaning of text, enabling similarity-based search.
Hypothetical document embeddings improve retrieval by searching with a generated answer
instead of the raw question.

Reranking retrieved candidates with lexical or model-based relevance scores
improves precision over plain vector similarity.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "postgres",
		Password: "postgres",
		DBName:   "raglite_test",
		SSLMode:  "disable",
	}

	// This example compares all retrieval modes, which needs a generation model
	config := model.ConfigFromEnv()
	if config.APIKey == "" {
		log.Fatal("OPENAI_API_KEY is required for the mode comparison example")
	}

	r, err := raglite.NewRAG(dbConfig, config)
	if err != nil {
		log.Fatalf("Failed to create rag instance: %v", err)
	}
	defer r.Close()

	if err := r.UseOpenAI(); err != nil {
		log.Fatalf("Failed to set up OpenAI: %v", err)
	}

	// Process and insert multiple documents
	docs := []*model.Document{
		{
			Title:   "Introduction to Vector Databases",
			Source:  "vector_databases.md",
			Content: sampleContent1,
			Metadata: model.Metadata{
				"author": "Example Author",
				"topic":  "vector databases",
			},
		},
		{
			Title:   "Machine Learning for Information Retrieval",
			Source:  "ml_retrieval.md",
			Content: sampleContent2,
			Metadata: model.Metadata{
				"author": "Example Author",
				"topic":  "machine learning",
			},
		},
	}

	ctx := context.Background()

	fmt.Println("=== Ingesting Documents ===")
	for _, doc := range docs {
		numChunks, err := r.ProcessAndInsertDocument(ctx, doc)
		if err != nil {
			log.Fatalf("Failed to process and insert document %q: %v", doc.Title, err)
		}
		fmt.Printf("Document %q (RID: %s): %d chunks\n", doc.Title, doc.RID, numChunks)
	}

	// Log all answers under one session
	sessionID, err := r.StartSession(ctx, "example")
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	fmt.Printf("\nSession: %s\n", sessionID)

	question := "How does reranking improve retrieval quality?"
	fmt.Printf("Question: %s\n", question)

	// 1. Single mode answers
	fmt.Println("\n=== 1. Individual Retrieval Modes ===")
	for _, method := range model.AllRetrievalMethods() {
		result, err := r.Ask(ctx, question, method)
		if err != nil {
			log.Fatalf("Ask with method %q failed: %v", method, err)
		}
		fmt.Printf("\n[%s] confidence %.2f, %.2fs, %d sources\n",
			method, result.Confidence, result.ResponseTime, result.SourceCount)
		fmt.Printf("  %s\n", result.Answer)
	}

	// 2. Compare all modes in one call
	fmt.Println("\n=== 2. Mode Comparison ===")
	comparison, err := r.CompareModes(ctx, question)
	if err != nil {
		log.Fatalf("CompareModes failed: %v", err)
	}

	fmt.Println("\nConfidence ranking (best first):")
	for i, ranking := range comparison.ConfidenceRanking {
		fmt.Printf("  %d. %-12s %.2f\n", i+1, ranking.Method, ranking.Value)
	}
	fmt.Println("\nSpeed ranking (fastest first):")
	for i, ranking := range comparison.SpeedRanking {
		fmt.Printf("  %d. %-12s %.2fs\n", i+1, ranking.Method, ranking.Value)
	}

	// 3. Inspect the logged session
	fmt.Println("\n=== 3. Session Log ===")
	logs, err := r.Logs.SelectQALogs(ctx, sessionID, 10)
	if err != nil {
		log.Fatalf("Failed to read session logs: %v", err)
	}
	fmt.Printf("Logged %d answers in this session\n", len(logs))

	// 4. Demonstrate index type switching
	fmt.Println("\n=== 4. Changing Index Type ===")
	fmt.Println("Switching to IVFFlat index...")
	err = r.ChangeIndexType(ctx, "ivfflat", map[string]interface{}{
		"lists": 100,
	})
	if err != nil {
		log.Printf("Warning: Index change failed (this is okay for small datasets): %v", err)
	} else {
		fmt.Println("Successfully switched to IVFFlat index")
	}

	fmt.Println("Switching back to HNSW index...")
	err = r.ChangeIndexType(ctx, "hnsw", map[string]interface{}{
		"m":               16,
		"ef_construction": 64,
	})
	if err != nil {
		log.Printf("Warning: Index change failed: %v", err)
	} else {
		fmt.Println("Successfully switched to HNSW index")
	}

	fmt.Println("\n=== Comparison Example Completed Successfully! ===")
}
