package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/raglite"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
)

const sampleContent = `This is a sample document about retrieval augmented generation.

Retrieval augmented generation grounds language model answers in stored documents.
Documents are split into chunks, embedded and stored in a vector database.

PostgreSQL with the pgvector extension can be used as the vector store.
At query time the most similar chunks are retrieved and handed to the model as context.

Grounding answers in retrieved chunks reduces hallucination and makes every answer
traceable back to its sources through citations.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "postgres",
		Password: "postgres",
		DBName:   "raglite_test",
		SSLMode:  "disable",
	}

	// Configuration from environment (.env supported); the embedding dimension
	// has to match the local all-MiniLM-L6-v2 model when no API key is set
	config := model.ConfigFromEnv()
	if config.APIKey == "" {
		config.EmbeddingDim = 384
	}

	r, err := raglite.NewRAG(dbConfig, config)
	if err != nil {
		log.Fatalf("Failed to create rag instance: %v", err)
	}
	defer r.Close()

	// With an API key the OpenAI pipeline and answering chain are used,
	// otherwise everything runs locally and only search is available
	answering := config.APIKey != ""
	if answering {
		if err := r.UseOpenAI(); err != nil {
			log.Fatalf("Failed to set up OpenAI: %v", err)
		}
	} else {
		fmt.Println("OPENAI_API_KEY not set, running local ingestion and search only")
		if err := r.UseDefaultPipeline(); err != nil {
			log.Fatalf("Failed to set up pipeline: %v", err)
		}
	}

	// Create document with content
	doc := &model.Document{
		Title:   "Introduction to Retrieval Augmented Generation",
		Source:  "basic_example.md",
		Content: sampleContent,
		Metadata: model.Metadata{
			"author": "Example Author",
			"topic":  "retrieval augmented generation",
		},
	}

	ctx := context.Background()

	// Process and insert document in one call
	fmt.Println("Ingesting document...")
	numChunks, err := r.ProcessAndInsertDocument(ctx, doc)
	if err != nil {
		log.Fatalf("Failed to process and insert document: %v", err)
	}
	fmt.Printf("Document inserted with ID: %s\n", doc.RID)
	fmt.Printf("Inserted %d chunks\n", numChunks)

	question := "How does retrieval augmented generation reduce hallucination?"
	fmt.Printf("\nQuestion: %s\n", question)

	if answering {
		// Answer the question grounded in the stored chunks
		result, err := r.AskBasic(ctx, question)
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}

		fmt.Printf("\nAnswer: %s\n", result.Answer)
		fmt.Printf("Confidence: %.2f | Sources: %d | Time: %.2fs\n",
			result.Confidence, result.SourceCount, result.ResponseTime)
		for i, citation := range result.Citations {
			fmt.Printf("\n--- Citation %d ---\n", i+1)
			fmt.Printf("Source: %s (chunk %d)\n", citation.Source, citation.ChunkIndex)
			fmt.Printf("Content: %s\n", citation.Content)
		}
	} else {
		// Plain vector similarity search
		chunks, err := r.Search(ctx, question, 5, 0.0)
		if err != nil {
			log.Fatalf("Failed to search: %v", err)
		}

		fmt.Printf("\nFound %d chunks:\n", len(chunks))
		for i, chunk := range chunks {
			fmt.Printf("\n--- Result %d ---\n", i+1)
			if chunk.Similarity != nil {
				fmt.Printf("Similarity: %.4f\n", *chunk.Similarity)
			}
			fmt.Printf("Content: %s\n", chunk.Content)
		}
	}

	fmt.Println("\nBasic example completed successfully!")
}
