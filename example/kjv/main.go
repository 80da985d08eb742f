package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/siherrmann/raglite"
	"github.com/siherrmann/raglite/core/llm"
	"github.com/siherrmann/raglite/helper"
	"github.com/siherrmann/raglite/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const kjvRepoURL = "https://raw.githubusercontent.com/arleym/kjv-markdown/master"

// List of KJV books to download
var kjvBooks = []string{
	"01 - Genesis - KJV.md",
	// "02 - Exodus - KJV.md", "03 - Leviticus - KJV.md",
	// "04 - Numbers - KJV.md", "05 - Deuteronomy - KJV.md",
	// "06 - Joshua - KJV.md", "07 - Judges - KJV.md", "08 - Ruth - KJV.md",
	// "09 - 1 Samuel - KJV.md", "10 - 2 Samuel - KJV.md",
	// "11 - 1 Kings - KJV.md", "12 - 2 Kings - KJV.md",
	// "13 - 1 Chronicles - KJV.md", "14 - 2 Chronicles - KJV.md",
	// "15 - Ezra - KJV.md", "16 - Nehemiah - KJV.md", "17 - Esther - KJV.md",
	// "18 - Job - KJV.md", "19 - Psalms - KJV.md",
	// "20 - Proverbs - KJV.md", "21 - Ecclesiastes - KJV.md",
	// "22 - The Song of Solomon - KJV.md", "23 - Isaiah - KJV.md",
	// "24 - Jeremiah - KJV.md", "25 - Lamentations - KJV.md",
	// "26 - Ezekiel - KJV.md", "27 - Daniel - KJV.md",
	// "28 - Hosea - KJV.md", "29 - Joel - KJV.md", "30 - Amos - KJV.md",
	// "31 - Obadiah - KJV.md", "32 - Jonah - KJV.md",
	// "33 - Micah - KJV.md", "34 - Nahum - KJV.md", "35 - Habakkuk - KJV.md",
	// "36 - Zephaniah - KJV.md", "37 - Haggai - KJV.md",
	// "38 - Zechariah - KJV.md", "39 - Malachi - KJV.md",
	// "40 - Matthew - KJV.md", "41 - Mark - KJV.md", "42 - Luke - KJV.md",
	// "43 - John - KJV.md", "44 - Acts - KJV.md", "45 - Romans - KJV.md",
	// "46 - 1 Corinthians - KJV.md", "47 - 2 Corinthians - KJV.md",
	// "48 - Galatians - KJV.md", "49 - Ephesians - KJV.md",
	// "50 - Philippians - KJV.md", "51 - Colossians - KJV.md",
	// "52 - 1 Thessalonians - KJV.md", "53 - 2 Thessalonians - KJV.md",
	// "54 - 1 Timothy - KJV.md", "55 - 2 Timothy - KJV.md",
	// "56 - Titus - KJV.md", "57 - Philemon - KJV.md", "58 - Hebrews - KJV.md",
	// "59 - James - KJV.md", "60 - 1 Peter - KJV.md",
	// "61 - 2 Peter - KJV.md", "62 - 1 John - KJV.md", "63 - 2 John - KJV.md",
	// "64 - 3 John - KJV.md", "65 - Jude - KJV.md", "66 - Revelation - KJV.md",
}

// startPostgresContainer starts a PostgreSQL container for the KJV example.
// It mounts a volume to persist data between runs, so ingested books survive
// restarts.
func startPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	// Create data directory if it doesn't exist
	dataDir := "./data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create data directory: %w", err)
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for data directory: %w", err)
	}

	// Check if database already exists (data directory has PG_VERSION file)
	pgVersionFile := filepath.Join(absDataDir, "PG_VERSION")
	_, err = os.Stat(pgVersionFile)
	dbExists := err == nil

	// When database already exists, PostgreSQL doesn't re-initialize,
	// so the ready message only appears once instead of twice
	waitOccurrences := 2
	if dbExists {
		waitOccurrences = 1
		fmt.Printf("Using existing persistent database in: %s\n", absDataDir)
	} else {
		fmt.Printf("Creating new persistent database in: %s\n", absDataDir)
	}

	options := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase("database"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(waitOccurrences),
		),
		testcontainers.WithHostConfigModifier(func(hc *container.HostConfig) {
			hc.Mounts = append(hc.Mounts, mount.Mount{
				Type:   mount.TypeBind,
				Source: absDataDir,
				Target: "/var/lib/postgresql/data",
			})
		}),
	}

	pgContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		options...,
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

func downloadBook(bookName string, outputDir string) (string, error) {
	// URL-encode the filename to handle spaces
	encodedName := url.PathEscape(bookName)
	downloadURL := fmt.Sprintf("%s/%s", kjvRepoURL, encodedName)
	resp, err := http.Get(downloadURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", bookName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", bookName, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", bookName, err)
	}

	outputPath := filepath.Join(outputDir, bookName)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", bookName, err)
	}

	return outputPath, nil
}

func main() {
	// Start a PostgreSQL container with persistence
	teardown, dbPort, err := startPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port, the credentials
	// match the persistent container above
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "user",
		Password: "password",
		DBName:   "database",
		SSLMode:  "disable",
	}

	// Local embeddings keep the persisted corpus independent of any API;
	// answering on top is only enabled when an API key is configured
	config := model.ConfigFromEnv()
	config.EmbeddingDim = 384

	r, err := raglite.NewRAG(dbConfig, config)
	if err != nil {
		log.Fatalf("Failed to create rag instance: %v", err)
	}
	defer r.Close()

	fmt.Println("Setting up the local chunking and embedding pipeline...")
	if err := r.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Create temporary directory for downloads
	tmpDir, err := os.MkdirTemp("", "kjv-books-*")
	if err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	fmt.Println("Downloading KJV books from GitHub...")

	// Check existing documents to avoid re-processing
	existingDocs, err := checkExistingDocuments(r)
	if err != nil {
		log.Printf("Warning: could not check existing documents: %v", err)
		existingDocs = make(map[string]bool)
	}

	if len(existingDocs) > 0 {
		fmt.Printf("Found %d existing documents in database\n", len(existingDocs))
	}

	// Download and process each book
	totalChunks := 0
	skipped := 0
	processed := 0
	for i, bookName := range kjvBooks {
		source := fmt.Sprintf("kjv/%s", bookName)

		// Skip if document already exists
		if existingDocs[source] {
			fmt.Printf("Skipping %s (%d/%d) - already processed\n", bookName, i+1, len(kjvBooks))
			skipped++
			continue
		}

		fmt.Printf("Downloading %s (%d/%d)...\n", bookName, i+1, len(kjvBooks))

		// Download the book
		bookPath, err := downloadBook(bookName, tmpDir)
		if err != nil {
			log.Printf("Warning: %v, skipping...", err)
			continue
		}

		// Read the book content
		content, err := os.ReadFile(bookPath)
		if err != nil {
			log.Printf("Warning: failed to read %s, skipping...", bookName)
			continue
		}

		// Create document
		bookTitle := extractBookTitle(bookName)
		doc := &model.Document{
			Title:   bookTitle,
			Source:  source,
			Content: string(content),
			Metadata: model.Metadata{
				"testament": getTestament(bookTitle),
				"book":      bookTitle,
				"source":    "King James Version (KJV)",
			},
		}

		// Process and insert document
		fmt.Printf("Processing %s...\n", bookTitle)
		numChunks, err := r.ProcessAndInsertDocument(ctx, doc)
		if err != nil {
			log.Printf("Warning: failed to process %s: %v, skipping...", bookTitle, err)
			continue
		}

		fmt.Printf("  ✓ Inserted %d chunks from %s\n", numChunks, bookTitle)
		totalChunks += numChunks
		processed++
	}

	fmt.Printf("\n✓ KJV Bible Status:\n")
	fmt.Printf("  - Processed: %d books (%d chunks)\n", processed, totalChunks)
	fmt.Printf("  - Skipped (already in DB): %d books\n", skipped)
	fmt.Printf("  - Total: %d books\n\n", len(kjvBooks))

	question := "What did God create on the first day?"
	fmt.Printf("Question: %q\n", question)
	fmt.Println(strings.Repeat("=", 20))

	// 1. Vector similarity search over the corpus
	fmt.Println("\n1. SIMILARITY SEARCH")
	fmt.Println(strings.Repeat("-", 20))
	chunks, err := r.Search(ctx, question, 5, 0.0)
	if err != nil {
		log.Printf("Search error: %v", err)
	} else {
		printChunks(chunks)
	}

	// 2. Grounded answering, when a generation model is configured
	if config.APIKey != "" {
		fmt.Println("\n2. GROUNDED ANSWER (hyde+rerank)")
		fmt.Println(strings.Repeat("-", 20))

		if err := r.UseProvider("openai", mustOpenAIProvider(config)); err != nil {
			log.Fatalf("Failed to set up provider: %v", err)
		}

		result, err := r.AskEnhanced(ctx, question)
		if err != nil {
			log.Printf("Ask error: %v", err)
		} else {
			fmt.Printf("\nAnswer: %s\n", result.Answer)
			fmt.Printf("Confidence: %.2f | Sources: %d | Time: %.2fs\n",
				result.Confidence, result.SourceCount, result.ResponseTime)
			for _, citation := range result.Citations {
				fmt.Printf("  - %s (chunk %d)\n", citation.Source, citation.ChunkIndex)
			}
		}
	} else {
		fmt.Println("\nSet OPENAI_API_KEY to also generate grounded answers.")
	}

	fmt.Println("\n" + strings.Repeat("=", 20))
	fmt.Println("KJV example complete!")
}

func getBookFromSource(source string) string {
	parts := strings.Split(source, "/")
	if len(parts) >= 2 {
		return extractBookTitle(parts[1])
	}
	return source
}

func mustOpenAIProvider(config *model.Config) llm.Provider {
	client := llm.NewOpenAIClient(config.APIKey, config.BaseURL)
	provider, err := llm.NewOpenAIProvider(client, config.ModelName, config.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to create OpenAI provider: %v", err)
	}
	return provider
}

// checkExistingDocuments queries the database for documents that start with
// "kjv/" and returns a map of source strings for quick lookup.
func checkExistingDocuments(r *raglite.RAG) (map[string]bool, error) {
	docs, err := r.Documents.SelectAllDocuments(nil, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	existingDocs := make(map[string]bool)
	for _, doc := range docs {
		// Check if this is a KJV document
		if strings.HasPrefix(doc.Source, "kjv/") {
			existingDocs[doc.Source] = true
		}
	}

	return existingDocs, nil
}

func getTestament(bookTitle string) string {
	// List of Old Testament books
	oldTestament := map[string]bool{
		"Genesis": true, "Exodus": true, "Leviticus": true, "Numbers": true, "Deuteronomy": true,
		"Joshua": true, "Judges": true, "Ruth": true, "1 Samuel": true, "2 Samuel": true,
		"1 Kings": true, "2 Kings": true, "1 Chronicles": true, "2 Chronicles": true,
		"Ezra": true, "Nehemiah": true, "Esther": true, "Job": true, "Psalms": true,
		"Proverbs": true, "Ecclesiastes": true, "The Song of Solomon": true, "Isaiah": true,
		"Jeremiah": true, "Lamentations": true, "Ezekiel": true, "Daniel": true,
		"Hosea": true, "Joel": true, "Amos": true, "Obadiah": true, "Jonah": true,
		"Micah": true, "Nahum": true, "Habakkuk": true, "Zephaniah": true, "Haggai": true,
		"Zechariah": true, "Malachi": true,
	}

	if oldTestament[bookTitle] {
		return "Old Testament"
	}
	return "New Testament"
}

func extractBookTitle(filename string) string {
	// Extract book name from format like "01 - Genesis - KJV.md"
	parts := strings.Split(filename, " - ")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSuffix(filename, ".md")
}

func printChunks(chunks []*model.Chunk) {
	if len(chunks) == 0 {
		fmt.Println("No results found")
		return
	}

	for i, chunk := range chunks {
		book := getBookFromSource(chunk.SourceFile())

		similarity := 0.0
		if chunk.Similarity != nil {
			similarity = *chunk.Similarity
		}
		fmt.Printf("\n[%d] Similarity: %.4f | Book: %s\n", i+1, similarity, book)

		// Print content (truncated if too long)
		content := chunk.Content
		if len(content) > 300 {
			content = content[:300] + "..."
		}
		fmt.Printf("    %s\n", strings.ReplaceAll(content, "\n", "\n    "))
	}
}
