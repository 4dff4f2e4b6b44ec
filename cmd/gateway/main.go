package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/medassist/clinical-gateway/internal/access"
	"github.com/medassist/clinical-gateway/internal/audit"
	"github.com/medassist/clinical-gateway/internal/embed"
	"github.com/medassist/clinical-gateway/internal/index"
	"github.com/medassist/clinical-gateway/internal/llm"
	"github.com/medassist/clinical-gateway/internal/notify"
	"github.com/medassist/clinical-gateway/internal/pipeline"
	"github.com/medassist/clinical-gateway/internal/retrieval"
	"github.com/medassist/clinical-gateway/internal/structured"
)

// #region main
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	dbPath := envOr("CLINIC_DB", "clinical_gateway.db")
	indexDir := envOr("INDEX_DIR", "index_data")
	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	embedDim := 768
	llmModel := envOr("LLM_MODEL", "llama3")
	roleName := envOr("GATEWAY_ROLE", "patient")
	requesterID := envOr("GATEWAY_USER", "local-operator")

	if err := access.ValidateVisibility(); err != nil {
		log.Fatalf("visibility table invalid: %v", err)
	}
	role, err := access.ParseRole(roleName)
	if err != nil {
		log.Fatalf("GATEWAY_ROLE: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		log.Fatalf("failed to enable WAL: %v", err)
	}

	ctx := context.Background()
	notifier := notify.NewWebhook()

	records := structured.NewStore(db)
	if err := records.EnsureSchema(ctx); err != nil {
		log.Fatalf("records schema: %v", err)
	}
	ledger := audit.NewLedger(db, notifier)
	if err := ledger.EnsureSchema(ctx); err != nil {
		log.Fatalf("audit schema: %v", err)
	}

	embedder := embed.NewOllamaEmbedder(embedModel, embedDim)
	ix := index.New(embedder, indexDir)
	if err := ix.Load(); err != nil {
		log.Fatalf("index load: %v", err)
	}
	if ok, reason := ix.VerifyIntegrity(); !ok {
		log.Printf("index integrity failed (%s), rebuilding...", reason)
		if err := ix.Rebuild(ctx); err != nil {
			log.Fatalf("index rebuild: %v", err)
		}
	}

	engine := retrieval.New(ix, embedder, retrieval.NoopReranker{}, retrieval.DefaultConfig())
	inferencer := llm.NewOllamaClient(llmModel).ForRole(role)

	p := pipeline.New(records, engine, inferencer, ledger, notifier, pipeline.DefaultConfig())

	fmt.Println("Clinical Gateway ready.")
	fmt.Printf("  DB: %s | Index: %s (%d chunks) | Role: %s\n", dbPath, indexDir, ix.Count(), role)
	fmt.Println("Type a query (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			break
		}

		res := p.Run(ctx, pipeline.Query{
			Text:        query,
			Role:        role,
			RequesterID: requesterID,
		})

		fmt.Printf("\n%s\n", res.Response)
		if len(res.Citations) > 0 {
			fmt.Printf("Sources: %s\n", strings.Join(res.Citations, ", "))
		}
		fmt.Printf("[%s/%s] structured=%v retrieved=%d %dms\n\n",
			res.Classification, res.Status, res.StructuredUsed, res.RetrievedCount, res.ElapsedMs)
	}

	if err := ix.Persist(); err != nil {
		log.Printf("index persist on exit failed: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
