package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/medassist/clinical-gateway/internal/embed"
	"github.com/medassist/clinical-gateway/internal/index"
)

// #region main

func main() {
	srcDir := flag.String("src", "", "directory of .txt/.md knowledge files to ingest")
	indexDir := flag.String("index", "index_data", "vector index directory")
	tenant := flag.String("tenant", "global", "tenant the chunks belong to")
	accessLevel := flag.String("access", "public", "access level required to read the chunks")
	department := flag.String("department", "", "department scope (optional)")
	chunkSize := flag.Int("chunk", 1200, "approximate chunk size in characters")
	flag.Parse()

	if *srcDir == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest --src docs/ [--index dir] [--tenant t] [--access level] [--department d]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	embedder := embed.NewOllamaEmbedder(embedModel, 768)

	ix := index.New(embedder, *indexDir)
	if err := ix.Load(); err != nil {
		log.Fatalf("index load: %v", err)
	}

	ctx := context.Background()
	added, skipped := 0, 0

	err := filepath.WalkDir(*srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		source := filepath.Base(path)
		for _, chunk := range splitChunks(string(raw), *chunkSize) {
			ok, err := ix.Add(ctx, chunk, index.ChunkMeta{
				Title:       source,
				Source:      source,
				Department:  *department,
				AccessLevel: *accessLevel,
				Tenant:      *tenant,
				DocType:     strings.TrimPrefix(ext, "."),
			})
			if err != nil {
				return fmt.Errorf("add chunk from %s: %w", source, err)
			}
			if ok {
				added++
			} else {
				skipped++
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}

	if err := ix.Persist(); err != nil {
		log.Fatalf("persist: %v", err)
	}
	fmt.Printf("ingest complete: %d chunks added, %d skipped (empty/duplicate), index now %d rows\n",
		added, skipped, ix.Count())
}

// #endregion main

// #region chunking

// splitChunks breaks text into roughly size-character pieces along
// paragraph boundaries, falling back to a hard cut for oversized
// paragraphs.
func splitChunks(text string, size int) []string {
	paras := strings.Split(text, "\n\n")
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for len(p) > size {
			flush()
			cut := size
			if i := strings.LastIndex(p[:size], " "); i > 0 {
				cut = i
			}
			chunks = append(chunks, strings.TrimSpace(p[:cut]))
			p = strings.TrimSpace(p[cut:])
		}
		if cur.Len()+len(p)+2 > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()
	return chunks
}

// #endregion chunking

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
