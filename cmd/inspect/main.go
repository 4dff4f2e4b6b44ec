package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/medassist/clinical-gateway/internal/audit"
	"github.com/medassist/clinical-gateway/internal/embed"
	"github.com/medassist/clinical-gateway/internal/index"
	"github.com/medassist/clinical-gateway/internal/notify"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to clinical_gateway.db")
	indexDir := flag.String("index", "", "path to the vector index directory (optional)")
	last := flag.Int("last", 20, "show N most recent audit records")
	verify := flag.Bool("verify", false, "verify the full audit hash chain")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/clinical_gateway.db [--index dir] [--last N] [--verify] [--json]")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	ledger := audit.NewLedger(db, notify.Noop{})

	if *verify {
		if err := runVerify(ctx, ledger, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runTail(ctx, ledger, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if *indexDir != "" {
		if err := runIndexHealth(*indexDir, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region tail-mode

type auditRow struct {
	Seq       int64    `json:"seq"`
	ID        string   `json:"id"`
	Requester string   `json:"requester"`
	Role      string   `json:"role"`
	Risk      string   `json:"risk_level"`
	Query     string   `json:"query"`
	DocIDs    []string `json:"doc_ids,omitempty"`
	CurrHash  string   `json:"curr_hash"`
	CreatedAt string   `json:"created_at"`
}

func runTail(ctx context.Context, ledger *audit.Ledger, last int, jsonOut bool) error {
	recs, err := ledger.Tail(ctx, last)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no audit records found")
		return nil
	}

	rows := make([]auditRow, len(recs))
	for i, r := range recs {
		rows[i] = auditRow{
			Seq:       r.Seq,
			ID:        r.ID,
			Requester: r.Requester,
			Role:      string(r.Role),
			Risk:      r.RiskLevel,
			Query:     r.Query,
			DocIDs:    r.DocIDs,
			CurrHash:  r.CurrHash,
			CreatedAt: r.Timestamp.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-5s  %-8s  %-12s  %-8s  %-40s  %s\n",
		"Seq", "Hash", "Requester", "Risk", "Query", "Time")
	fmt.Printf("%-5s+-%-8s+-%-12s+-%-8s+-%-40s+-%s\n",
		"-----", "--------", "------------", "--------", strings.Repeat("-", 40), "--------------------")
	for _, r := range rows {
		fmt.Printf("%-5d  %-8s  %-12s  %-8s  %-40s  %s\n",
			r.Seq, shortID(r.CurrHash), r.Requester, r.Risk, clip(r.Query, 40), r.CreatedAt)
	}
	return nil
}

// #endregion tail-mode

// #region verify-mode

func runVerify(ctx context.Context, ledger *audit.Ledger, jsonOut bool) error {
	ok, err := ledger.VerifyChain(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]bool{"chain_valid": ok})
	}
	if ok {
		fmt.Println("audit chain: VALID")
		return nil
	}
	fmt.Println("audit chain: TAMPER DETECTED")
	os.Exit(1)
	return nil
}

// #endregion verify-mode

// #region index-health

func runIndexHealth(dir string, jsonOut bool) error {
	// Dimension comes from the persisted header; the embedder is never
	// called on this read-only path.
	ix := index.New(nullEmbedder{}, dir)
	if err := ix.Load(); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	h := ix.Healthz()

	if jsonOut {
		return printJSON(h)
	}
	fmt.Printf("\nIndex health:\n")
	fmt.Printf("  Ready:      %v\n", h.Ready)
	fmt.Printf("  Rows:       %d\n", h.Rows)
	fmt.Printf("  Metadata:   %d\n", h.MetadataCount)
	fmt.Printf("  Integrity:  %v", h.IntegrityOK)
	if !h.IntegrityOK {
		fmt.Printf(" (%s)", h.IntegrityDetail)
	}
	fmt.Println()
	return nil
}

type nullEmbedder struct{}

func (nullEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("inspect is read-only")
}
func (nullEmbedder) Dimension() int { return 0 }

var _ embed.Embedder = nullEmbedder{}

// #endregion index-health

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n-1] + "…"
	}
	return s
}

// #endregion output
