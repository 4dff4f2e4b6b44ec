package retrieval

// #region imports
import (
	"os"
	"strconv"

	"github.com/medassist/clinical-gateway/internal/index"
)

// #endregion

// #region hit

// Hit is one fused, role-visible retrieval result. Score is the fused
// reciprocal-rank score used for ordering; Relevance is the raw dense
// cosine similarity (zero for lexical-only hits), which is the value
// callers should threshold on.
type Hit struct {
	ID        string
	Score     float64
	Relevance float64
	Text      string
	Meta      index.ChunkMeta
}

// #endregion

// #region config

// Config holds hybrid search parameters.
type Config struct {
	KDense   int
	KLexical int
	FinalK   int
	RRFK     int
	Tenant   string
}

// DefaultConfig returns the standard candidate bounds. The tenant comes
// from deployment config (CLINIC_TENANT), never from the request.
func DefaultConfig() Config {
	cfg := Config{
		KDense:   20,
		KLexical: 20,
		FinalK:   5,
		RRFK:     60,
		Tenant:   "global",
	}
	if v := os.Getenv("CLINIC_TENANT"); v != "" {
		cfg.Tenant = v
	}
	if v := os.Getenv("RETRIEVAL_FINAL_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FinalK = n
		}
	}
	return cfg
}

// #endregion

// #region reranker

// Reranker is a secondary scoring pass over the fused candidate set.
type Reranker interface {
	Rerank(query string, hits []Hit) []Hit
}

// NoopReranker passes candidates through unchanged. A cross-encoder can
// be slotted in here later without touching fusion.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ string, hits []Hit) []Hit { return hits }

// #endregion

// #region searcher

// Searcher is the slice of the vector index the engine needs.
type Searcher interface {
	Search(vec []float32, topK int, filter index.Filter) []index.Hit
	Lexical(query string, topK int, filter index.Filter) []index.Hit
}

// #endregion
