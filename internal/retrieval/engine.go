package retrieval

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/medassist/clinical-gateway/internal/access"
	"github.com/medassist/clinical-gateway/internal/embed"
	"github.com/medassist/clinical-gateway/internal/index"
)

// #endregion

// #region engine

// Engine runs hybrid search: dense and lexical candidate lists fetched
// concurrently, fused by reciprocal rank, then reranked and truncated.
type Engine struct {
	idx      Searcher
	embedder embed.Embedder
	rerank   Reranker
	cfg      Config
}

// New builds an Engine. A nil reranker falls back to passthrough.
func New(idx Searcher, embedder embed.Embedder, rerank Reranker, cfg Config) *Engine {
	if rerank == nil {
		rerank = NoopReranker{}
	}
	return &Engine{idx: idx, embedder: embedder, rerank: rerank, cfg: cfg}
}

// Search returns at most cfg.FinalK hits visible to the given role.
// Every candidate passes the tenant and access-level filter before it can
// enter either candidate list; fusion never widens visibility.
func (e *Engine) Search(ctx context.Context, query string, role access.Role, department string, extra map[string]string) ([]Hit, error) {
	norm := strings.ToLower(strings.TrimSpace(query))
	if norm == "" {
		return nil, nil
	}

	vec, err := e.embedder.Embed(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := e.buildFilter(role, department, extra)

	var dense, lexical []index.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		dense = e.idx.Search(vec, e.cfg.KDense, filter)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		lexical = e.idx.Lexical(norm, e.cfg.KLexical, filter)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("candidate fetch: %w", err)
	}

	fused := e.fuse(dense, lexical)
	fused = e.rerank.Rerank(norm, fused)
	if len(fused) > e.cfg.FinalK {
		fused = fused[:e.cfg.FinalK]
	}
	log.Printf("[RETRIEVAL] query ok: dense=%d lexical=%d fused=%d", len(dense), len(lexical), len(fused))
	return fused, nil
}

// #endregion

// #region filter

// buildFilter composes tenant, access-level, department and attribute
// checks into a single predicate. The tenant check is an equality test
// against deployment config; a chunk with no tenant never matches.
func (e *Engine) buildFilter(role access.Role, department string, extra map[string]string) index.Filter {
	allowed := make(map[string]bool)
	for _, lvl := range access.VisibilityFor(role) {
		allowed[string(lvl)] = true
	}
	return func(m index.ChunkMeta) bool {
		if m.Tenant != e.cfg.Tenant {
			return false
		}
		if !allowed[m.AccessLevel] {
			return false
		}
		if department != "" && m.Department != department {
			return false
		}
		for k, v := range extra {
			if m.Extra[k] != v {
				return false
			}
		}
		return true
	}
}

// #endregion

// #region fusion

// fuse merges the candidate lists by reciprocal rank: each list
// contributes 1/(k+rank+1) to a chunk's score. A chunk present in both
// lists accumulates both contributions. First-seen order breaks ties.
// Dense cosine similarity is carried through as Relevance so callers
// can threshold on it independently of the fused ordering score.
func (e *Engine) fuse(dense, lexical []index.Hit) []Hit {
	scores := make(map[string]float64)
	relevance := make(map[string]float64)
	byID := make(map[string]index.Hit)
	var order []string
	add := func(list []index.Hit, isDense bool) {
		for rank, h := range list {
			if _, seen := scores[h.ID]; !seen {
				order = append(order, h.ID)
				byID[h.ID] = h
			}
			scores[h.ID] += 1.0 / float64(e.cfg.RRFK+rank+1)
			if isDense {
				relevance[h.ID] = float64(h.Score)
			}
		}
	}
	add(dense, true)
	add(lexical, false)

	out := make([]Hit, 0, len(order))
	for _, id := range order {
		h := byID[id]
		out = append(out, Hit{ID: id, Score: scores[id], Relevance: relevance[id], Text: h.Text, Meta: h.Meta})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// #endregion
