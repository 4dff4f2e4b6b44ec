package index

// #region imports
import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/clinical-gateway/internal/embed"
)

// #endregion

// #region index-struct

// Index is a thread-safe nearest-neighbor store over embedded text chunks.
// Vectors and metadata are parallel slices; their lengths must stay equal
// at all times. Searches share the read lock; every mutating operation
// (Add, Rebuild, Persist, Load) additionally holds wmu for its full
// duration, so a rebuild can never overwrite a concurrently added chunk.
type Index struct {
	wmu      sync.Mutex
	mu       sync.RWMutex
	embedder embed.Embedder
	dim      int
	dir      string

	vectors [][]float32
	meta    []ChunkMeta
	hashes  map[string]bool
}

// New creates an empty index persisting under dir.
func New(embedder embed.Embedder, dir string) *Index {
	return &Index{
		embedder: embedder,
		dim:      embedder.Dimension(),
		dir:      dir,
		hashes:   make(map[string]bool),
	}
}

// #endregion

// #region add

// Add embeds text and stores it with meta. Returns false (and no error)
// when the text is empty or a duplicate by content hash.
func (ix *Index) Add(ctx context.Context, text string, meta ChunkMeta) (bool, error) {
	if strings.TrimSpace(text) == "" {
		log.Printf("[INDEX] rejected empty text")
		return false, nil
	}

	ix.wmu.Lock()
	defer ix.wmu.Unlock()

	hash := contentHash(text)
	ix.mu.RLock()
	dup := ix.hashes[hash]
	ix.mu.RUnlock()
	if dup {
		log.Printf("[INDEX] duplicate skipped (%s…)", hash[:12])
		return false, nil
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed chunk: %w", err)
	}
	if len(vec) != ix.dim {
		return false, fmt.Errorf("embedding dimension %d, index expects %d", len(vec), ix.dim)
	}

	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.Source == "" {
		meta.Source = "unknown"
	}
	meta.Hash = hash
	meta.Text = text
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors = append(ix.vectors, vec)
	ix.meta = append(ix.meta, meta)
	ix.hashes[hash] = true
	return true, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// #endregion

// #region search

// Search returns the topK chunks most similar to vec, restricted to
// chunks accepted by filter. Similarity is the inner product, which
// equals cosine similarity because stored vectors are L2-normalized.
func (ix *Index) Search(vec []float32, topK int, filter Filter) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if topK <= 0 || len(ix.vectors) == 0 {
		return nil
	}

	var hits []Hit
	for i, row := range ix.vectors {
		m := ix.meta[i]
		if filter != nil && !filter(m) {
			continue
		}
		hits = append(hits, Hit{ID: m.ID, Score: dot(vec, row), Text: m.Text, Meta: m})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Lexical returns up to topK chunks ranked by how many query tokens they
// contain. Chunks with no token overlap are omitted.
func (ix *Index) Lexical(query string, topK int, filter Filter) []Hit {
	tokens := tokenize(query)
	if len(tokens) == 0 || topK <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []Hit
	for _, m := range ix.meta {
		if filter != nil && !filter(m) {
			continue
		}
		lower := strings.ToLower(m.Text)
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float32(matched) / float32(len(tokens))
		hits = append(hits, Hit{ID: m.ID, Score: score, Text: m.Text, Meta: m})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// #endregion

// #region counts

// Count returns the number of vector rows.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// MetaCount returns the number of metadata records.
func (ix *Index) MetaCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

// #endregion

// #region integrity

// VerifyIntegrity checks row/metadata alignment, vector dimensionality,
// and that a zero-vector probe search completes. It never panics; any
// failure returns a reason and the caller's contract is to Rebuild.
func (ix *Index) VerifyIntegrity() (ok bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			ok, reason = false, fmt.Sprintf("probe_failed: %v", r)
		}
	}()

	ix.mu.RLock()
	rows, metas := len(ix.vectors), len(ix.meta)
	ix.mu.RUnlock()

	if rows != metas {
		return false, fmt.Sprintf("row_mismatch: index=%d meta=%d", rows, metas)
	}

	ix.mu.RLock()
	dim := ix.dim
	for i, row := range ix.vectors {
		if len(row) != dim {
			ix.mu.RUnlock()
			return false, fmt.Sprintf("dim_mismatch: row %d has %d, expected %d", i, len(row), dim)
		}
	}
	ix.mu.RUnlock()

	if rows > 0 {
		probe := make([]float32, dim)
		ix.Search(probe, 1, nil)
	}

	return true, "ok"
}

// Rebuild regenerates the index purely from stored metadata, re-embedding
// every surviving record. Records that fail to re-embed are skipped and
// logged, never silently kept. The rebuilt index is persisted and becomes
// the authoritative state. Holds the mutator lock throughout so an Add
// cannot land between the snapshot and the swap and be lost; readers keep
// serving the old state until the swap.
func (ix *Index) Rebuild(ctx context.Context) error {
	log.Printf("[INDEX] rebuilding from metadata…")

	ix.wmu.Lock()
	defer ix.wmu.Unlock()

	ix.mu.RLock()
	old := make([]ChunkMeta, len(ix.meta))
	copy(old, ix.meta)
	ix.mu.RUnlock()

	var vectors [][]float32
	var meta []ChunkMeta
	hashes := make(map[string]bool)

	for _, m := range old {
		if m.Text == "" {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, m.Text)
		if err != nil {
			log.Printf("[INDEX] skip chunk %s during rebuild: %v", m.ID, err)
			continue
		}
		if len(vec) != ix.dim {
			log.Printf("[INDEX] skip chunk %s during rebuild: dimension %d", m.ID, len(vec))
			continue
		}
		if m.Hash == "" {
			m.Hash = contentHash(m.Text)
		}
		if hashes[m.Hash] {
			continue
		}
		vectors = append(vectors, vec)
		meta = append(meta, m)
		hashes[m.Hash] = true
	}

	ix.mu.Lock()
	ix.vectors = vectors
	ix.meta = meta
	ix.hashes = hashes
	err := ix.persistLocked()
	ix.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persist rebuilt index: %w", err)
	}

	log.Printf("[INDEX] rebuilt with %d vectors", len(vectors))
	return nil
}

// Healthz returns the operational snapshot used by cmd/inspect.
func (ix *Index) Healthz() Health {
	ok, reason := ix.VerifyIntegrity()
	return Health{
		Ready:           true,
		Rows:            ix.Count(),
		MetadataCount:   ix.MetaCount(),
		IntegrityOK:     ok,
		IntegrityDetail: reason,
	}
}

// #endregion
