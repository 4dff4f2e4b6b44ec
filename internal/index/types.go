package index

// #region imports
import "time"

// #endregion

// #region chunk-meta

// ChunkMeta is the metadata record stored row-aligned with each vector.
// Text is kept so the index can rebuild itself purely from metadata.
type ChunkMeta struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Source      string            `json:"source"`
	Department  string            `json:"department,omitempty"`
	AccessLevel string            `json:"access_level"`
	Tenant      string            `json:"tenant"`
	DocType     string            `json:"doc_type,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
	Hash        string            `json:"hash"`
	Text        string            `json:"text"`
	CreatedAt   time.Time         `json:"created_at"`
}

// #endregion

// #region hit

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float32
	Text  string
	Meta  ChunkMeta
}

// Filter decides whether a chunk is visible to the current query.
// nil means no filtering.
type Filter func(ChunkMeta) bool

// #endregion

// #region health

// Health is a structured snapshot of index state for operational checks.
type Health struct {
	Ready           bool   `json:"ready"`
	Rows            int    `json:"rows"`
	MetadataCount   int    `json:"metadata_count"`
	IntegrityOK     bool   `json:"integrity_ok"`
	IntegrityDetail string `json:"integrity_detail"`
}

// #endregion
