package index

// #region imports
import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
)

// #endregion

// #region layout

const (
	vectorFile = "vectors.bin"
	metaFile   = "metadata.json"
)

// #endregion

// #region persist

// Persist writes the vector rows and the row-aligned metadata list to
// disk. Takes the mutator and write locks so no mutation can interleave
// between the two files.
func (ix *Index) Persist() error {
	ix.wmu.Lock()
	defer ix.wmu.Unlock()
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.persistLocked()
}

func (ix *Index) persistLocked() error {
	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", ix.dir, err)
	}

	buf := make([]byte, 8+len(ix.vectors)*ix.dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(ix.vectors)))
	off := 8
	for _, row := range ix.vectors {
		for _, f := range row {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	if err := os.WriteFile(filepath.Join(ix.dir, vectorFile), buf, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	metaJSON, err := json.Marshal(ix.meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ix.dir, metaFile), metaJSON, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	log.Printf("[INDEX] persisted %d vectors to %s", len(ix.vectors), ix.dir)
	return nil
}

// #endregion

// #region load

// Load reads a previously persisted index. A missing file pair is not an
// error: the index simply starts empty.
func (ix *Index) Load() error {
	ix.wmu.Lock()
	defer ix.wmu.Unlock()

	vecPath := filepath.Join(ix.dir, vectorFile)
	metaPath := filepath.Join(ix.dir, metaFile)

	vecBytes, err := os.ReadFile(vecPath)
	if os.IsNotExist(err) {
		log.Printf("[INDEX] no persisted index at %s, starting empty (dim=%d)", ix.dir, ix.dim)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	if len(vecBytes) < 8 {
		return fmt.Errorf("vector file truncated: %d bytes", len(vecBytes))
	}
	dim := int(binary.LittleEndian.Uint32(vecBytes[0:]))
	rows := int(binary.LittleEndian.Uint32(vecBytes[4:]))
	ix.mu.Lock()
	if ix.dim == 0 {
		// Read-only consumers may open without an embedder; adopt the
		// persisted dimension.
		ix.dim = dim
	}
	want := ix.dim
	ix.mu.Unlock()
	if dim != want {
		return fmt.Errorf("persisted dimension %d, index expects %d", dim, want)
	}
	if want := 8 + rows*dim*4; len(vecBytes) != want {
		return fmt.Errorf("vector file size %d, expected %d", len(vecBytes), want)
	}

	vectors := make([][]float32, rows)
	off := 8
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBytes[off:]))
			off += 4
		}
		vectors[i] = row
	}

	var meta []ChunkMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}

	hashes := make(map[string]bool, len(meta))
	for _, m := range meta {
		if m.Hash != "" {
			hashes[m.Hash] = true
		}
	}

	ix.mu.Lock()
	ix.vectors = vectors
	ix.meta = meta
	ix.hashes = hashes
	ix.mu.Unlock()

	log.Printf("[INDEX] loaded %d vectors from %s", rows, ix.dir)
	return nil
}

// #endregion
