// Package vector provides an exact brute-force cosine similarity index with
// file persistence. The corpus is bounded (tens of thousands of entries), so
// O(n·D) scans complete well within the latency budget and no approximate
// structure is needed.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Result is a single similarity search hit.
type Result struct {
	ID         string
	Similarity float64
}

// Index stores L2-normalized vectors keyed by entry ID. Writers (Insert,
// Delete, Clear, Load) take the exclusive lock; Query and Save run under the
// shared lock, so concurrent queries never observe a partially updated index.
type Index struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	byID       map[string]int
	mu         sync.RWMutex
}

// NewIndex creates an empty index with the given dimension.
func NewIndex(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Index{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}, nil
}

// Insert adds the vector for id, or replaces it in place when id is already
// present. Replacement keeps the original insertion position so tie ordering
// stays stable.
func (ix *Index) Insert(id string, vec []float32) error {
	if len(vec) != ix.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), ix.dimensions)
	}
	stored := make([]float32, ix.dimensions)
	copy(stored, vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if pos, ok := ix.byID[id]; ok {
		ix.vectors[pos] = stored
		return nil
	}
	ix.byID[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, stored)
	return nil
}

// Delete removes the vector for id. Deleting an absent id is a no-op.
func (ix *Index) Delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	pos, ok := ix.byID[id]
	if !ok {
		return
	}
	ix.ids = append(ix.ids[:pos], ix.ids[pos+1:]...)
	ix.vectors = append(ix.vectors[:pos], ix.vectors[pos+1:]...)
	delete(ix.byID, id)
	for i := pos; i < len(ix.ids); i++ {
		ix.byID[ix.ids[i]] = i
	}
}

// Clear removes all vectors.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ids = nil
	ix.vectors = nil
	ix.byID = make(map[string]int)
}

// Query returns up to k ids ranked by descending cosine similarity to query,
// excluding hits below minSimilarity. Ties keep insertion order.
func (ix *Index) Query(query []float32, k int, minSimilarity float64) ([]*Result, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.ids) == 0 {
		return nil, nil
	}
	results := make([]*Result, 0, len(ix.ids))
	for i, vec := range ix.vectors {
		sim := InnerProduct(query, vec)
		if sim < minSimilarity {
			continue
		}
		results = append(results, &Result{ID: ix.ids[i], Similarity: sim})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Contains reports whether id is in the index.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byID[id]
	return ok
}

// IDs returns all ids in insertion order.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.ids))
	copy(out, ix.ids)
	return out
}

// Size returns the number of vectors in the index.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Dimensions returns the vector dimension.
func (ix *Index) Dimensions() int {
	return ix.dimensions
}

// Save persists the index to path by writing a temporary file in the same
// directory and renaming it over the target, so a crash mid-write never
// leaves a half-written index file. Format: dimension (4), n (4), then per
// vector: idLen (4), id bytes, vector (dimension*4 bytes), little-endian.
func (ix *Index) Save(path string) error {
	if path == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := binary.Write(tmp, binary.LittleEndian, uint32(ix.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, uint32(len(ix.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range ix.ids {
		idBytes := []byte(id)
		if err := binary.Write(tmp, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := tmp.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := tmp.Write(float32SliceToBytes(ix.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the file at path. A missing file
// leaves the index empty and returns nil. An unreadable or corrupt file also
// leaves the index empty but returns the error so callers can log the
// recovery; the index is always usable afterwards.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ids = nil
	ix.vectors = nil
	ix.byID = make(map[string]int)
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != ix.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, ix.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, ix.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	ix.ids = ids
	ix.vectors = vectors
	for i, id := range ix.ids {
		ix.byID[id] = i
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
