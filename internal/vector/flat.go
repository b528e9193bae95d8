package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex is a brute-force inner-product index persisted as a single flat
// file. Every Add rewrites the file wholesale under the writer lock, so a
// successful Add is durable before it returns; searches run concurrently
// under a read lock. Suitable for corpora up to a few hundred thousand
// vectors; use the FAISS variant beyond that.
type FlatIndex struct {
	dimensions int
	path       string
	ids        []int64
	vectors    [][]float32
	byID       map[int64]struct{}
	mu         sync.RWMutex
}

// OpenFlatIndex creates a flat index with the given dimension, loading the
// persisted contents of path if the file exists. An empty path keeps the
// index memory-only (used in tests).
func OpenFlatIndex(dimensions int, path string) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	idx := &FlatIndex{
		dimensions: dimensions,
		path:       path,
		ids:        make([]int64, 0),
		vectors:    make([][]float32, 0),
		byID:       make(map[int64]struct{}),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Add appends vectors under the given ids and flushes to disk before returning.
// The whole add-and-flush runs under one lock: the on-disk blob is rewritten
// wholesale, so concurrent writers must be serialized here.
func (f *FlatIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), f.dimensions)
		}
		if _, exists := f.byID[id]; exists {
			return fmt.Errorf("vector id %d already exists", id)
		}
	}
	for i, id := range ids {
		vec := make([]float32, f.dimensions)
		copy(vec, vectors[i])
		f.ids = append(f.ids, id)
		f.vectors = append(f.vectors, vec)
		f.byID[id] = struct{}{}
	}
	if err := f.flushLocked(); err != nil {
		// Roll back the in-memory append so memory matches disk.
		f.ids = f.ids[:len(f.ids)-len(ids)]
		f.vectors = f.vectors[:len(f.vectors)-len(ids)]
		for _, id := range ids {
			delete(f.byID, id)
		}
		return fmt.Errorf("flush index: %w", err)
	}
	return nil
}

// Search returns the top-k entries by inner product, descending by score.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.ids) == 0 {
		return nil, nil
	}
	scores := make([]*Result, len(f.ids))
	for i, vec := range f.vectors {
		var dot float64
		for j := 0; j < f.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		scores[i] = &Result{ID: f.ids[i], Score: dot}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Close is a no-op; every Add already flushed.
func (f *FlatIndex) Close() error {
	return nil
}

// File format: dimensions (uint32), count (uint32), then per entry:
// id (uint64), vector (dimensions * float32). All little-endian.

// flushLocked writes the index to path atomically (temp file + rename) so a
// crash mid-flush leaves the previous blob intact. Caller holds the write lock.
func (f *FlatIndex) flushLocked() error {
	if f.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".vectors-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := binary.Write(tmp, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, uint32(len(f.ids))); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range f.ids {
		if err := binary.Write(tmp, binary.LittleEndian, uint64(id)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := tmp.Write(float32SliceToBytes(f.vectors[i])); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// load reads the persisted index from path. A missing file leaves the index empty.
func (f *FlatIndex) load() error {
	if f.path == "" {
		return nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var dim, n uint32
	if err := binary.Read(file, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dimensions)
	}
	if err := binary.Read(file, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	buf := make([]byte, f.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var id uint64
		if err := binary.Read(file, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(file, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		f.ids = append(f.ids, int64(id))
		f.vectors = append(f.vectors, bytesToFloat32Slice(buf))
		f.byID[int64(id)] = struct{}{}
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
