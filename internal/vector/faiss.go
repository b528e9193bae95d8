//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/MetaIndexes_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex wraps an IndexIDMap over an IndexFlatIP, matching the flat
// index's contract: int64 ids, inner product over normalized vectors, and a
// flush to path on every Add. Search results with the -1 sentinel label are
// dropped, not padded.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	path       string
	byID       map[int64]struct{}
	mu         sync.RWMutex
}

// OpenFAISSIndex creates a FAISS IDMap+FlatIP index, loading the persisted
// index at path if the file exists.
func OpenFAISSIndex(dimensions int, path string) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	idx := &FAISSIndex{
		dimensions: dimensions,
		path:       path,
		byID:       make(map[int64]struct{}),
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return idx, idx.loadFrom(path)
		}
	}

	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS flat index: %s", faissLastError())
	}
	var idmap *C.FaissIndexIDMap
	if ret := C.faiss_IndexIDMap_new(&idmap, (*C.FaissIndex)(unsafe.Pointer(flat))); ret != 0 {
		C.faiss_Index_free((*C.FaissIndex)(unsafe.Pointer(flat)))
		return nil, fmt.Errorf("failed to create FAISS id map: %s", faissLastError())
	}
	idx.index = (*C.FaissIndex)(unsafe.Pointer(idmap))
	return idx, nil
}

func (f *FAISSIndex) loadFrom(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_read_index_fname(cPath, 0, &f.index); ret != 0 {
		return fmt.Errorf("failed to read FAISS index: %s", faissLastError())
	}
	if int(C.faiss_Index_d(f.index)) != f.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", int(C.faiss_Index_d(f.index)), f.dimensions)
	}
	// Rebuild the known-id set from the id map for duplicate rejection.
	idmap := C.faiss_IndexIDMap_cast(f.index)
	if idmap != nil {
		var idPtr *C.idx_t
		var n C.size_t
		C.faiss_IndexIDMap_id_map(idmap, &idPtr, &n)
		if idPtr != nil && n > 0 {
			ids := unsafe.Slice((*int64)(unsafe.Pointer(idPtr)), int(n))
			for _, id := range ids {
				f.byID[id] = struct{}{}
			}
		}
	}
	return nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Add inserts vectors under the given ids and flushes the index to disk.
func (f *FAISSIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(vectors)
	flatVectors := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flatVectors[i*f.dimensions:(i+1)*f.dimensions], vec)
	}
	for _, id := range ids {
		if _, exists := f.byID[id]; exists {
			return fmt.Errorf("vector id %d already exists", id)
		}
	}

	ret := C.faiss_Index_add_with_ids(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flatVectors[0])),
		(*C.idx_t)(unsafe.Pointer(&ids[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	for _, id := range ids {
		f.byID[id] = struct{}{}
	}
	if err := f.flushLocked(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	return nil
}

// Search returns the top-k vectors by inner product, descending by score.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)

	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]*Result, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue // unfilled slot
		}
		results = append(results, &Result{ID: labels[i], Score: float64(distances[i])})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// flushLocked writes the index to path. Caller holds the write lock.
func (f *FAISSIndex) flushLocked() error {
	if f.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	cPath := C.CString(f.path)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int(C.faiss_Index_ntotal(f.index))
}

// Close frees the underlying FAISS index.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
