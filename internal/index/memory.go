package index

import (
	"context"
	"sort"
	"sync"

	"github.com/engramdev/engram/internal/embedding"
)

// MemoryIndex is an exact brute-force cosine index. It backs tests and
// tiny deployments where an ANN structure buys nothing.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

func (x *MemoryIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, id := range ids {
		x.vectors[id] = vectors[i]
	}
	return nil
}

func (x *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]Result, 0, len(x.vectors))
	for id, v := range x.vectors {
		results = append(results, Result{ID: id, Score: embedding.CosineSimilarity(vector, v)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (x *MemoryIndex) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.vectors, id)
	}
	return nil
}

func (x *MemoryIndex) Save() error { return nil }
func (x *MemoryIndex) Load() error { return nil }

func (x *MemoryIndex) Healthy() error { return nil }

// Contains reports whether id is indexed. Used by consistency sweeps
// and tests.
func (x *MemoryIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.vectors[id]
	return ok
}

// Len returns the number of indexed vectors.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}
