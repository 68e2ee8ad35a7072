// Package index abstracts the approximate-nearest-neighbor index over
// record embeddings.
//
// Mutations (Add/Delete/Save/Load) are serialized by each
// implementation because snapshot persistence is a whole-index
// operation; Search may run concurrently against the in-memory state
// and accepts bounded staleness.
package index

import "context"

// Result is one nearest-neighbor hit.
type Result struct {
	ID    string
	Score float64
}

// Index is the k-NN oracle over record embeddings.
type Index interface {
	// Add inserts ids with their vectors. ids and vectors must be
	// the same length.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns up to k hits sorted by similarity descending.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)

	// Delete removes ids. Missing ids are not an error.
	Delete(ctx context.Context, ids []string) error

	// Save persists a snapshot. The in-memory state stays the
	// source of truth; a failed Save must be reported by Healthy
	// until a later Save succeeds.
	Save() error

	// Load restores the last snapshot, if any.
	Load() error

	// Healthy reports an unresolved persistence failure, or nil.
	Healthy() error
}

// Membership is implemented by indexes that can answer point lookups.
// Consistency sweeps use it to compare index contents against stored
// vector rows; indexes without it are only checked store-side.
type Membership interface {
	Contains(id string) bool
}
