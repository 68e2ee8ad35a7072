package index

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const collectionName = "records"

// ChromemIndex implements Index on chromem-go, a pure Go embedded
// vector database. The index lives in memory; Save/Load snapshot it
// to a single file.
type ChromemIndex struct {
	db   *chromem.DB
	path string // snapshot file; empty disables persistence
	log  *zap.Logger

	mu      sync.Mutex // single writer over Add/Delete/Save/Load
	saveErr error      // last unresolved Save failure
}

// NewChromemIndex creates an in-memory chromem index snapshotted to
// path. An empty path keeps the index memory-only.
func NewChromemIndex(path string, log *zap.Logger) *ChromemIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromemIndex{
		db:   chromem.NewDB(),
		path: path,
		log:  log,
	}
}

func (x *ChromemIndex) collection() (*chromem.Collection, error) {
	col, err := x.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

func (x *ChromemIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	col, err := x.collection()
	if err != nil {
		return err
	}
	for i, id := range ids {
		doc := chromem.Document{
			ID:        id,
			Embedding: vectors[i],
			Content:   id, // chromem requires non-empty content
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", id, err)
		}
	}
	return nil
}

func (x *ChromemIndex) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	col, err := x.collection()
	if err != nil {
		return nil, err
	}
	// chromem rejects nResults above the collection size
	if n := col.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	hits, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{ID: h.ID, Score: float64(h.Similarity)})
	}
	return results, nil
}

func (x *ChromemIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	col, err := x.collection()
	if err != nil {
		return err
	}
	if col.Count() == 0 {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Save snapshots the whole index to disk. A failure is remembered and
// surfaced through Healthy until a retry succeeds.
func (x *ChromemIndex) Save() error {
	if x.path == "" {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.ExportToFile(x.path, true, ""); err != nil {
		x.saveErr = fmt.Errorf("snapshot %s: %w", x.path, err)
		x.log.Warn("index snapshot failed", zap.String("path", x.path), zap.Error(err))
		return x.saveErr
	}
	x.saveErr = nil
	return nil
}

// Load restores the last snapshot. A missing snapshot file is not an
// error (fresh index).
func (x *ChromemIndex) Load() error {
	if x.path == "" {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := os.Stat(x.path); os.IsNotExist(err) {
		return nil
	}
	if err := x.db.ImportFromFile(x.path, ""); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", x.path, err)
	}
	return nil
}

// Contains reports whether id is present in the index.
func (x *ChromemIndex) Contains(id string) bool {
	col, err := x.collection()
	if err != nil {
		return false
	}
	_, err = col.GetByID(context.Background(), id)
	return err == nil
}

func (x *ChromemIndex) Healthy() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.saveErr
}
