package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/engramdev/engram/internal/text"
)

// CachedEmbedder wraps an Embedder with a ristretto read-through cache
// keyed on normalized text. Model inference dominates the write path,
// so repeated turns with the same phrasing skip it entirely.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with a cache holding up to maxEntries
// vectors. The handle is constructed here and injected by the caller;
// there is no process-wide cache.
func NewCachedEmbedder(inner Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and caching it
// on a miss.
func (e *CachedEmbedder) Embed(ctx context.Context, t string) (Vector, error) {
	key := text.Normalize(t)
	if v, ok := e.CacheGet(key); ok {
		return v, nil
	}
	vec, err := e.inner.Embed(ctx, t)
	if err != nil {
		return nil, err
	}
	e.CachePut(key, vec)
	return vec, nil
}

// CacheGet looks up a vector by its normalized-text key.
func (e *CachedEmbedder) CacheGet(key string) (Vector, bool) {
	v, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	vec, ok := v.(Vector)
	return vec, ok
}

// CachePut stores a vector under its normalized-text key. Each entry
// costs one unit regardless of dimensionality.
func (e *CachedEmbedder) CachePut(key string, vec Vector) {
	e.cache.Set(key, vec, 1)
}

// Wait blocks until pending cache writes are applied. Used by tests.
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

func (e *CachedEmbedder) Dims() int     { return e.inner.Dims() }
func (e *CachedEmbedder) Model() string { return e.inner.Model() }
