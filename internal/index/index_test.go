package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/engramdev/engram/internal/embedding"
)

func embed(t *testing.T, e embedding.Embedder, text string) []float32 {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	return vec
}

func TestMemoryIndexSearchOrdering(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewLocalEmbedder(32)
	idx := NewMemoryIndex()

	texts := map[string]string{
		"a": "the weather in london",
		"b": "favorite pizza toppings",
		"c": "trip planning for japan",
	}
	for id, text := range texts {
		if err := idx.Add(ctx, []string{id}, [][]float32{embed(t, e, text)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	results, err := idx.Search(ctx, embed(t, e, "the weather in london"), 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected exact match first, got %s", results[0].ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("expected near-1 score for exact match, got %v", results[0].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score descending")
		}
	}
}

func TestMemoryIndexDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})

	if !idx.Contains("x") {
		t.Fatal("expected x indexed")
	}
	if err := idx.Delete(ctx, []string{"x", "missing"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Contains("x") || idx.Len() != 0 {
		t.Error("expected empty index after delete")
	}

	results, _ := idx.Search(ctx, []float32{1, 0}, 5)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestChromemIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewLocalEmbedder(32)
	idx := NewChromemIndex("", nil)

	vec := embed(t, e, "remember the milk")
	if err := idx.Add(ctx, []string{"m1"}, [][]float32{vec}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !idx.Contains("m1") {
		t.Error("expected m1 in index")
	}

	results, err := idx.Search(ctx, vec, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m1" {
		t.Fatalf("expected m1, got %v", results)
	}

	if err := idx.Delete(ctx, []string{"m1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Contains("m1") {
		t.Error("expected m1 removed")
	}
}

func TestChromemIndexEmptySearch(t *testing.T) {
	idx := NewChromemIndex("", nil)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestChromemIndexSaveLoad(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewLocalEmbedder(32)
	path := filepath.Join(t.TempDir(), "index.gob.gz")

	idx := NewChromemIndex(path, nil)
	vec := embed(t, e, "persist me")
	idx.Add(ctx, []string{"p1"}, [][]float32{vec})
	if err := idx.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := idx.Healthy(); err != nil {
		t.Fatalf("expected healthy after save, got %v", err)
	}

	restored := NewChromemIndex(path, nil)
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	results, err := restored.Search(ctx, vec, 1)
	if err != nil {
		t.Fatalf("search after load: %v", err)
	}
	if len(results) != 1 || results[0].ID != "p1" {
		t.Fatalf("expected p1 after reload, got %v", results)
	}
}

func TestChromemIndexLoadMissingSnapshot(t *testing.T) {
	idx := NewChromemIndex(filepath.Join(t.TempDir(), "none.gob.gz"), nil)
	if err := idx.Load(); err != nil {
		t.Fatalf("missing snapshot should not error: %v", err)
	}
}
