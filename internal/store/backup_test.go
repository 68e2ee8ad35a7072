package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/engramdev/engram/internal/model"
)

func TestWriteBackupAndImport(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, AddParams{Content: "first backed up fact", Weight: 7.0})
	mustAdd(t, s, AddParams{Content: "second backed up fact", Meta: map[string]string{"k": "v"}})
	dropped := mustAdd(t, s, AddParams{Content: "deleted before backup"})
	if err := s.Delete(ctx, dropped); err != nil {
		t.Fatalf("delete: %v", err)
	}

	dir := t.TempDir()
	path, err := s.WriteBackup(ctx, dir)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var records []model.MemoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("parse backup: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("backup holds %d records, want 2 (no deleted)", len(records))
	}

	// Restore into a fresh store, re-embedding on the way in.
	fresh, freshIdx := newTestStore(t)
	n, err := fresh.Import(ctx, records)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported = %d, want 2", n)
	}
	if freshIdx.Len() != 2 {
		t.Errorf("index holds %d vectors after import, want 2", freshIdx.Len())
	}

	hits, err := fresh.SearchSimilar(ctx, "first backed up fact", 10, 0.3, 0.1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Error("imported record not searchable")
	}
}

func TestWriteBackupRequiresDir(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.WriteBackup(context.Background(), ""); err == nil {
		t.Error("expected error for empty backup dir")
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	core := mustAdd(t, s, AddParams{Content: "core fact", Weight: 9.5})
	mustAdd(t, s, AddParams{Content: "everyday fact", Weight: 5.0})
	gone := mustAdd(t, s, AddParams{Content: "short lived", Weight: 2.0})
	s.Delete(ctx, gone)
	s.Relate(ctx, core, gone, "related", 0.5)
	s.EnsureSession(ctx, 0)

	st, err := s.Stats(ctx, "unused.db")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 3 || st.ActiveRecords != 2 || st.DeletedRecords != 1 {
		t.Errorf("record counts = %d/%d/%d", st.TotalRecords, st.ActiveRecords, st.DeletedRecords)
	}
	if st.VectorRows != 2 {
		t.Errorf("vector rows = %d, want 2 (deleted record's vector dropped)", st.VectorRows)
	}
	if st.OpenSessions != 1 {
		t.Errorf("open sessions = %d, want 1", st.OpenSessions)
	}

	tiers := map[model.Tier]int{}
	for _, ts := range st.Tiers {
		tiers[ts.Tier] = ts.Count
	}
	if tiers[model.TierCore] != 1 || tiers[model.TierLongTerm] != 1 {
		t.Errorf("tier counts = %v", st.Tiers)
	}
}
