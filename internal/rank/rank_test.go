package rank

import (
	"testing"
	"time"

	"github.com/engramdev/engram/internal/model"
)

func rec(id, content string, weight float64, typ string, age time.Duration, now time.Time) model.MemoryRecord {
	return model.MemoryRecord{
		ID:        id,
		Content:   content,
		Type:      typ,
		Weight:    weight,
		CreatedAt: now.Add(-age),
	}
}

func TestScoreComposition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{}

	tests := []struct {
		name string
		rec  model.MemoryRecord
		want float64
	}{
		{"plain old record", rec("a", "x", 5.0, model.TypeAssistant, 48*time.Hour, now), 5.0},
		{"fresh record", rec("b", "x", 5.0, model.TypeAssistant, time.Hour, now), 6.0},
		{"summary bonus", rec("c", "x", 5.0, model.TypeSummary, 48*time.Hour, now), 7.0},
		{"user input bonus", rec("d", "x", 5.0, model.TypeUserInput, 48*time.Hour, now), 6.0},
		{"all bonuses", rec("e", "x", 10.0, model.TypeSummary, time.Minute, now), 13.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Score(tt.rec, now); got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{Now: func() time.Time { return now }}

	records := []model.MemoryRecord{
		rec("low", "background detail", 3.0, model.TypeAssistant, 48*time.Hour, now),
		rec("high", "key decision summary", 9.0, model.TypeSummary, 48*time.Hour, now),
		rec("mid", "recent question", 5.0, model.TypeUserInput, time.Hour, now),
	}

	got := r.Rank(records, "ignored query")
	if len(got) != 3 {
		t.Fatalf("ranked = %d records, want 3", len(got))
	}
	wantOrder := []string{"high", "mid", "low"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Error("scores not descending")
		}
	}
}

func TestRankTieBreaksNewerFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{Now: func() time.Time { return now }}

	records := []model.MemoryRecord{
		rec("older", "first fact", 5.0, model.TypeAssistant, 72*time.Hour, now),
		rec("newer", "second fact", 5.0, model.TypeAssistant, 48*time.Hour, now),
	}

	got := r.Rank(records, "")
	if got[0].ID != "newer" || got[1].ID != "older" {
		t.Errorf("tie broke %s first, want newer first", got[0].ID)
	}
}

func TestRankDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{Now: func() time.Time { return now }}

	records := []model.MemoryRecord{
		rec("b", "same time same weight b", 5.0, model.TypeAssistant, time.Hour, now),
		rec("a", "same time same weight a", 5.0, model.TypeAssistant, time.Hour, now),
		rec("c", "same time same weight c", 5.0, model.TypeAssistant, time.Hour, now),
	}

	first := r.Rank(records, "")
	for i := 0; i < 10; i++ {
		again := r.Rank(records, "")
		for j := range first {
			if again[j].ID != first[j].ID {
				t.Fatalf("run %d: position %d = %s, want %s", i, j, again[j].ID, first[j].ID)
			}
		}
	}
	// Full ties fall back to id order.
	if first[0].ID != "a" || first[1].ID != "b" || first[2].ID != "c" {
		t.Errorf("full tie order = %s %s %s, want a b c", first[0].ID, first[1].ID, first[2].ID)
	}
}

func TestRankDeduplicatesByNormalizedContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{Now: func() time.Time { return now }}

	records := []model.MemoryRecord{
		rec("weak", "The User likes   espresso", 3.0, model.TypeAssistant, 48*time.Hour, now),
		rec("strong", "the user likes espresso", 8.0, model.TypeAssistant, 48*time.Hour, now),
	}

	got := r.Rank(records, "")
	if len(got) != 1 {
		t.Fatalf("deduped = %d records, want 1", len(got))
	}
	if got[0].ID != "strong" {
		t.Errorf("kept %s, want the higher-scoring duplicate", got[0].ID)
	}
}

func TestRankTruncatesToMax(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Ranker{MaxResults: 2, Now: func() time.Time { return now }}

	records := []model.MemoryRecord{
		rec("a", "fact one", 9.0, model.TypeAssistant, 48*time.Hour, now),
		rec("b", "fact two", 7.0, model.TypeAssistant, 48*time.Hour, now),
		rec("c", "fact three", 5.0, model.TypeAssistant, 48*time.Hour, now),
	}

	got := r.Rank(records, "")
	if len(got) != 2 {
		t.Fatalf("ranked = %d records, want cap of 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("kept %s %s, want the top two", got[0].ID, got[1].ID)
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := &Ranker{}
	if got := r.Rank(nil, "anything"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
