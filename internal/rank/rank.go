// Package rank scores, orders and deduplicates candidate records for
// context assembly.
package rank

import (
	"sort"
	"time"

	"github.com/engramdev/engram/internal/model"
	"github.com/engramdev/engram/internal/text"
)

// DefaultMaxResults caps ranked output when the caller does not.
const DefaultMaxResults = 10

// recencyWindow grants the recency bonus to records younger than this.
const recencyWindow = 24 * time.Hour

// typeBonuses rewards record types that carry more context per char.
var typeBonuses = map[string]float64{
	model.TypeSummary:   2.0,
	model.TypeUserInput: 1.0,
}

// Scored pairs a record with its composite relevance score.
type Scored struct {
	model.MemoryRecord
	Score float64 `json:"score"`
}

// Ranker computes composite scores. The zero value is usable.
type Ranker struct {
	// MaxResults truncates ranked output; <= 0 uses the default.
	MaxResults int

	// Now overrides the clock for recency scoring. Tests set it;
	// production leaves it nil.
	Now func() time.Time
}

// Score returns weight + type bonus + recency bonus for one record.
func (r *Ranker) Score(rec model.MemoryRecord, now time.Time) float64 {
	score := rec.Weight + typeBonuses[rec.Type]
	if now.Sub(rec.CreatedAt) < recencyWindow {
		score += 1.0
	}
	return score
}

// Rank scores records, sorts them descending and collapses duplicates
// by normalized content, keeping the highest-scoring instance. Ties
// break newer-first, then by id, so the ordering is deterministic.
// Empty input yields empty output.
func (r *Ranker) Rank(records []model.MemoryRecord, _ string) []Scored {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}

	scored := make([]Scored, 0, len(records))
	for _, rec := range records {
		scored = append(scored, Scored{MemoryRecord: rec, Score: r.Score(rec, now)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].CreatedAt.Equal(scored[j].CreatedAt) {
			return scored[i].CreatedAt.After(scored[j].CreatedAt)
		}
		return scored[i].ID < scored[j].ID
	})

	// First occurrence wins: the slice is already best-first.
	seen := make(map[string]bool, len(scored))
	deduped := scored[:0]
	for _, sc := range scored {
		key := text.Normalize(sc.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, sc)
	}

	max := r.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	if len(deduped) > max {
		deduped = deduped[:max]
	}
	return deduped
}
