package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/index"
)

// SearchHit is one similarity match.
type SearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// DefaultSearchK is used when a caller does not size the search.
const DefaultSearchK = 10

// SearchSimilar vectorizes the query (cache first) and returns index
// hits above threshold, excluding deleted and archived records. When
// fewer than 3 hits clear the threshold, the fallback threshold is
// tried once. Retrieval is an enhancement: embedding or index
// failures degrade to an empty result rather than failing the turn.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, queryText string, k int, threshold, fallback float64) ([]SearchHit, error) {
	if queryText == "" {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultSearchK
	}

	vec, err := s.emb.Embed(ctx, queryText)
	if err != nil {
		s.log.Warn("query vectorization failed, returning no memories", zap.Error(err))
		return nil, nil
	}

	results, err := s.idx.Search(ctx, vec, k)
	if err != nil {
		s.log.Warn("index search failed, returning no memories", zap.Error(err))
		return nil, nil
	}
	if len(results) == 0 {
		return nil, nil
	}

	active, err := s.activeIDs(ctx, resultIDs(results))
	if err != nil {
		s.log.Warn("search state filter failed, returning no memories", zap.Error(err))
		return nil, nil
	}

	hits := filterHits(results, active, threshold)
	if len(hits) < 3 && fallback < threshold {
		hits = filterHits(results, active, fallback)
	}
	return hits, nil
}

func resultIDs(results []index.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func filterHits(results []index.Result, active map[string]bool, threshold float64) []SearchHit {
	var hits []SearchHit
	for _, r := range results {
		if r.Score > threshold && active[r.ID] {
			hits = append(hits, SearchHit{ID: r.ID, Score: r.Score})
		}
	}
	return hits
}

// activeIDs returns which of ids are non-deleted, non-archived
// records. Stale index entries fall out of search results here.
func (s *SQLiteStore) activeIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM records WHERE deleted = 0 AND archived = 0 AND id IN (`+placeholders(len(ids))+`)`,
		toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	active := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active[id] = true
	}
	return active, rows.Err()
}
