package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/memerr"
	"github.com/engramdev/engram/internal/model"
)

// Relate creates (or refreshes) a directed association between two
// records. Strength is clamped to [0, 1].
func (s *SQLiteStore) Relate(ctx context.Context, sourceID, targetID, typ string, strength float64) error {
	if typ == "" {
		typ = "related"
	}
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO associations (source_id, target_id, type, strength, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, type) DO UPDATE SET strength = excluded.strength`,
		sourceID, targetID, typ, strength, now)
	if err != nil {
		return &memerr.StorageError{Op: "relate", Err: err}
	}
	return nil
}

// Associations returns all edges touching a record.
func (s *SQLiteStore) Associations(ctx context.Context, id string) ([]model.Association, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, type, strength, created_at, last_activated_at
		 FROM associations WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return nil, &memerr.StorageError{Op: "associations", Err: err}
	}
	defer rows.Close()

	var assocs []model.Association
	for rows.Next() {
		var a model.Association
		var createdAt string
		var activated *string
		if err := rows.Scan(&a.SourceID, &a.TargetID, &a.Type, &a.Strength, &createdAt, &activated); err != nil {
			return nil, &memerr.StorageError{Op: "associations: scan", Err: err}
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if activated != nil {
			t, _ := time.Parse(time.RFC3339, *activated)
			a.LastActivated = &t
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

// Expand walks outgoing association edges breadth-first from seedIDs,
// bounded by depth hops and pruned below minStrength. It returns the
// union of seeds and discovered ids. Expansion is an optimization:
// any storage failure logs and returns the seeds unchanged.
func (s *SQLiteStore) Expand(ctx context.Context, seedIDs []string, depth int, minStrength float64) []string {
	if len(seedIDs) == 0 || depth <= 0 {
		return seedIDs
	}

	seen := make(map[string]bool, len(seedIDs))
	result := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}

	frontier := append([]string(nil), result...)
	var activated []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		query := `SELECT source_id, target_id FROM associations
		          WHERE strength >= ? AND source_id IN (` + placeholders(len(frontier)) + `)`
		args := append([]interface{}{minStrength}, toAnySlice(frontier)...)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			s.log.Warn("association expansion failed, keeping seeds", zap.Error(err))
			return seedIDs
		}

		var next []string
		for rows.Next() {
			var source, target string
			if err := rows.Scan(&source, &target); err != nil {
				rows.Close()
				s.log.Warn("association expansion failed, keeping seeds", zap.Error(err))
				return seedIDs
			}
			activated = append(activated, source)
			if !seen[target] {
				seen[target] = true
				result = append(result, target)
				next = append(next, target)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			s.log.Warn("association expansion failed, keeping seeds", zap.Error(err))
			return seedIDs
		}
		frontier = next
	}

	// Traversal refreshes edge activation, best-effort.
	if len(activated) > 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		s.db.ExecContext(ctx,
			`UPDATE associations SET last_activated_at = ? WHERE source_id IN (`+placeholders(len(activated))+`)`,
			append([]interface{}{now}, toAnySlice(activated)...)...)
	}

	return result
}
