package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/index"
	"github.com/engramdev/engram/internal/memerr"
)

// ConsistencyReport summarizes one sweep over the store/index
// agreement invariant: every non-deleted, non-archived record with a
// vector row must be present in the index.
type ConsistencyReport struct {
	Checked  int      `json:"checked"`
	Missing  []string `json:"missing_from_index,omitempty"`
	Repaired int      `json:"repaired"`
}

// ConsistencySweep verifies the agreement invariant. With repair set,
// entries missing from the index are re-added from their stored
// embeddings. Unrepaired drift is remembered and surfaced through
// Healthy until a later sweep comes back clean.
func (s *SQLiteStore) ConsistencySweep(ctx context.Context, repair bool) (*ConsistencyReport, error) {
	member, ok := s.idx.(index.Membership)
	if !ok {
		// Index cannot answer point lookups; nothing to compare.
		return &ConsistencyReport{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT v.record_id, v.embedding FROM vectors v
		 JOIN records r ON r.id = v.record_id
		 WHERE r.deleted = 0 AND r.archived = 0`)
	if err != nil {
		return nil, &memerr.StorageError{Op: "consistency sweep", Err: err}
	}
	defer rows.Close()

	report := &ConsistencyReport{}
	type entry struct {
		id   string
		blob []byte
	}
	var missing []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.blob); err != nil {
			return nil, &memerr.StorageError{Op: "consistency sweep: scan", Err: err}
		}
		report.Checked++
		if !member.Contains(e.id) {
			missing = append(missing, e)
			report.Missing = append(report.Missing, e.id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &memerr.StorageError{Op: "consistency sweep", Err: err}
	}

	if repair {
		s.writeMu.Lock()
		for _, e := range missing {
			if err := s.idx.Add(ctx, []string{e.id}, [][]float32{decodeVector(e.blob)}); err != nil {
				s.log.Warn("consistency repair failed", zap.String("id", e.id), zap.Error(err))
				continue
			}
			report.Repaired++
		}
		s.writeMu.Unlock()
	}

	if unresolved := len(report.Missing) - report.Repaired; unresolved > 0 {
		s.recordConsistency(&memerr.ConsistencyError{
			Detail: fmt.Sprintf("%d vector rows missing from index", unresolved),
		})
	} else {
		s.clearConsistency()
	}

	return report, nil
}
