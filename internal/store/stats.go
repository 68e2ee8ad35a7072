package store

import (
	"context"
	"os"

	"github.com/engramdev/engram/internal/model"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string      `json:"db_path"`
	DBSizeBytes     int64       `json:"db_size_bytes"`
	TotalRecords    int         `json:"total_records"`
	ActiveRecords   int         `json:"active_records"`
	ArchivedRecords int         `json:"archived_records"`
	DeletedRecords  int         `json:"deleted_records"`
	VectorRows      int         `json:"vector_rows"`
	Associations    int         `json:"associations"`
	OpenSessions    int         `json:"open_sessions"`
	Tiers           []TierStats `json:"tiers,omitempty"`
}

// TierStats holds per-tier active record counts.
type TierStats struct {
	Tier  model.Tier `json:"tier"`
	Count int        `json:"count"`
}

// Stats returns database statistics, including active records per
// retention tier.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.TotalRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 0 AND archived = 0`).Scan(&st.ActiveRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 0 AND archived = 1`).Scan(&st.ArchivedRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 1`).Scan(&st.DeletedRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&st.VectorRows)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM associations`).Scan(&st.Associations)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL`).Scan(&st.OpenSessions)

	rows, err := s.db.QueryContext(ctx,
		`SELECT weight FROM records WHERE deleted = 0 AND archived = 0`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	counts := map[model.Tier]int{}
	for rows.Next() {
		var w float64
		if err := rows.Scan(&w); err != nil {
			return st, err
		}
		counts[model.TierOf(w)]++
	}
	for _, tier := range []model.Tier{model.TierCore, model.TierArchive, model.TierLongTerm, model.TierShort} {
		if counts[tier] > 0 {
			st.Tiers = append(st.Tiers, TierStats{Tier: tier, Count: counts[tier]})
		}
	}

	return st, nil
}
