package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/model"
)

// AggregateOptions controls session/history aggregation.
type AggregateOptions struct {
	IncludeSummaries   bool
	IncludeSessions    bool
	MaxRecentDialogues int
}

// AggregateResult groups retrieved records with their session history.
type AggregateResult struct {
	Primary   []model.MemoryRecord
	Sessions  map[string][]model.DialoguePair
	Summaries []model.MemoryRecord
}

// Aggregate fetches full records for ids, groups them by session, and
// pulls the most recent user/assistant pairs for each session present
// in the result. Sessions missing from the database are omitted; a
// failing session pull drops that session, never the whole call.
func (s *SQLiteStore) Aggregate(ctx context.Context, ids []string, opts AggregateOptions) (*AggregateResult, error) {
	res := &AggregateResult{Sessions: make(map[string][]model.DialoguePair)}

	primary, err := s.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	res.Primary = primary

	sessionIDs := make([]string, 0, 4)
	seen := map[string]bool{}
	for _, r := range primary {
		if r.SessionID != "" && !seen[r.SessionID] {
			seen[r.SessionID] = true
			sessionIDs = append(sessionIDs, r.SessionID)
		}
	}

	if opts.IncludeSessions {
		max := opts.MaxRecentDialogues
		if max <= 0 {
			max = 3
		}
		for _, sid := range sessionIDs {
			pairs, err := s.recentDialogues(ctx, sid, max)
			if err != nil {
				s.log.Warn("session history unavailable, omitting",
					zap.String("session_id", sid), zap.Error(err))
				continue
			}
			if len(pairs) > 0 {
				res.Sessions[sid] = pairs
			}
		}
	}

	if opts.IncludeSummaries && len(sessionIDs) > 0 {
		summaries, err := s.sessionSummaries(ctx, sessionIDs, 3)
		if err != nil {
			s.log.Warn("summary lookup failed, omitting", zap.Error(err))
		} else {
			res.Summaries = summaries
		}
	}

	return res, nil
}

// recentDialogues pairs user turns with the assistant turn that
// follows them inside a session, returning up to max pairs with the
// most recent last.
func (s *SQLiteStore) recentDialogues(ctx context.Context, sessionID string, max int) ([]model.DialoguePair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE session_id = ? AND deleted = 0 AND role IN ('user', 'assistant')
		 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pairs []model.DialoguePair
	for i := 0; i < len(turns)-1; i++ {
		if turns[i].Role == model.RoleUser && turns[i+1].Role == model.RoleAssistant {
			pairs = append(pairs, model.DialoguePair{User: turns[i], Assistant: turns[i+1]})
			i++
		}
	}
	if len(pairs) > max {
		pairs = pairs[len(pairs)-max:]
	}
	return pairs, nil
}

func (s *SQLiteStore) sessionSummaries(ctx context.Context, sessionIDs []string, limit int) ([]model.MemoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records
	          WHERE deleted = 0 AND type = ? AND session_id IN (` + placeholders(len(sessionIDs)) + `)
	          ORDER BY created_at DESC LIMIT ?`
	args := append([]interface{}{model.TypeSummary}, toAnySlice(sessionIDs)...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, rec)
	}
	return summaries, rows.Err()
}
