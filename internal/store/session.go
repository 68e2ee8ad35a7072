package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/engramdev/engram/internal/memerr"
	"github.com/engramdev/engram/internal/model"
)

// EnsureSession returns the current open session, starting a new one
// when none exists or the last has been inactive past timeout. The
// superseded session is ended.
func (s *SQLiteStore) EnsureSession(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = model.DefaultSessionTimeout
	}
	now := time.Now().UTC()

	var id string
	var lastActiveStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, last_active_at FROM sessions WHERE ended_at IS NULL
		 ORDER BY last_active_at DESC LIMIT 1`).Scan(&id, &lastActiveStr)
	if err != nil && err != sql.ErrNoRows {
		return "", &memerr.StorageError{Op: "ensure session", Err: err}
	}

	if err == nil {
		lastActive, _ := time.Parse(time.RFC3339, lastActiveStr)
		if now.Sub(lastActive) < timeout {
			s.db.ExecContext(ctx,
				`UPDATE sessions SET last_active_at = ? WHERE id = ?`, now.Format(time.RFC3339), id)
			return id, nil
		}
		// Timed out: end it and fall through to a fresh session.
		s.db.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ? WHERE id = ?`, now.Format(time.RFC3339), id)
	}

	newID := s.newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, last_active_at) VALUES (?, ?, ?)`,
		newID, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return "", &memerr.StorageError{Op: "create session", Err: err}
	}
	return newID, nil
}

// EndSession explicitly closes a session.
func (s *SQLiteStore) EndSession(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, now, id)
	if err != nil {
		return &memerr.StorageError{Op: "end session", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &memerr.NotFoundError{ID: id}
	}
	return nil
}

// GetSession returns a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	var started, lastActive string
	var ended sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, last_active_at, ended_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &started, &lastActive, &ended)
	if err == sql.ErrNoRows {
		return nil, &memerr.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &memerr.StorageError{Op: "get session", Err: err}
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339, started)
	sess.LastActive, _ = time.Parse(time.RFC3339, lastActive)
	if ended.Valid {
		t, _ := time.Parse(time.RFC3339, ended.String)
		sess.EndedAt = &t
	}
	return &sess, nil
}
