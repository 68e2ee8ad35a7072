package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/memerr"
	"github.com/engramdev/engram/internal/model"
)

// AddParams holds parameters for storing a record. Zero values get
// explicit defaults at construction: role user, type derived from
// role, weight 5.0, timestamp now.
type AddParams struct {
	Content   string
	Role      model.Role
	Type      string
	SessionID string
	GroupID   string
	Timestamp time.Time
	Weight    float64
	Meta      map[string]string
}

const recordColumns = `id, content, role, type, session_id, group_id, weight,
	created_at, last_accessed_at, last_decayed_at, archived, deleted, meta`

// Add stores a record together with its embedding. The relational row,
// the vector row and the index entry commit or fail as one: the two
// rows are staged in a transaction, the index add runs before the
// commit, and a failed commit after a successful index add triggers a
// compensating index delete. The caller receives either a valid id or
// a typed error, never a partially committed id.
func (s *SQLiteStore) Add(ctx context.Context, p AddParams) (string, error) {
	if p.Content == "" {
		return "", &memerr.ValidationError{Field: "content", Reason: "empty"}
	}
	role := p.Role
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRoles[role] {
		return "", &memerr.ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}
	typ := p.Type
	if typ == "" {
		switch role {
		case model.RoleAssistant:
			typ = model.TypeAssistant
		case model.RoleSystem:
			typ = model.TypeSystem
		default:
			typ = model.TypeUserInput
		}
	}
	weight := p.Weight
	if weight == 0 {
		weight = model.DefaultWeight
	}
	weight = model.ClampWeight(weight)
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	vec, err := s.emb.Embed(ctx, p.Content)
	if err != nil {
		return "", &memerr.VectorizationError{Err: err}
	}

	var metaJSON *string
	if len(p.Meta) > 0 {
		b, _ := json.Marshal(p.Meta)
		v := string(b)
		metaJSON = &v
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := s.newID()
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &memerr.StorageError{Op: "add: begin", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, content, role, type, session_id, group_id, weight, created_at, archived, deleted, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		id, p.Content, string(role), typ, nullable(p.SessionID), nullable(p.GroupID),
		weight, ts.Format(time.RFC3339), metaJSON)
	if err != nil {
		return "", &memerr.StorageError{Op: "add: insert record", Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO vectors (record_id, embedding, model, created_at) VALUES (?, ?, ?, ?)`,
		id, encodeVector(vec), s.emb.Model(), now)
	if err != nil {
		return "", &memerr.StorageError{Op: "add: insert vector", Err: err}
	}

	// Index before commit: an index failure rolls the rows back, and
	// nothing persists on either side.
	if err := s.idx.Add(ctx, []string{id}, [][]float32{vec}); err != nil {
		return "", &memerr.IndexError{Op: "add", Err: err}
	}

	if err := tx.Commit(); err != nil {
		// The index is now ahead of the store. Compensate, and if
		// even that fails, surface the disagreement to health.
		if delErr := s.idx.Delete(ctx, []string{id}); delErr != nil {
			cerr := &memerr.ConsistencyError{
				Detail: "record " + id + " indexed but not stored, rollback failed",
				Err:    delErr,
			}
			s.recordConsistency(cerr)
			return "", cerr
		}
		return "", &memerr.StorageError{Op: "add: commit", Err: err}
	}

	return id, nil
}

// Get returns a non-deleted record and bumps its access time.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ? AND deleted = 0`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, &memerr.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &memerr.StorageError{Op: "get", Err: err}
	}

	// Access tracking is best-effort.
	now := time.Now().UTC().Format(time.RFC3339)
	s.db.ExecContext(ctx, `UPDATE records SET last_accessed_at = ? WHERE id = ?`, now, id)

	return &rec, nil
}

// GetMany returns all found non-deleted records for ids, in no
// particular order. Missing ids are skipped, not an error.
func (s *SQLiteStore) GetMany(ctx context.Context, ids []string) ([]model.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE deleted = 0 AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, &memerr.StorageError{Op: "get many", Err: err}
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &memerr.StorageError{Op: "get many: scan", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &memerr.StorageError{Op: "get many", Err: err}
	}

	if len(records) > 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		found := make([]string, len(records))
		for i, r := range records {
			found[i] = r.ID
		}
		s.db.ExecContext(ctx,
			`UPDATE records SET last_accessed_at = ? WHERE id IN (`+placeholders(len(found))+`)`,
			append([]interface{}{now}, toAnySlice(found)...)...)
	}

	return records, nil
}

// UpdateWeight sets a record's weight, clamped to the legal bounds.
func (s *SQLiteStore) UpdateWeight(ctx context.Context, id string, weight float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET weight = ? WHERE id = ? AND deleted = 0`,
		model.ClampWeight(weight), id)
	if err != nil {
		return &memerr.StorageError{Op: "update weight", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &memerr.NotFoundError{ID: id}
	}
	return nil
}

// Delete soft-deletes a record: the row stays for audit, the vector
// row and index entry go away together (same contract as Add).
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id, false)
}

// Purge hard-deletes a record: row, vector row, associations and
// index entry are removed together.
func (s *SQLiteStore) Purge(ctx context.Context, id string) error {
	return s.remove(ctx, id, true)
}

func (s *SQLiteStore) remove(ctx context.Context, id string, hard bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &memerr.StorageError{Op: "remove: begin", Err: err}
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE id = ? AND deleted = 0`, id).Scan(&exists); err != nil {
		return &memerr.StorageError{Op: "remove: lookup", Err: err}
	}
	if exists == 0 {
		return &memerr.NotFoundError{ID: id}
	}

	// Keep the embedding around in case the commit fails after the
	// index delete and the entry has to be restored.
	var blob []byte
	hadVector := true
	if err := tx.QueryRowContext(ctx,
		`SELECT embedding FROM vectors WHERE record_id = ?`, id).Scan(&blob); err != nil {
		if err != sql.ErrNoRows {
			return &memerr.StorageError{Op: "remove: read vector", Err: err}
		}
		hadVector = false
	}

	if hard {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM associations WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return &memerr.StorageError{Op: "purge: associations", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE record_id = ?`, id); err != nil {
			return &memerr.StorageError{Op: "purge: vector", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
			return &memerr.StorageError{Op: "purge: record", Err: err}
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE records SET deleted = 1 WHERE id = ?`, id); err != nil {
			return &memerr.StorageError{Op: "delete: record", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE record_id = ?`, id); err != nil {
			return &memerr.StorageError{Op: "delete: vector", Err: err}
		}
	}

	if hadVector {
		if err := s.idx.Delete(ctx, []string{id}); err != nil {
			return &memerr.IndexError{Op: "remove", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		if hadVector {
			if addErr := s.idx.Add(ctx, []string{id}, [][]float32{decodeVector(blob)}); addErr != nil {
				cerr := &memerr.ConsistencyError{
					Detail: "record " + id + " dropped from index but still stored, rollback failed",
					Err:    addErr,
				}
				s.recordConsistency(cerr)
				return cerr
			}
		}
		return &memerr.StorageError{Op: "remove: commit", Err: err}
	}

	return nil
}

// SetArchived flips the archived flag and sets the record's weight.
// Restores also refresh last_accessed.
func (s *SQLiteStore) SetArchived(ctx context.Context, id string, archived bool, weight float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	weight = model.ClampWeight(weight)
	var res sql.Result
	var err error
	if archived {
		res, err = s.db.ExecContext(ctx,
			`UPDATE records SET archived = 1, weight = ? WHERE id = ? AND deleted = 0`, weight, id)
	} else {
		now := time.Now().UTC().Format(time.RFC3339)
		res, err = s.db.ExecContext(ctx,
			`UPDATE records SET archived = 0, weight = ?, last_accessed_at = ? WHERE id = ? AND deleted = 0`,
			weight, now, id)
	}
	if err != nil {
		return &memerr.StorageError{Op: "set archived", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &memerr.NotFoundError{ID: id}
	}
	return nil
}

// SetDecayed stores a decayed weight and stamps when decay last ran
// for the record, making re-runs within the same day no-ops.
func (s *SQLiteStore) SetDecayed(ctx context.Context, id string, weight float64, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET weight = ?, last_decayed_at = ? WHERE id = ? AND deleted = 0`,
		model.ClampWeight(weight), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return &memerr.StorageError{Op: "set decayed", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &memerr.NotFoundError{ID: id}
	}
	return nil
}

// CandidateFilter selects records for lifecycle transitions.
type CandidateFilter struct {
	Archived     *bool
	MaxWeight    float64 // exclusive upper bound; 0 means unbounded
	OlderThan    time.Time
	ExcludeRoles []model.Role
	ExcludeTypes []string
}

// ListCandidates returns non-deleted records matching the filter.
func (s *SQLiteStore) ListCandidates(ctx context.Context, f CandidateFilter) ([]model.MemoryRecord, error) {
	where := []string{"deleted = 0"}
	var args []interface{}

	if f.Archived != nil {
		if *f.Archived {
			where = append(where, "archived = 1")
		} else {
			where = append(where, "archived = 0")
		}
	}
	if f.MaxWeight > 0 {
		where = append(where, "weight < ?")
		args = append(args, f.MaxWeight)
	}
	if !f.OlderThan.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, f.OlderThan.UTC().Format(time.RFC3339))
	}
	for _, r := range f.ExcludeRoles {
		where = append(where, "role != ?")
		args = append(args, string(r))
	}
	for _, t := range f.ExcludeTypes {
		where = append(where, "type != ?")
		args = append(args, t)
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + joinAnd(where) + ` ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &memerr.StorageError{Op: "list candidates", Err: err}
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &memerr.StorageError{Op: "list candidates: scan", Err: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) recordConsistency(err error) {
	s.healthMu.Lock()
	s.consistency = err
	s.healthMu.Unlock()
	s.log.Error("store/index consistency violated", zap.Error(err))
}

func (s *SQLiteStore) clearConsistency() {
	s.healthMu.Lock()
	s.consistency = nil
	s.healthMu.Unlock()
}

// Healthy reports an unresolved consistency violation or index
// persistence failure, for readiness checks.
func (s *SQLiteStore) Healthy() error {
	s.healthMu.Lock()
	cerr := s.consistency
	s.healthMu.Unlock()
	if cerr != nil {
		return cerr
	}
	return s.idx.Healthy()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func joinAnd(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " AND " + p
	}
	return out
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (model.MemoryRecord, error) {
	var r model.MemoryRecord
	var role string
	var sessionID, groupID, lastAccessed, lastDecayed, meta sql.NullString
	var createdAt string
	var archived, deleted int

	err := row.Scan(
		&r.ID, &r.Content, &role, &r.Type, &sessionID, &groupID, &r.Weight,
		&createdAt, &lastAccessed, &lastDecayed, &archived, &deleted, &meta,
	)
	if err != nil {
		return r, err
	}

	r.Role = model.Role(role)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.Archived = archived != 0
	r.Deleted = deleted != 0
	if sessionID.Valid {
		r.SessionID = sessionID.String
	}
	if groupID.Valid {
		r.GroupID = groupID.String
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		r.LastAccessed = &t
	}
	if lastDecayed.Valid {
		t, _ := time.Parse(time.RFC3339, lastDecayed.String)
		r.LastDecayed = &t
	}
	if meta.Valid {
		json.Unmarshal([]byte(meta.String), &r.Meta)
	}

	return r, nil
}
