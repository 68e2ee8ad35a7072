// Package store owns the MemoryRecord lifecycle: it dual-writes to the
// relational store and the ANN index under a consistency contract, and
// is the only mutator of record and vector state.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/index"
)

// SQLiteStore implements the record store over SQLite plus an ANN
// index. Writes to records, vectors and the index are serialized by a
// single write lock so concurrent writers never interleave relational
// and index mutations.
type SQLiteStore struct {
	db      *sql.DB
	idx     index.Index
	emb     embedding.Embedder
	log     *zap.Logger
	entropy *rand.Rand

	writeMu sync.Mutex

	healthMu    sync.Mutex
	consistency error // last unresolved store/index disagreement
}

// NewSQLiteStore opens or creates the database at dbPath and binds it
// to the given index and embedder. All collaborators are injected;
// the store holds no process-wide state.
func NewSQLiteStore(dbPath string, idx index.Index, emb embedding.Embedder, log *zap.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	s := &SQLiteStore{
		db:      db,
		idx:     idx,
		emb:     emb,
		log:     log,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		role             TEXT NOT NULL DEFAULT 'user',
		type             TEXT NOT NULL DEFAULT 'user_input',
		session_id       TEXT,
		group_id         TEXT,
		weight           REAL NOT NULL DEFAULT 5.0,
		created_at       TEXT NOT NULL,
		last_accessed_at TEXT,
		last_decayed_at  TEXT,
		archived         INTEGER NOT NULL DEFAULT 0,
		deleted          INTEGER NOT NULL DEFAULT 0,
		meta             TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_records_state ON records(deleted, archived);
	CREATE INDEX IF NOT EXISTS idx_records_weight ON records(weight);

	CREATE TABLE IF NOT EXISTS vectors (
		record_id  TEXT PRIMARY KEY REFERENCES records(id),
		embedding  BLOB NOT NULL,
		model      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS associations (
		source_id         TEXT NOT NULL REFERENCES records(id),
		target_id         TEXT NOT NULL REFERENCES records(id),
		type              TEXT NOT NULL,
		strength          REAL NOT NULL DEFAULT 0.5,
		created_at        TEXT NOT NULL,
		last_activated_at TEXT,
		PRIMARY KEY (source_id, target_id, type)
	);
	CREATE INDEX IF NOT EXISTS idx_assoc_source ON associations(source_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		started_at     TEXT NOT NULL,
		last_active_at TEXT NOT NULL,
		ended_at       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(ended_at, last_active_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close snapshots the index and closes the database. An index save
// failure is logged and reported by Healthy, not returned, so shutdown
// always releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.idx.Save(); err != nil {
		s.log.Warn("index save on close failed", zap.Error(err))
	}
	return s.db.Close()
}

// SaveIndex snapshots the ANN index. The maintenance task calls this
// to retry a previously failed save.
func (s *SQLiteStore) SaveIndex() error {
	return s.idx.Save()
}

// placeholders returns n comma-joined SQL placeholders for an IN
// clause with bound params.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnySlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// encodeVector packs a float32 vector as little-endian bytes for BLOB
// storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
