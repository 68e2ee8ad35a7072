package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/engramdev/engram/internal/memerr"
	"github.com/engramdev/engram/internal/model"
)

// ExportAll returns all non-deleted records, archived included,
// ordered by creation time.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE deleted = 0 ORDER BY created_at`)
	if err != nil {
		return nil, &memerr.StorageError{Op: "export", Err: err}
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &memerr.StorageError{Op: "export: scan", Err: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// WriteBackup dumps all non-deleted records as JSON into dir, named by
// timestamp. The scheduler's backup task calls this on its interval.
func (s *SQLiteStore) WriteBackup(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		return "", &memerr.ValidationError{Field: "backup dir", Reason: "empty"}
	}
	records, err := s.ExportAll(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(dir, "memory-"+time.Now().UTC().Format("20060102-150405")+".json")
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// Import re-adds records from a backup, re-embedding their content.
// Returns the number imported; stops at the first failure.
func (s *SQLiteStore) Import(ctx context.Context, records []model.MemoryRecord) (int, error) {
	imported := 0
	for _, r := range records {
		_, err := s.Add(ctx, AddParams{
			Content:   r.Content,
			Role:      r.Role,
			Type:      r.Type,
			SessionID: r.SessionID,
			GroupID:   r.GroupID,
			Timestamp: r.CreatedAt,
			Weight:    r.Weight,
			Meta:      r.Meta,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
