package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docsummary/internal/models"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// UploadStore writes and lists upload audit rows.
type UploadStore struct {
	db *sql.DB
}

func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

// Record inserts rec and sets its ID.
func (s *UploadStore) Record(ctx context.Context, rec *models.UploadRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_runs (file_name, media_type, size, state, failure_stage, failure_kind, duration_ms, client_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileName, rec.MediaType, rec.Size, rec.State, rec.FailureStage, rec.FailureKind,
		rec.DurationMS, rec.ClientIP, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("upload run id: %w", err)
	}
	rec.ID = id
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *UploadStore) Recent(ctx context.Context, limit int) ([]*models.UploadRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, media_type, size, state, failure_stage, failure_kind, duration_ms, client_ip, created_at
		FROM upload_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload runs: %w", err)
	}
	defer rows.Close()

	var out []*models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.MediaType, &rec.Size, &rec.State,
			&rec.FailureStage, &rec.FailureKind, &rec.DurationMS, &rec.ClientIP, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload run: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
