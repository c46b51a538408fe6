// Package dreamlogs stores an offline copy of every generated dream.
package dreamlogs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/models"
)

type Repository interface {
	Add(ctx context.Context, rec models.DreamLogRecord) (int64, error)
	Latest(ctx context.Context, limit int) ([]models.DreamLogRecord, error)
	Count(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add inserts rec and returns the new row id. A zero CreatedAt is stamped
// with the current time.
func (r *SQLiteRepository) Add(ctx context.Context, rec models.DreamLogRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO dream_logs (prompt, interpretation, remote_url, created_at) VALUES (?, ?, ?, ?)`,
		rec.Prompt, nullString(rec.Interpretation), nullString(rec.RemoteURL), rec.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to add dream log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read dream log id: %w", err)
	}
	return id, nil
}

// Latest returns up to limit records, newest first.
func (r *SQLiteRepository) Latest(ctx context.Context, limit int) ([]models.DreamLogRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, prompt, interpretation, remote_url, created_at
		FROM dream_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dream logs: %w", err)
	}
	defer rows.Close()

	var out []models.DreamLogRecord
	for rows.Next() {
		var (
			rec            models.DreamLogRecord
			interpretation sql.NullString
			remoteURL      sql.NullString
			createdAt      int64
		)
		if err := rows.Scan(&rec.ID, &rec.Prompt, &interpretation, &remoteURL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dream log: %w", err)
		}
		if interpretation.Valid {
			rec.Interpretation = &interpretation.String
		}
		if remoteURL.Valid {
			rec.RemoteURL = &remoteURL.String
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dream logs: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dream_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dream logs: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
