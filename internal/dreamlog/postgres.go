package dreamlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/migrations"
	"github.com/dmitrijs2005/ruya/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresSink stores dreams in the dreams table of a Postgres database.
type PostgresSink struct {
	db dbx.DBTX
}

func NewPostgresSink(db dbx.DBTX) *PostgresSink {
	return &PostgresSink{db: db}
}

// OpenPostgres connects through the pgx driver and applies the dreams
// schema.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := dbx.Open(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate dream log: %w", err)
	}
	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Postgres)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, "postgres")
}

const dreamColumns = `id, user_id, prompt, interpretation, celestial_advice, generation_id,
	video_url, local_filename, resolution, duration, is_shared, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDream(row scanner) (models.RemoteDream, error) {
	var (
		d                                     models.RemoteDream
		interp, advice, genID, video, localFn sql.NullString
		created                               time.Time
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Prompt, &interp, &advice, &genID,
		&video, &localFn, &d.Resolution, &d.Duration, &d.IsShared, &created)
	if err != nil {
		return models.RemoteDream{}, err
	}

	d.Interpretation = nullable(interp)
	d.CelestialAdvice = nullable(advice)
	d.GenerationID = nullable(genID)
	d.VideoURL = nullable(video)
	d.LocalFilename = nullable(localFn)
	d.CreatedAt = &created
	return d, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (s *PostgresSink) Create(ctx context.Context, d models.RemoteDream) (models.RemoteDream, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO dreams (user_id, prompt, interpretation, celestial_advice, generation_id,
			video_url, local_filename, resolution, duration, is_shared)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+dreamColumns,
		d.UserID, d.Prompt, d.Interpretation, d.CelestialAdvice, d.GenerationID,
		d.VideoURL, d.LocalFilename, d.Resolution, d.Duration, d.IsShared)

	saved, err := scanDream(row)
	if err != nil {
		return models.RemoteDream{}, fmt.Errorf("failed to insert dream: %w", err)
	}
	return saved, nil
}

func (s *PostgresSink) List(ctx context.Context, userID string, limit int) ([]models.RemoteDream, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dreamColumns+`
		FROM dreams
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dreams: %w", err)
	}
	defer rows.Close()

	var out []models.RemoteDream
	for rows.Next() {
		d, err := scanDream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dream: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dreams: %w", err)
	}
	return out, nil
}

func (s *PostgresSink) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dreams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dream[%s]: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete dream[%s]: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

var _ Sink = (*PostgresSink)(nil)
