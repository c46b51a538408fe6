// Package repositories opens the local SQLite database and exposes the
// repositories that live in it.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/migrations"
	"github.com/dmitrijs2005/ruya/internal/repositories/dreamlogs"
	"github.com/dmitrijs2005/ruya/internal/repositories/metadata"
	"github.com/dmitrijs2005/ruya/internal/repositories/transactions"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	DB           *sql.DB
	Metadata     metadata.Repository
	DreamLogs    dreamlogs.Repository
	Transactions transactions.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLite)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, "sqlite")
}

// InitDatabase opens dsn, applies migrations and wires the repositories.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := dbx.Open(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Repositories{
		DB:           db,
		Metadata:     metadata.NewSQLiteRepository(db),
		DreamLogs:    dreamlogs.NewSQLiteRepository(db),
		Transactions: transactions.NewSQLiteRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
