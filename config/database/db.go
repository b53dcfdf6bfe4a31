package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pocketmemory/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// schema is applied statement by statement so a failure names the step.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		doc_type TEXT NOT NULL CHECK (doc_type IN ('note', 'list')),
		list_type TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		note TEXT NOT NULL DEFAULT '',
		is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_owner_order_idx ON documents (owner_id, is_pinned DESC, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS list_items (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		content TEXT NOT NULL CHECK (content <> ''),
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		quantity TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS list_items_document_idx ON list_items (document_id, position)`,
}

// Connect opens the Postgres pool and pings it with a retry, in case of
// temporary DNS/network blips.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database URL is not configured")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	db.SetMaxOpenConns(5)

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", pingBackoff, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", pingAttempts, err)
}

// Migrate creates the documents and list_items tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	logger.Sugar.Infof("Applied %d schema statements", len(schema))
	return nil
}
