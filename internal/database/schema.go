package database

import (
	"context"
	"database/sql"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS scheduled_contents (
		id BIGSERIAL PRIMARY KEY,
		platform TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		scheduled_time TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		failure_cause TEXT NOT NULL DEFAULT '',
		metadata_json JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_contents_status ON scheduled_contents (status, scheduled_time)`,
	`CREATE TABLE IF NOT EXISTS chunked_uploads (
		upload_id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		file_type TEXT NOT NULL DEFAULT '',
		total_chunks INT NOT NULL,
		status TEXT NOT NULL DEFAULT 'uploading',
		token TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunked_uploads_expires ON chunked_uploads (expires_at)`,
}

// Migrate creates the tables the service needs. Statements are
// idempotent so running it on every start is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
