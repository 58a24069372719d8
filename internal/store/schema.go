package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaDDL renders the subtitle_records/extraction_jobs DDL scoped to the
// configured Postgres schema. Ported from the project's SQL migrations;
// this path is a best-effort "CREATE IF NOT EXISTS" convenience for local
// development, never a substitute for running the real migrations in
// production (see DB_AUTO_CREATE in the environment reference).
func schemaDDL(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.subtitle_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			video_id VARCHAR(11) NOT NULL,
			language VARCHAR(20) NOT NULL,
			title TEXT,
			duration_seconds INTEGER,
			segments JSONB NOT NULL DEFAULT '[]',
			plain_text TEXT NOT NULL DEFAULT '',
			extraction_method VARCHAR(20),
			extraction_duration_ms INTEGER,
			extraction_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			extraction_error VARCHAR(500),
			proxy_used VARCHAR(255),
			checksum VARCHAR(64),
			auto_generated BOOLEAN NOT NULL DEFAULT TRUE,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_retry_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL,
			UNIQUE (video_id, language)
		)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_subtitle_records_video_id ON %q.subtitle_records (video_id)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_subtitle_records_created_at ON %q.subtitle_records (created_at)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_subtitle_records_extraction_status ON %q.subtitle_records (extraction_status)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.extraction_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			video_id VARCHAR(11) NOT NULL,
			language VARCHAR(20) NOT NULL,
			job_id VARCHAR(255) NOT NULL,
			job_status VARCHAR(20) NOT NULL DEFAULT 'queued',
			result JSONB,
			error VARCHAR(500),
			webhook_url TEXT,
			webhook_delivered BOOLEAN NOT NULL DEFAULT FALSE,
			webhook_delivery_status VARCHAR(20),
			webhook_delivery_error VARCHAR(500),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			duration_seconds DOUBLE PRECISION,
			attempt INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			UNIQUE (job_id)
		)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_extraction_jobs_video_id ON %q.extraction_jobs (video_id)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_extraction_jobs_job_status ON %q.extraction_jobs (job_status)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_extraction_jobs_created_at ON %q.extraction_jobs (created_at)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_extraction_jobs_pending_lookup ON %q.extraction_jobs (video_id, language, job_status)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_extraction_jobs_webhook_delivery_status ON %q.extraction_jobs (webhook_delivery_status)`, schema),
	}
}

// AutoCreateSchema applies the schema DDL if it does not already exist.
// Intended for local development only; see DB_AUTO_CREATE.
func AutoCreateSchema(ctx context.Context, db *sql.DB, schema string) error {
	for _, stmt := range schemaDDL(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: auto-create schema: %w", err)
		}
	}
	return nil
}
