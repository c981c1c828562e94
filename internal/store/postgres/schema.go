package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates every table the store reads and writes. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS candidates (
    id          UUID PRIMARY KEY,
    full_name   TEXT NOT NULL,
    email       TEXT NOT NULL,
    headline    TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    skills      TEXT[] NOT NULL DEFAULT '{}',
    resume_url  TEXT NOT NULL DEFAULT '',
    profile     JSONB,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
    id            UUID PRIMARY KEY,
    recruiter_id  UUID NOT NULL,
    candidate_id  UUID NOT NULL,
    kind          TEXT NOT NULL,
    occurred_at   TIMESTAMPTZ NOT NULL,
    details       JSONB,
    notes         TEXT,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS interactions_recruiter_occurred_idx
    ON interactions (recruiter_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS dispatch_records (
    id               UUID PRIMARY KEY,
    workflow_kind    TEXT NOT NULL,
    candidate_id     UUID,
    template_id      TEXT NOT NULL,
    status           TEXT NOT NULL CHECK (status IN ('triggered', 'failed')),
    remote_response  JSONB,
    triggered_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS dispatch_records_triggered_idx
    ON dispatch_records (triggered_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
