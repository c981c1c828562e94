package sqlite

// Schema mirrors the PostgreSQL tables. Identifiers are TEXT, timestamps are
// INTEGER unix nanoseconds, and JSON columns are TEXT.
const Schema = `
CREATE TABLE IF NOT EXISTS candidates (
    id          TEXT PRIMARY KEY,
    full_name   TEXT NOT NULL,
    email       TEXT NOT NULL,
    headline    TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    skills      TEXT NOT NULL DEFAULT '[]',
    resume_url  TEXT NOT NULL DEFAULT '',
    profile     TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
    id            TEXT PRIMARY KEY,
    recruiter_id  TEXT NOT NULL,
    candidate_id  TEXT NOT NULL,
    kind          TEXT NOT NULL,
    occurred_at   INTEGER NOT NULL,
    details       TEXT,
    notes         TEXT,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS interactions_recruiter_occurred_idx
    ON interactions (recruiter_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS dispatch_records (
    id               TEXT PRIMARY KEY,
    workflow_kind    TEXT NOT NULL,
    candidate_id     TEXT,
    template_id      TEXT NOT NULL,
    status           TEXT NOT NULL CHECK (status IN ('triggered', 'failed')),
    remote_response  TEXT,
    triggered_at     INTEGER NOT NULL
);
`

const queryInsertInteraction = `
INSERT INTO interactions (id, recruiter_id, candidate_id, kind, occurred_at, details, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const queryListInteractions = `
SELECT
    id, recruiter_id, candidate_id, kind, occurred_at,
    details, notes, created_at, updated_at
FROM interactions
WHERE recruiter_id = ?
ORDER BY occurred_at DESC, created_at DESC, id DESC
`

const queryGetCandidateByID = `
SELECT
    id, full_name, email, headline, location, skills,
    resume_url, profile, created_at, updated_at
FROM candidates
WHERE id = ?
`

const queryUpsertCandidate = `
INSERT INTO candidates (id, full_name, email, headline, location, skills, resume_url, profile, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    full_name = excluded.full_name,
    email = excluded.email,
    headline = excluded.headline,
    location = excluded.location,
    skills = excluded.skills,
    resume_url = excluded.resume_url,
    profile = excluded.profile,
    updated_at = excluded.updated_at
`

const queryInsertDispatchRecord = `
INSERT INTO dispatch_records (id, workflow_kind, candidate_id, template_id, status, remote_response, triggered_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const queryListDispatchRecords = `
SELECT
    id, workflow_kind, candidate_id, template_id, status,
    remote_response, triggered_at
FROM dispatch_records
ORDER BY triggered_at DESC
LIMIT ? OFFSET ?
`
