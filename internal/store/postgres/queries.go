package postgres

const queryInsertInteraction = `
INSERT INTO interactions (id, recruiter_id, candidate_id, kind, occurred_at, details, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`

const queryListInteractions = `
SELECT
    id, recruiter_id, candidate_id, kind, occurred_at,
    details, notes, created_at, updated_at
FROM interactions
WHERE recruiter_id = $1
ORDER BY occurred_at DESC, created_at DESC, id DESC
`

const queryGetCandidateByID = `
SELECT
    id, full_name, email, headline, location, skills,
    resume_url, profile, created_at, updated_at
FROM candidates
WHERE id = $1
`

const queryUpsertCandidate = `
INSERT INTO candidates (id, full_name, email, headline, location, skills, resume_url, profile, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    full_name = EXCLUDED.full_name,
    email = EXCLUDED.email,
    headline = EXCLUDED.headline,
    location = EXCLUDED.location,
    skills = EXCLUDED.skills,
    resume_url = EXCLUDED.resume_url,
    profile = EXCLUDED.profile,
    updated_at = EXCLUDED.updated_at
`

const queryInsertDispatchRecord = `
INSERT INTO dispatch_records (id, workflow_kind, candidate_id, template_id, status, remote_response, triggered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryListDispatchRecords = `
SELECT
    id, workflow_kind, candidate_id, template_id, status,
    remote_response, triggered_at
FROM dispatch_records
ORDER BY triggered_at DESC
LIMIT $1 OFFSET $2
`
