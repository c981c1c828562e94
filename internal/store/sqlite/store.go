// Package sqlite stores the ledger, candidates and the dispatch log in an
// embedded SQLite database for single-node and local runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/workflow"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ workflow.EntityStore = (*Store)(nil)
	_ workflow.DispatchLog = (*Store)(nil)
)

// Open opens or creates the database at path with WAL journaling and a
// 5-second busy timeout, then applies Schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema on %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	details, err := marshalJSON(rec.Details)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertInteraction,
		rec.ID.String(),
		rec.RecruiterID.String(),
		rec.CandidateID.String(),
		string(rec.Kind),
		toNanos(rec.OccurredAt),
		details,
		rec.Notes,
		toNanos(rec.CreatedAt),
		toNanos(rec.UpdatedAt),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

func (s *Store) QueryInteractions(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListInteractions, recruiterID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.InteractionRecord{}
	for rows.Next() {
		var rec domain.InteractionRecord
		var kind string
		var details sql.NullString
		var occurredAt, createdAt, updatedAt int64

		err := rows.Scan(
			&rec.ID,
			&rec.RecruiterID,
			&rec.CandidateID,
			&kind,
			&occurredAt,
			&details,
			&rec.Notes,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Kind = domain.InteractionKind(kind)
		rec.OccurredAt = fromNanos(occurredAt)
		rec.CreatedAt = fromNanos(createdAt)
		rec.UpdatedAt = fromNanos(updatedAt)
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &rec.Details); err != nil {
				return nil, fmt.Errorf("interaction %s details: %w", rec.ID, err)
			}
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error) {
	var c domain.Candidate
	var skills string
	var profile sql.NullString
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, queryGetCandidateByID, id.String()).Scan(
		&c.ID,
		&c.FullName,
		&c.Email,
		&c.Headline,
		&c.Location,
		&skills,
		&c.ResumeURL,
		&profile,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, workflow.ErrCandidateNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}

	if err := json.Unmarshal([]byte(skills), &c.Skills); err != nil {
		return domain.Candidate{}, fmt.Errorf("candidate %s skills: %w", c.ID, err)
	}
	if profile.Valid {
		if err := json.Unmarshal([]byte(profile.String), &c.Profile); err != nil {
			return domain.Candidate{}, fmt.Errorf("candidate %s profile: %w", c.ID, err)
		}
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return c, nil
}

func (s *Store) UpsertCandidate(ctx context.Context, c domain.Candidate) error {
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	profile, err := marshalJSON(c.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryUpsertCandidate,
		c.ID.String(),
		c.FullName,
		c.Email,
		c.Headline,
		c.Location,
		string(skillsJSON),
		c.ResumeURL,
		profile,
		toNanos(c.CreatedAt),
		toNanos(c.UpdatedAt),
	)
	return err
}

func (s *Store) InsertDispatchRecord(ctx context.Context, rec domain.DispatchRecord) error {
	var candidateID, response any
	if rec.CandidateID != nil {
		candidateID = rec.CandidateID.String()
	}
	if len(rec.RemoteResponse) > 0 {
		response = string(rec.RemoteResponse)
	}

	_, err := s.db.ExecContext(ctx, queryInsertDispatchRecord,
		rec.ID.String(),
		string(rec.WorkflowKind),
		candidateID,
		rec.TemplateID,
		string(rec.Status),
		response,
		toNanos(rec.TriggeredAt),
	)
	return err
}

func (s *Store) ListDispatchRecords(ctx context.Context, limit, offset int) ([]domain.DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListDispatchRecords, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DispatchRecord
	for rows.Next() {
		var rec domain.DispatchRecord
		var kind, status string
		var candidateID uuid.NullUUID
		var response sql.NullString
		var triggeredAt int64

		err := rows.Scan(
			&rec.ID,
			&kind,
			&candidateID,
			&rec.TemplateID,
			&status,
			&response,
			&triggeredAt,
		)
		if err != nil {
			return nil, err
		}
		rec.WorkflowKind = domain.WorkflowKind(kind)
		rec.Status = domain.DispatchStatus(status)
		rec.TriggeredAt = fromNanos(triggeredAt)
		if candidateID.Valid {
			id := candidateID.UUID
			rec.CandidateID = &id
		}
		if response.Valid {
			rec.RemoteResponse = json.RawMessage(response.String)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func marshalJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
