package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/workflow"
)

// Store implements ledger.Store, workflow.EntityStore and
// workflow.DispatchLog using PostgreSQL.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ workflow.EntityStore = (*Store)(nil)
	_ workflow.DispatchLog = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertInteraction writes rec and returns its ID. A nil rec.ID is replaced
// with a new random ID.
func (s *Store) InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	details, err := marshalMap(rec.Details)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal details: %w", err)
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, queryInsertInteraction,
		rec.ID,
		rec.RecruiterID,
		rec.CandidateID,
		string(rec.Kind),
		rec.OccurredAt,
		details,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// QueryInteractions returns every interaction owned by recruiterID, most
// recent first.
func (s *Store) QueryInteractions(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListInteractions, recruiterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.InteractionRecord{}
	for rows.Next() {
		var rec domain.InteractionRecord
		var kind string
		var details []byte

		err := rows.Scan(
			&rec.ID,
			&rec.RecruiterID,
			&rec.CandidateID,
			&kind,
			&rec.OccurredAt,
			&details,
			&rec.Notes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Kind = domain.InteractionKind(kind)
		if rec.Details, err = unmarshalMap(details); err != nil {
			return nil, fmt.Errorf("interaction %s details: %w", rec.ID, err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetCandidateByID returns workflow.ErrCandidateNotFound when no row matches.
func (s *Store) GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error) {
	var c domain.Candidate
	var profile []byte

	err := s.db.QueryRowContext(ctx, queryGetCandidateByID, id).Scan(
		&c.ID,
		&c.FullName,
		&c.Email,
		&c.Headline,
		&c.Location,
		pq.Array(&c.Skills),
		&c.ResumeURL,
		&profile,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, workflow.ErrCandidateNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}
	if c.Profile, err = unmarshalMap(profile); err != nil {
		return domain.Candidate{}, fmt.Errorf("candidate %s profile: %w", c.ID, err)
	}
	return c, nil
}

// UpsertCandidate creates or replaces a candidate. Used by seeding and tests;
// candidate management itself lives upstream.
func (s *Store) UpsertCandidate(ctx context.Context, c domain.Candidate) error {
	profile, err := marshalMap(c.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}

	_, err = s.db.ExecContext(ctx, queryUpsertCandidate,
		c.ID,
		c.FullName,
		c.Email,
		c.Headline,
		c.Location,
		pq.Array(skills),
		c.ResumeURL,
		profile,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

// InsertDispatchRecord appends one dispatch log entry.
func (s *Store) InsertDispatchRecord(ctx context.Context, rec domain.DispatchRecord) error {
	var response any
	if len(rec.RemoteResponse) > 0 {
		response = []byte(rec.RemoteResponse)
	}

	_, err := s.db.ExecContext(ctx, queryInsertDispatchRecord,
		rec.ID,
		string(rec.WorkflowKind),
		rec.CandidateID,
		rec.TemplateID,
		string(rec.Status),
		response,
		rec.TriggeredAt,
	)
	return err
}

// ListDispatchRecords returns dispatch log entries, most recent first.
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
		var response []byte

		err := rows.Scan(
			&rec.ID,
			&kind,
			&candidateID,
			&rec.TemplateID,
			&status,
			&response,
			&rec.TriggeredAt,
		)
		if err != nil {
			return nil, err
		}
		rec.WorkflowKind = domain.WorkflowKind(kind)
		rec.Status = domain.DispatchStatus(status)
		if candidateID.Valid {
			id := candidateID.UUID
			rec.CandidateID = &id
		}
		if len(response) > 0 {
			rec.RemoteResponse = json.RawMessage(response)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// marshalMap encodes m for a JSONB column; nil stays NULL.
func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalMap(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
