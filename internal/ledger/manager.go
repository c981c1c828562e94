// Package ledger maintains a recruiter's cached, most-recent-first view of
// their candidate interactions and keeps it consistent with the store.
package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/metrics"
)

// Store is the persistence contract for interaction records.
type Store interface {
	// InsertInteraction persists rec and returns the generated ID.
	InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error)

	// QueryInteractions returns every interaction owned by recruiterID,
	// ordered by OccurredAt descending.
	QueryInteractions(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error)
}

// MetricsSink defines the interface for recording ledger metrics.
type MetricsSink interface {
	LedgerLoadCompleted(duration time.Duration, err error)
	LedgerAppendCompleted(kind string, err error)
	LedgerReloadScheduled(coalesced bool)
	LedgerReloadCompleted(trigger string, err error)
	LedgerStaleReloadDiscarded()
}

// AppendInput describes one interaction to record for the bound recruiter.
type AppendInput struct {
	CandidateID uuid.UUID
	Kind        domain.InteractionKind
	Notes       *string
	Details     map[string]any

	// OccurredAt defaults to the current time when zero.
	OccurredAt time.Time
}

// Manager owns the in-memory interaction cache for a single recruiter.
// It is safe for concurrent use; reloads may overlap and the most recently
// started one wins.
type Manager struct {
	store    Store
	reporter Reporter
	logger   *zap.Logger
	metrics  MetricsSink
	clock    func() time.Time

	seq atomic.Uint64

	mu          sync.RWMutex
	recruiterID uuid.UUID
	records     []domain.InteractionRecord
	appliedSeq  uint64
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReporter replaces the default LogReporter.
func WithReporter(r Reporter) Option {
	return func(m *Manager) {
		m.reporter = r
	}
}

func WithMetrics(sink MetricsSink) Option {
	return func(m *Manager) {
		m.metrics = sink
	}
}

// WithClock sets the clock used to default OccurredAt.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		logger:  zap.NewNop(),
		metrics: metrics.NewNoopSink(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("ledger")
	if m.reporter == nil {
		m.reporter = NewLogReporter(m.logger)
	}
	return m
}

// Recruiter returns the bound recruiter identity, or uuid.Nil.
func (m *Manager) Recruiter() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recruiterID
}

// SetRecruiter discards the cache, binds id and loads its interactions.
// Binding uuid.Nil leaves the manager signed out with an empty cache.
func (m *Manager) SetRecruiter(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.recruiterID = id
	m.records = nil
	// Loads started for the previous identity must not land in this cache.
	m.appliedSeq = m.seq.Add(1)
	m.mu.Unlock()

	_, err := m.Load(ctx, id)
	return err
}

// Load fetches every interaction for recruiterID and replaces the cache.
// Only the bound recruiter's interactions are cached; loading any other
// identity returns its rows and leaves the cache as it was.
//
// Without a recruiter the cache is reset to empty and no error is returned.
// A store failure is reported and returned as *LoadError, and the cache
// keeps its previous contents.
func (m *Manager) Load(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	records, err := m.load(ctx, recruiterID)
	if err != nil {
		m.reporter.Failure("load", err)
		return nil, err
	}
	return records, nil
}

// Reload re-reads the ledger for the bound recruiter. Errors are returned
// but not reported; callers are background paths.
func (m *Manager) Reload(ctx context.Context, trigger string) error {
	_, err := m.load(ctx, m.Recruiter())
	m.metrics.LedgerReloadCompleted(trigger, err)
	return err
}

func (m *Manager) load(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	seq := m.seq.Add(1)

	if recruiterID == uuid.Nil {
		m.apply(seq, nil)
		return []domain.InteractionRecord{}, nil
	}

	start := time.Now()
	records, err := m.store.QueryInteractions(ctx, recruiterID)
	m.metrics.LedgerLoadCompleted(time.Since(start), err)
	if err != nil {
		return nil, &LoadError{RecruiterID: recruiterID, Err: err}
	}

	domain.SortByOccurredAtDesc(records)
	if recruiterID != m.Recruiter() {
		return cloneRecords(records), nil
	}
	// A SetRecruiter racing past the check above bumps appliedSeq, so apply
	// still refuses these rows.
	if !m.apply(seq, records) {
		m.metrics.LedgerStaleReloadDiscarded()
		m.logger.Debug("discarded stale load result",
			zap.String(logging.FieldRecruiterID, recruiterID.String()),
			zap.Uint64("seq", seq),
		)
	}
	return cloneRecords(records), nil
}

// apply installs records if seq is newer than the last applied load.
func (m *Manager) apply(seq uint64, records []domain.InteractionRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.appliedSeq {
		return false
	}
	m.appliedSeq = seq
	m.records = records
	return true
}

// Append durably records an interaction for the bound recruiter and then
// reloads the cache from the store. The returned record is the one written.
//
// A reload failure after a successful write is logged; the append still
// succeeds because the record is durable.
func (m *Manager) Append(ctx context.Context, in AppendInput) (domain.InteractionRecord, error) {
	recruiterID := m.Recruiter()
	if recruiterID == uuid.Nil {
		m.reporter.Failure("append", ErrUnauthorized)
		return domain.InteractionRecord{}, ErrUnauthorized
	}

	if err := validateAppend(in); err != nil {
		m.reporter.Failure("append", err)
		return domain.InteractionRecord{}, err
	}

	now := m.clock().UTC()
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	rec := domain.InteractionRecord{
		RecruiterID: recruiterID,
		CandidateID: in.CandidateID,
		Kind:        in.Kind,
		OccurredAt:  occurredAt.UTC(),
		Details:     in.Details,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := m.store.InsertInteraction(ctx, rec)
	m.metrics.LedgerAppendCompleted(string(in.Kind), err)
	if err != nil {
		appendErr := &AppendError{CandidateID: in.CandidateID, Kind: in.Kind, Err: err}
		m.reporter.Failure("append", appendErr)
		return domain.InteractionRecord{}, appendErr
	}
	rec.ID = id

	m.reporter.Success("append", "interaction recorded")

	if err := m.Reload(ctx, metrics.TriggerAppend); err != nil {
		m.logger.Warn("reload after append failed",
			zap.String(logging.FieldRecruiterID, recruiterID.String()),
			zap.String(logging.FieldCandidateID, in.CandidateID.String()),
			zap.Error(err),
		)
	}
	return rec, nil
}

func validateAppend(in AppendInput) error {
	if in.CandidateID == uuid.Nil {
		return &ValidationError{Field: "candidate_id", Message: "is required"}
	}
	if !in.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: "unknown interaction kind " + string(in.Kind)}
	}
	return nil
}

// Records returns a copy of the cached interactions, most recent first.
func (m *Manager) Records() []domain.InteractionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.records)
}

// ByCandidate filters the cache by candidate. It performs no I/O.
func (m *Manager) ByCandidate(candidateID uuid.UUID) []domain.InteractionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.InteractionRecord{}
	for _, rec := range m.records {
		if rec.CandidateID == candidateID {
			out = append(out, rec)
		}
	}
	return out
}

func cloneRecords(records []domain.InteractionRecord) []domain.InteractionRecord {
	out := make([]domain.InteractionRecord, len(records))
	copy(out, records)
	return out
}
