package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
)

type mockEntities struct {
	mu         sync.Mutex
	candidates map[uuid.UUID]domain.Candidate
	err        error
	lookups    int
}

func newMockEntities(candidates ...domain.Candidate) *mockEntities {
	m := &mockEntities{candidates: make(map[uuid.UUID]domain.Candidate)}
	for _, c := range candidates {
		m.candidates[c.ID] = c
	}
	return m
}

func (m *mockEntities) GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return domain.Candidate{}, m.err
	}
	c, ok := m.candidates[id]
	if !ok {
		return domain.Candidate{}, ErrCandidateNotFound
	}
	return c, nil
}

type mockLog struct {
	mu      sync.Mutex
	records []domain.DispatchRecord
	err     error
}

func (m *mockLog) InsertDispatchRecord(ctx context.Context, rec domain.DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockLog) all() []domain.DispatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DispatchRecord, len(m.records))
	copy(out, m.records)
	return out
}

// mockSender returns a canned result and records every request.
type mockSender struct {
	mu       sync.Mutex
	result   SendResult
	requests []SendRequest
}

func (m *mockSender) Send(ctx context.Context, req SendRequest) SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result
}

func (m *mockSender) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockBreaker struct {
	mu        sync.Mutex
	open      bool
	successes int
	failures  int
}

var errTestCircuitOpen = errors.New("circuit breaker is open")

func (m *mockBreaker) Allow(endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return errTestCircuitOpen
	}
	return nil
}

func (m *mockBreaker) RecordSuccess(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *mockBreaker) RecordFailure(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

type analyticsCall struct {
	workflow domain.WorkflowKind
	outcome  string
}

type mockAnalytics struct {
	mu    sync.Mutex
	calls []analyticsCall
}

func (m *mockAnalytics) Record(ctx context.Context, workflow domain.WorkflowKind, outcome string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, analyticsCall{workflow: workflow, outcome: outcome})
}

type mockMetrics struct {
	mu             sync.Mutex
	outcomes       []string
	attempts       []string
	logWriteFailed int
	notifyOutcomes []string
}

func (m *mockMetrics) DispatchAttemptCompleted(workflow, statusClass string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, statusClass)
}

func (m *mockMetrics) DispatchOutcome(workflow, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) DispatchLogWriteFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logWriteFailed++
}

func (m *mockMetrics) ContactNotifyOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyOutcomes = append(m.notifyOutcomes, outcome)
}
