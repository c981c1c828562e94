package api

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/outreach"
	"github.com/djlord-it/talentledger/internal/workflow"
)

type mockDispatcher struct {
	mu       sync.Mutex
	requests []domain.DispatchRequest
	result   workflow.Result
	err      error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, req domain.DispatchRequest) (workflow.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result, m.err
}

type emailCall struct {
	recruiterID uuid.UUID
	req         outreach.EmailRequest
}

type mockEmailSender struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (m *mockEmailSender) SendCandidateEmail(ctx context.Context, recruiterID uuid.UUID, req outreach.EmailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{recruiterID: recruiterID, req: req})
	return m.err
}

type mockSignals struct {
	mu      sync.Mutex
	signals []domain.Signal
}

func (m *mockSignals) Publish(ctx context.Context, sig domain.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
}

type mockHealth struct {
	err error
}

func (m *mockHealth) Ping(ctx context.Context) error {
	return m.err
}

// failingStore reads an empty ledger and rejects every write.
type failingStore struct{}

func (failingStore) InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error) {
	return uuid.Nil, errors.New("connection reset by peer")
}

func (failingStore) QueryInteractions(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	return nil, nil
}

type mockDispatchLog struct {
	records       []domain.DispatchRecord
	err           error
	limit, offset int
}

func (m *mockDispatchLog) ListDispatchRecords(ctx context.Context, limit, offset int) ([]domain.DispatchRecord, error) {
	m.limit, m.offset = limit, offset
	return m.records, m.err
}
