package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
)

type mockStore struct {
	mu        sync.Mutex
	records   []domain.InteractionRecord
	insertErr error
	queryErr  error
	inserts   int
	queries   int

	// onQuery runs after the result snapshot is taken, outside the lock.
	onQuery func(n int)
}

func (s *mockStore) InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return uuid.Nil, s.insertErr
	}
	rec.ID = uuid.New()
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *mockStore) QueryInteractions(ctx context.Context, recruiterID uuid.UUID) ([]domain.InteractionRecord, error) {
	s.mu.Lock()
	s.queries++
	n := s.queries
	err := s.queryErr
	var out []domain.InteractionRecord
	for _, r := range s.records {
		if r.RecruiterID == recruiterID {
			out = append(out, r)
		}
	}
	hook := s.onQuery
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	domain.SortByOccurredAtDesc(out)
	return out, nil
}

func (s *mockStore) add(rec domain.InteractionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.records = append(s.records, rec)
}

func (s *mockStore) setQueryErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

func (s *mockStore) setOnQuery(fn func(n int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQuery = fn
}

func (s *mockStore) counts() (inserts, queries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.queries
}

type mockReporter struct {
	mu        sync.Mutex
	successes []string
	failures  []error
}

func (r *mockReporter) Success(op string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, op)
}

func (r *mockReporter) Failure(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *mockReporter) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

type mockMetrics struct {
	mu             sync.Mutex
	loads          int
	appends        int
	scheduled      int
	reloads        []string
	staleDiscarded int
	sessionsActive int
}

func (m *mockMetrics) LedgerLoadCompleted(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *mockMetrics) LedgerAppendCompleted(kind string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
}

func (m *mockMetrics) LedgerReloadScheduled(coalesced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled++
}

func (m *mockMetrics) LedgerReloadCompleted(trigger string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads = append(m.reloads, trigger)
}

func (m *mockMetrics) LedgerStaleReloadDiscarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleDiscarded++
}

func (m *mockMetrics) LedgerSessionsActive(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsActive = count
}
