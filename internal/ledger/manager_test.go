package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/metrics"
	"github.com/djlord-it/talentledger/internal/testutil"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, store *mockStore, opts ...Option) (*Manager, *mockReporter) {
	t.Helper()
	reporter := &mockReporter{}
	clock := testutil.NewFakeClock(baseTime)
	opts = append([]Option{WithReporter(reporter), WithClock(clock.Now)}, opts...)
	return NewManager(store, opts...), reporter
}

func TestManager_AppendOrdersMostRecentFirst(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &mockStore{}
	m, reporter := newTestManager(t, store)

	recruiter := uuid.New()
	candidate := uuid.New()
	other := uuid.New()

	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	if _, err := m.Append(ctx, AppendInput{
		CandidateID: candidate,
		Kind:        domain.InteractionSaved,
		OccurredAt:  baseTime,
	}); err != nil {
		t.Fatalf("append saved: %v", err)
	}
	if _, err := m.Append(ctx, AppendInput{
		CandidateID: candidate,
		Kind:        domain.InteractionEmailSent,
		OccurredAt:  baseTime.Add(time.Hour),
	}); err != nil {
		t.Fatalf("append email_sent: %v", err)
	}

	records := m.ByCandidate(candidate)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Kind != domain.InteractionEmailSent {
		t.Errorf("expected email_sent first, got %s", records[0].Kind)
	}
	if records[1].Kind != domain.InteractionSaved {
		t.Errorf("expected saved second, got %s", records[1].Kind)
	}
	for _, r := range records {
		if r.RecruiterID != recruiter {
			t.Errorf("record owned by %s, expected %s", r.RecruiterID, recruiter)
		}
	}

	if got := m.ByCandidate(other); len(got) != 0 {
		t.Errorf("expected no records for other candidate, got %d", len(got))
	}

	if len(reporter.successes) != 2 {
		t.Errorf("expected 2 success reports, got %d", len(reporter.successes))
	}
}

func TestManager_AppendDefaultsOccurredAtToNow(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &mockStore{}
	m, _ := newTestManager(t, store)
	if err := m.SetRecruiter(ctx, uuid.New()); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	rec, err := m.Append(ctx, AppendInput{CandidateID: uuid.New(), Kind: domain.InteractionHired})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !rec.OccurredAt.Equal(baseTime) {
		t.Errorf("expected OccurredAt %v, got %v", baseTime, rec.OccurredAt)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected store-assigned ID")
	}
}

func TestManager_AppendWithoutRecruiterIsUnauthorized(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &mockStore{}
	m, reporter := newTestManager(t, store)

	_, err := m.Append(ctx, AppendInput{CandidateID: uuid.New(), Kind: domain.InteractionSaved})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	inserts, _ := store.counts()
	if inserts != 0 {
		t.Errorf("expected no store writes, got %d", inserts)
	}
	if reporter.failureCount() != 1 {
		t.Errorf("expected 1 failure report, got %d", reporter.failureCount())
	}
}

func TestManager_AppendValidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &mockStore{}
	m, _ := newTestManager(t, store)
	if err := m.SetRecruiter(ctx, uuid.New()); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	tests := []struct {
		name  string
		in    AppendInput
		field string
	}{
		{"missing candidate", AppendInput{Kind: domain.InteractionSaved}, "candidate_id"},
		{"unknown kind", AppendInput{CandidateID: uuid.New(), Kind: "archived"}, "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Append(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}

	inserts, _ := store.counts()
	if inserts != 0 {
		t.Errorf("expected no store writes, got %d", inserts)
	}
}

func TestManager_AppendStoreFailureLeavesCacheUnchanged(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, reporter := newTestManager(t, store)
	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	store.mu.Lock()
	store.insertErr = errors.New("constraint violation")
	store.mu.Unlock()

	_, err := m.Append(ctx, AppendInput{CandidateID: uuid.New(), Kind: domain.InteractionRejected})
	var appendErr *AppendError
	if !errors.As(err, &appendErr) {
		t.Fatalf("expected *AppendError, got %v", err)
	}
	if appendErr.Kind != domain.InteractionRejected {
		t.Errorf("expected kind rejected, got %s", appendErr.Kind)
	}
	if got := len(m.Records()); got != 1 {
		t.Errorf("expected cache unchanged with 1 record, got %d", got)
	}
	if reporter.failureCount() != 1 {
		t.Errorf("expected 1 failure report, got %d", reporter.failureCount())
	}
}

func TestManager_AppendSucceedsWhenReloadFails(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := &mockStore{}
	logger, logs := testutil.ObservedLogger(zapcore.WarnLevel)
	m, reporter := newTestManager(t, store, WithLogger(logger))
	if err := m.SetRecruiter(ctx, uuid.New()); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	store.setQueryErr(errors.New("replica lag"))

	if _, err := m.Append(ctx, AppendInput{CandidateID: uuid.New(), Kind: domain.InteractionSaved}); err != nil {
		t.Fatalf("expected append to succeed, got %v", err)
	}
	if reporter.failureCount() != 0 {
		t.Errorf("reload failure must not be reported, got %d failures", reporter.failureCount())
	}
	if logs.FilterMessage("reload after append failed").Len() != 1 {
		t.Errorf("expected reload warning, got %v", logs.All())
	}
}

func TestManager_LoadFailureKeepsCache(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, reporter := newTestManager(t, store)

	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	store.setQueryErr(errors.New("connection reset"))
	records, err := m.Load(ctx, recruiter)

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if loadErr.RecruiterID != recruiter {
		t.Errorf("expected recruiter %s, got %s", recruiter, loadErr.RecruiterID)
	}
	if records != nil {
		t.Errorf("expected nil records on failure, got %d", len(records))
	}
	if got := len(m.Records()); got != 1 {
		t.Errorf("expected previous cache retained, got %d records", got)
	}
	if reporter.failureCount() != 1 {
		t.Errorf("expected 1 failure report, got %d", reporter.failureCount())
	}
}

func TestManager_LoadWithoutRecruiterResetsCache(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, reporter := newTestManager(t, store)

	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	records, err := m.Load(ctx, uuid.Nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty result, got %d", len(records))
	}
	if got := len(m.Records()); got != 0 {
		t.Errorf("expected cache reset, got %d records", got)
	}
	if reporter.failureCount() != 0 {
		t.Errorf("expected no failure report, got %d", reporter.failureCount())
	}
}

func TestManager_LoadOtherRecruiterLeavesCache(t *testing.T) {
	ctx := testutil.TestContext(t)
	bound, other := uuid.New(), uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: bound, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	store.add(domain.InteractionRecord{RecruiterID: other, CandidateID: uuid.New(), Kind: domain.InteractionHired, OccurredAt: baseTime})
	store.add(domain.InteractionRecord{RecruiterID: other, CandidateID: uuid.New(), Kind: domain.InteractionRejected, OccurredAt: baseTime.Add(time.Minute)})
	m, reporter := newTestManager(t, store)

	if err := m.SetRecruiter(ctx, bound); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	records, err := m.Load(ctx, other)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected the other recruiter's 2 records returned, got %d", len(records))
	}

	cached := m.Records()
	if len(cached) != 1 {
		t.Fatalf("expected cache to keep 1 record, got %d", len(cached))
	}
	for _, rec := range cached {
		if rec.RecruiterID != bound {
			t.Errorf("cache holds record owned by %s, bound to %s", rec.RecruiterID, bound)
		}
	}
	if m.Recruiter() != bound {
		t.Errorf("expected binding unchanged, got %s", m.Recruiter())
	}
	if reporter.failureCount() != 0 {
		t.Errorf("expected no failure report, got %d", reporter.failureCount())
	}
}

func TestManager_LoadWithoutBindingCachesNothing(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, _ := newTestManager(t, store)

	records, err := m.Load(ctx, recruiter)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record returned, got %d", len(records))
	}
	if got := len(m.Records()); got != 0 {
		t.Errorf("expected empty cache while signed out, got %d records", got)
	}
}

func TestManager_StaleReloadDiscarded(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	sink := &mockMetrics{}
	m, _ := newTestManager(t, store, WithMetrics(sink))

	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	store.setOnQuery(func(n int) {
		if n == 2 {
			close(started)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Reload(ctx, metrics.TriggerManual)
	}()
	<-started

	// The slow reload holds the one-record snapshot. A newer write lands
	// and a second reload completes first.
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionEmailSent, OccurredAt: baseTime.Add(time.Minute)})
	if err := m.Reload(ctx, metrics.TriggerManual); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	close(release)
	wg.Wait()

	if got := len(m.Records()); got != 2 {
		t.Errorf("expected newest reload to win with 2 records, got %d", got)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.staleDiscarded != 1 {
		t.Errorf("expected 1 stale reload discarded, got %d", sink.staleDiscarded)
	}
}

func TestManager_SetRecruiterDiscardsPreviousIdentity(t *testing.T) {
	ctx := testutil.TestContext(t)
	first, second := uuid.New(), uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: first, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, _ := newTestManager(t, store)

	if err := m.SetRecruiter(ctx, first); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}
	if got := len(m.Records()); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}

	if err := m.SetRecruiter(ctx, second); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}
	if got := len(m.Records()); got != 0 {
		t.Errorf("expected empty cache for second recruiter, got %d", got)
	}
	if m.Recruiter() != second {
		t.Errorf("expected bound recruiter %s, got %s", second, m.Recruiter())
	}
}

func TestManager_RecordsReturnsCopy(t *testing.T) {
	ctx := testutil.TestContext(t)
	recruiter := uuid.New()
	store := &mockStore{}
	store.add(domain.InteractionRecord{RecruiterID: recruiter, CandidateID: uuid.New(), Kind: domain.InteractionSaved, OccurredAt: baseTime})
	m, _ := newTestManager(t, store)
	if err := m.SetRecruiter(ctx, recruiter); err != nil {
		t.Fatalf("SetRecruiter: %v", err)
	}

	records := m.Records()
	records[0].Kind = domain.InteractionHired

	if m.Records()[0].Kind != domain.InteractionSaved {
		t.Error("mutating the returned slice must not affect the cache")
	}
}

func TestManager_ReloadRecordsTrigger(t *testing.T) {
	store := &mockStore{}
	sink := &mockMetrics{}
	m, _ := newTestManager(t, store, WithMetrics(sink))

	if err := m.Reload(context.Background(), metrics.TriggerResync); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.reloads) != 1 || sink.reloads[0] != metrics.TriggerResync {
		t.Errorf("expected resync reload recorded, got %v", sink.reloads)
	}
}
