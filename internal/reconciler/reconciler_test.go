package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/djlord-it/talentledger/internal/metrics"
	"github.com/djlord-it/talentledger/internal/testutil"
)

type mockReloader struct {
	mu       sync.Mutex
	triggers []string
	err      error
	done     chan struct{}
}

func (m *mockReloader) Reload(ctx context.Context, trigger string) error {
	m.mu.Lock()
	m.triggers = append(m.triggers, trigger)
	err := m.err
	done := m.done
	m.mu.Unlock()
	if done != nil {
		select {
		case done <- struct{}{}:
		default:
		}
	}
	return err
}

func (m *mockReloader) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.triggers))
	copy(out, m.triggers)
	return out
}

type mockMetrics struct {
	mu        sync.Mutex
	scheduled []bool
}

func (m *mockMetrics) LedgerReloadScheduled(coalesced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, coalesced)
}

func newFakeReconciler(t *testing.T, reloader Reloader, opts ...Option) (*Reconciler, *testutil.FakeTimers) {
	t.Helper()
	timers := &testutil.FakeTimers{}
	opts = append(opts, WithAfterFunc(func(d time.Duration, f func()) Timer { return timers.AfterFunc(d, f) }))
	r, err := New(DefaultConfig(), reloader, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, timers
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SettleDelay != time.Second {
		t.Errorf("expected 1s settle delay, got %v", cfg.SettleDelay)
	}
	if cfg.ResyncSchedule != "" {
		t.Errorf("expected resync disabled, got %q", cfg.ResyncSchedule)
	}
}

func TestNew_InvalidScheduleRejected(t *testing.T) {
	_, err := New(Config{ResyncSchedule: "not a cron"}, &mockReloader{})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestNew_ZeroSettleDelayUsesDefault(t *testing.T) {
	timers := &testutil.FakeTimers{}
	r, err := New(Config{}, &mockReloader{},
		WithAfterFunc(func(d time.Duration, f func()) Timer { return timers.AfterFunc(d, f) }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	r.Trigger("test")
	if timers.LastDelay() != DefaultSettleDelay {
		t.Errorf("expected %v, got %v", DefaultSettleDelay, timers.LastDelay())
	}
}

func TestTrigger_ReloadsAfterSettleDelay(t *testing.T) {
	reloader := &mockReloader{}
	r, timers := newFakeReconciler(t, reloader)

	r.Trigger("signal")
	if len(reloader.calls()) != 0 {
		t.Fatal("reload must not run before the settle delay elapses")
	}
	if !r.Pending() {
		t.Fatal("expected pending reload")
	}

	timers.Fire()
	calls := reloader.calls()
	if len(calls) != 1 || calls[0] != metrics.TriggerSignal {
		t.Errorf("expected one signal reload, got %v", calls)
	}
}

func TestTrigger_CoalescesBurst(t *testing.T) {
	reloader := &mockReloader{}
	sink := &mockMetrics{}
	r, timers := newFakeReconciler(t, reloader, WithMetrics(sink))

	for i := 0; i < 5; i++ {
		r.Trigger("signal")
	}
	timers.Fire()

	if got := len(reloader.calls()); got != 1 {
		t.Errorf("expected 1 reload, got %d", got)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	want := []bool{false, true, true, true, true}
	if len(sink.scheduled) != len(want) {
		t.Fatalf("expected %d schedule events, got %d", len(want), len(sink.scheduled))
	}
	for i := range want {
		if sink.scheduled[i] != want[i] {
			t.Errorf("schedule %d: expected coalesced=%v, got %v", i, want[i], sink.scheduled[i])
		}
	}
}

func TestTrigger_ReloadErrorLoggedNotSurfaced(t *testing.T) {
	reloader := &mockReloader{err: errors.New("db down")}
	logger, logs := testutil.ObservedLogger(zapcore.WarnLevel)
	r, timers := newFakeReconciler(t, reloader, WithLogger(logger))

	r.Trigger("signal")
	timers.Fire()

	if logs.FilterMessage("background reload failed").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestStop_PendingReloadDropped(t *testing.T) {
	reloader := &mockReloader{}
	r, timers := newFakeReconciler(t, reloader)

	r.Trigger("signal")
	r.Stop()
	timers.Fire()

	if got := len(reloader.calls()); got != 0 {
		t.Errorf("expected no reload after Stop, got %d", got)
	}
}

func TestStart_ResyncLoopRunsOnSchedule(t *testing.T) {
	reloader := &mockReloader{done: make(chan struct{}, 1)}
	r, err := New(Config{ResyncSchedule: "@every 1s"}, reloader)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := testutil.TestContext(t)
	r.Start(ctx)
	defer r.Stop()

	select {
	case <-reloader.done:
	case <-time.After(3 * time.Second):
		t.Fatal("resync did not run")
	}

	calls := reloader.calls()
	if len(calls) == 0 || calls[0] != metrics.TriggerResync {
		t.Errorf("expected resync trigger, got %v", calls)
	}
}

func TestStart_NoScheduleNoLoop(t *testing.T) {
	reloader := &mockReloader{}
	r, err := New(DefaultConfig(), reloader)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Start(context.Background())
	r.Stop()

	if got := len(reloader.calls()); got != 0 {
		t.Errorf("expected no reloads, got %d", got)
	}
}
