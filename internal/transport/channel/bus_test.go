package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/djlord-it/talentledger/internal/domain"
)

func newTestSignal() domain.Signal {
	return domain.PreScreeningCompleted{
		CandidateID: uuid.New(),
		RecruiterID: uuid.New(),
		Score:       0.5,
	}.Signal()
}

type mockMetrics struct {
	mu        sync.Mutex
	published map[string]int
	panics    int
}

func (m *mockMetrics) SignalPublished(name string, subscribers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.published == nil {
		m.published = make(map[string]int)
	}
	m.published[name]++
}

func (m *mockMetrics) SignalHandlerPanic(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func TestSignalBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewSignalBus()
	sig := newTestSignal()

	var got domain.Signal
	bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		got = s
	})

	bus.Publish(context.Background(), sig)

	// Delivery is synchronous: the handler has already run.
	if got.Name != sig.Name {
		t.Fatalf("Name = %q, want %q", got.Name, sig.Name)
	}
	if got.Payload["candidate_id"] != sig.Payload["candidate_id"] {
		t.Errorf("candidate_id = %v, want %v", got.Payload["candidate_id"], sig.Payload["candidate_id"])
	}
}

func TestSignalBus_RegistrationOrder(t *testing.T) {
	bus := NewSignalBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
			order = append(order, i)
		})
	}

	bus.Publish(context.Background(), newTestSignal())

	for i, v := range order {
		if v != i {
			t.Fatalf("handler order = %v, want ascending", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("invoked %d handlers, want 5", len(order))
	}
}

func TestSignalBus_OtherNamesNotDelivered(t *testing.T) {
	bus := NewSignalBus()

	var calls int
	bus.Subscribe("candidate.imported", func(ctx context.Context, s domain.Signal) {
		calls++
	})

	bus.Publish(context.Background(), newTestSignal())

	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestSignalBus_Unsubscribe(t *testing.T) {
	bus := NewSignalBus()

	var calls int
	unsubscribe := bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		calls++
	})

	bus.Publish(context.Background(), newTestSignal())
	unsubscribe()
	unsubscribe() // idempotent
	bus.Publish(context.Background(), newTestSignal())

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := bus.Subscribers(domain.SignalPreScreeningCompleted); n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}
}

func TestSignalBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewSignalBus()

	var first, second int
	var unsubscribe Unsubscribe
	unsubscribe = bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		first++
		unsubscribe()
	})
	bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		second++
	})

	bus.Publish(context.Background(), newTestSignal())
	bus.Publish(context.Background(), newTestSignal())

	if first != 1 {
		t.Errorf("first = %d, want 1", first)
	}
	if second != 2 {
		t.Errorf("second = %d, want 2", second)
	}
}

func TestSignalBus_PanicIsContained(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	metrics := &mockMetrics{}
	bus := NewSignalBus(WithLogger(zap.New(core)), WithMetrics(metrics))

	var after int
	bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		panic("boom")
	})
	bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
		after++
	})

	bus.Publish(context.Background(), newTestSignal())

	if after != 1 {
		t.Errorf("handler after panic ran %d times, want 1", after)
	}
	if observed.Len() != 1 {
		t.Errorf("logged %d entries, want 1", observed.Len())
	}
	if metrics.panics != 1 {
		t.Errorf("panics = %d, want 1", metrics.panics)
	}
	if metrics.published[string(domain.SignalPreScreeningCompleted)] != 1 {
		t.Errorf("published = %v, want 1", metrics.published)
	}
}

func TestSignalBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewSignalBus()

	var delivered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, s domain.Signal) {
				delivered.Add(1)
			})
			defer unsub()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newTestSignal())
		}()
	}
	wg.Wait()

	if n := bus.Subscribers(domain.SignalPreScreeningCompleted); n != 0 {
		t.Errorf("Subscribers = %d after all unsubscribed, want 0", n)
	}
}
