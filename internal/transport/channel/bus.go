// Package channel provides the in-process completion signal bus.
//
// The bus is constructed once and injected into both producers (for example
// the pre-screening job) and subscribers (the ledger sessions). There is no
// package-level instance.
package channel

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
)

// Handler receives a published signal. It runs synchronously inside Publish.
type Handler func(ctx context.Context, sig domain.Signal)

// Unsubscribe deregisters a handler. Calling it more than once is a no-op.
type Unsubscribe func()

// MetricsSink defines the interface for recording bus metrics.
type MetricsSink interface {
	SignalPublished(name string, subscribers int)
	SignalHandlerPanic(name string)
}

type subscription struct {
	id      uint64
	handler Handler
}

// SignalBus is a single-process publish/subscribe mechanism keyed by signal name.
type SignalBus struct {
	mu     sync.RWMutex
	subs   map[domain.SignalName][]subscription
	nextID uint64

	logger  *zap.Logger
	metrics MetricsSink
}

// Option configures a SignalBus.
type Option func(*SignalBus)

// WithLogger attaches a logger used for handler panics.
func WithLogger(logger *zap.Logger) Option {
	return func(b *SignalBus) {
		if logger != nil {
			b.logger = logger.Named("signalbus")
		}
	}
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *SignalBus) {
		b.metrics = sink
	}
}

func NewSignalBus(opts ...Option) *SignalBus {
	b := &SignalBus{
		subs:   make(map[domain.SignalName][]subscription),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for name. The returned Unsubscribe must be
// called when the owner is torn down.
func (b *SignalBus) Subscribe(name domain.SignalName, handler Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *SignalBus) remove(name domain.SignalName, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			// Copy so snapshots held by in-flight publishes stay intact.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, name)
			} else {
				b.subs[name] = next
			}
			return
		}
	}
}

// Publish invokes every handler currently registered for sig.Name, in
// registration order, before returning. There is no delivery guarantee
// beyond that.
func (b *SignalBus) Publish(ctx context.Context, sig domain.Signal) {
	b.mu.RLock()
	subs := b.subs[sig.Name]
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.SignalPublished(string(sig.Name), len(subs))
	}

	for _, s := range subs {
		b.invoke(ctx, sig, s.handler)
	}
}

func (b *SignalBus) invoke(ctx context.Context, sig domain.Signal, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("signal handler panicked",
				zap.String("signal", string(sig.Name)),
				zap.String("panic", fmt.Sprint(r)),
			)
			if b.metrics != nil {
				b.metrics.SignalHandlerPanic(string(sig.Name))
			}
		}
	}()
	h(ctx, sig)
}

// Subscribers returns the number of handlers registered for name.
func (b *SignalBus) Subscribers(name domain.SignalName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}
