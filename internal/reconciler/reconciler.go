// Package reconciler re-synchronizes a ledger cache with its store after
// out-of-band writes.
//
// A completion signal means another component has committed a write that
// this process did not make. Reads may not observe that write immediately,
// so the reload is deferred by a settling delay. Signals arriving while a
// reload is pending collapse into that single reload. The settling delay
// bounds staleness; it does not guarantee the write is visible.
//
// An optional cron schedule adds periodic full resyncs as a safety net for
// signals that were never published.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/cron"
	"github.com/djlord-it/talentledger/internal/metrics"
)

// DefaultSettleDelay is the wait between a completion signal and the reload
// it triggers. Tunable through Config.SettleDelay.
const DefaultSettleDelay = time.Second

// Reloader re-reads the ledger. trigger is one of the metrics.Trigger* values.
type Reloader interface {
	Reload(ctx context.Context, trigger string) error
}

// MetricsSink defines the interface for recording reconciler metrics.
type MetricsSink interface {
	LedgerReloadScheduled(coalesced bool)
}

// Config holds reconciler configuration.
type Config struct {
	// SettleDelay is how long to wait after a signal before reloading.
	// Default: 1 second.
	SettleDelay time.Duration

	// ResyncSchedule is a cron expression for periodic reloads.
	// Empty disables periodic resync.
	ResyncSchedule string

	// Timezone applies to ResyncSchedule. Default: UTC.
	Timezone string
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{SettleDelay: DefaultSettleDelay}
}

// Reconciler debounces reload requests and runs the optional resync loop.
type Reconciler struct {
	config    Config
	reloader  Reloader
	debouncer *Debouncer
	schedule  cron.Schedule
	logger    *zap.Logger
	metrics   MetricsSink
	clock     func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(sink MetricsSink) Option {
	return func(r *Reconciler) {
		r.metrics = sink
	}
}

// WithAfterFunc replaces time.AfterFunc for the settling timer.
func WithAfterFunc(fn AfterFunc) Option {
	return func(r *Reconciler) {
		r.debouncer.afterFunc = fn
	}
}

// WithClock replaces time.Now for the resync loop.
func WithClock(clock func() time.Time) Option {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

// New creates a Reconciler. It fails only when ResyncSchedule does not parse.
func New(config Config, reloader Reloader, opts ...Option) (*Reconciler, error) {
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultSettleDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		config:   config,
		reloader: reloader,
		logger:   zap.NewNop(),
		clock:    time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	r.debouncer = NewDebouncer(config.SettleDelay, r.settled)

	if config.ResyncSchedule != "" {
		sched, err := cron.NewParser().Parse(config.ResyncSchedule, config.Timezone)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("resync schedule: %w", err)
		}
		r.schedule = sched
	}

	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("reconciler")
	return r, nil
}

// Trigger schedules a reload after the settling delay, replacing any reload
// that is already pending.
func (r *Reconciler) Trigger(reason string) {
	coalesced := r.debouncer.Schedule()
	if r.metrics != nil {
		r.metrics.LedgerReloadScheduled(coalesced)
	}
	r.logger.Debug("reload scheduled",
		zap.String("reason", reason),
		zap.Duration("settle_delay", r.config.SettleDelay),
		zap.Bool("coalesced", coalesced),
	)
}

// Pending reports whether a settle-delayed reload is armed.
func (r *Reconciler) Pending() bool {
	return r.debouncer.Pending()
}

func (r *Reconciler) settled() {
	r.run(metrics.TriggerSignal)
}

func (r *Reconciler) run(trigger string) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	// Background reloads are not user-initiated: log, never surface.
	if err := r.reloader.Reload(ctx, trigger); err != nil {
		r.logger.Warn("background reload failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// Start launches the resync loop if a schedule is configured. The loop and
// any pending reload stop when ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
	loopCtx := r.ctx
	r.mu.Unlock()

	if r.schedule == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.resyncLoop(loopCtx)
	}()
}

func (r *Reconciler) resyncLoop(ctx context.Context) {
	r.logger.Info("resync loop started", zap.String("schedule", r.config.ResyncSchedule))
	for {
		now := r.clock()
		next := r.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("resync loop stopped")
			return
		case <-timer.C:
			r.run(metrics.TriggerResync)
		}
	}
}

// Stop cancels pending reloads and the resync loop, then waits for the loop
// to exit.
func (r *Reconciler) Stop() {
	r.debouncer.Stop()
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}
