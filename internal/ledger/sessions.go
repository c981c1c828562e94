package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/reconciler"
)

// DefaultSessionTTL is how long an idle session is kept before Sweep evicts it.
const DefaultSessionTTL = 30 * time.Minute

// SessionsConfig holds session registry configuration.
type SessionsConfig struct {
	Reconciler reconciler.Config

	// TTL is the idle period after which Sweep evicts a session.
	// Zero uses DefaultSessionTTL.
	TTL time.Duration

	// Clock drives session expiry and is passed to every Manager.
	// Default: time.Now.
	Clock func() time.Time
}

// SessionsMetrics extends MetricsSink with a session gauge.
type SessionsMetrics interface {
	MetricsSink
	LedgerSessionsActive(count int)
}

type session struct {
	manager  *Manager
	stop     func()
	lastUsed time.Time
}

// Sessions keeps one Manager per recruiter. Managers are never shared
// between identities.
type Sessions struct {
	store  Store
	bus    Subscriber
	config SessionsConfig
	opts   []Option

	reconcilerOpts []reconciler.Option

	logger     *zap.Logger
	baseLogger *zap.Logger
	metrics    SessionsMetrics
	clock      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewSessions creates a registry. opts are applied to every Manager it
// creates, after the registry's own logger, metrics and clock.
func NewSessions(store Store, bus Subscriber, config SessionsConfig, logger *zap.Logger, sink SessionsMetrics, opts ...Option) *Sessions {
	if config.TTL <= 0 {
		config.TTL = DefaultSessionTTL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	s := &Sessions{
		store:    store,
		bus:      bus,
		config:   config,
		logger:   logging.Component(logger, "sessions"),
		metrics:  sink,
		clock:    config.Clock,
		sessions: make(map[uuid.UUID]*session),
	}

	s.opts = []Option{WithClock(config.Clock)}
	if sink != nil {
		s.opts = append(s.opts, WithMetrics(sink))
	}
	s.opts = append(s.opts, opts...)
	s.baseLogger = logging.OrNop(logger)
	return s
}

// Get returns the manager for recruiterID, creating and loading it on first
// use. A failed initial load is returned and the session is not kept.
func (s *Sessions) Get(ctx context.Context, recruiterID uuid.UUID) (*Manager, error) {
	if recruiterID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	if sess, ok := s.sessions[recruiterID]; ok {
		sess.lastUsed = s.clock()
		s.mu.Unlock()
		return sess.manager, nil
	}
	s.mu.Unlock()

	opts := append(append([]Option{}, s.opts...),
		WithLogger(s.baseLogger.With(zap.String(logging.FieldRecruiterID, recruiterID.String()))))
	m := NewManager(s.store, opts...)
	if err := m.SetRecruiter(ctx, recruiterID); err != nil {
		return nil, err
	}
	stop, err := m.Watch(s.bus, s.config.Reconciler, s.reconcilerOpts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[recruiterID]; ok {
		// Lost a creation race; keep the first manager.
		stop()
		existing.lastUsed = s.clock()
		return existing.manager, nil
	}
	s.sessions[recruiterID] = &session{manager: m, stop: stop, lastUsed: s.clock()}
	s.reportActive()
	s.logger.Debug("session opened", zap.String(logging.FieldRecruiterID, recruiterID.String()))
	return m, nil
}

// WithReconcilerOptions sets options passed to every session's reconciler.
func (s *Sessions) WithReconcilerOptions(opts ...reconciler.Option) *Sessions {
	s.reconcilerOpts = opts
	return s
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-s.config.TTL)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			sess.stop()
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.reportActive()
		s.logger.Info("evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops every session and unsubscribes it from the bus.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.stop()
		delete(s.sessions, id)
	}
	s.reportActive()
}

func (s *Sessions) reportActive() {
	if s.metrics != nil {
		s.metrics.LedgerSessionsActive(len(s.sessions))
	}
}
