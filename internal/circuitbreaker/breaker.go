// Package circuitbreaker stops calls to an automation endpoint after a run
// of consecutive failures, then lets a single probe through once the
// cooldown has elapsed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position for one endpoint.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type endpointState struct {
	state    State
	failures int
	openedAt time.Time
}

// Breaker tracks state per endpoint URL.
type Breaker struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	threshold int
	cooldown  time.Duration

	clock  func() time.Time
	logger *zap.Logger
}

// New creates a breaker that opens after threshold consecutive failures and
// stays open for cooldown. A threshold below 1 disables the breaker.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		endpoints: make(map[string]*endpointState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
}

func (b *Breaker) WithClock(clock func() time.Time) *Breaker {
	b.clock = clock
	return b
}

func (b *Breaker) WithLogger(logger *zap.Logger) *Breaker {
	if logger != nil {
		b.logger = logger.Named("circuitbreaker")
	}
	return b
}

// Allow returns ErrCircuitOpen when endpoint must not be called now.
func (b *Breaker) Allow(endpoint string) error {
	if b.threshold < 1 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.endpoints[endpoint]
	if !ok {
		return nil
	}

	switch s.state {
	case StateOpen:
		if b.clock().Sub(s.openedAt) >= b.cooldown {
			s.state = StateHalfOpen
			b.logger.Info("probing endpoint", zap.String("endpoint", endpoint))
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		// One probe at a time.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the breaker for endpoint.
func (b *Breaker) RecordSuccess(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.endpoints[endpoint]
	if !ok {
		return
	}
	if s.state != StateClosed {
		b.logger.Info("endpoint recovered", zap.String("endpoint", endpoint))
	}
	delete(b.endpoints, endpoint)
}

// RecordFailure counts a failure; reaching the threshold (or failing the
// half-open probe) opens the breaker.
func (b *Breaker) RecordFailure(endpoint string) {
	if b.threshold < 1 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.endpoints[endpoint]
	if !ok {
		s = &endpointState{}
		b.endpoints[endpoint] = s
	}

	s.failures++
	if s.state == StateHalfOpen || s.failures >= b.threshold {
		if s.state != StateOpen {
			b.logger.Warn("circuit opened",
				zap.String("endpoint", endpoint),
				zap.Int("consecutive_failures", s.failures),
				zap.Duration("cooldown", b.cooldown),
			)
		}
		s.state = StateOpen
		s.openedAt = b.clock()
	}
}

// State reports the current position for endpoint without changing it.
func (b *Breaker) State(endpoint string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.endpoints[endpoint]; ok {
		return s.state
	}
	return StateClosed
}
