// Package testutil provides shared test helpers for talentledger.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Tick returns the current time and then advances by d, so successive calls
// produce strictly increasing timestamps.
func (c *FakeClock) Tick(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(d)
	return now
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ObservedLogger returns a logger that records entries at level and above.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// FakeTimer is a timer created by FakeTimers. It only fires when the test
// asks it to.
type FakeTimer struct {
	owner   *FakeTimers
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// Stop reports whether the timer was pending when stopped.
func (t *FakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// FakeTimers is a drop-in for time.AfterFunc with manual firing.
type FakeTimers struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// AfterFunc records fn to run when Fire is called.
func (f *FakeTimers) AfterFunc(d time.Duration, fn func()) *FakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &FakeTimer{owner: f, delay: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Pending returns the number of timers that are neither stopped nor fired.
func (f *FakeTimers) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Created returns the total number of timers ever created.
func (f *FakeTimers) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// LastDelay returns the delay of the most recently created timer.
func (f *FakeTimers) LastDelay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return 0
	}
	return f.timers[len(f.timers)-1].delay
}

// Fire runs every pending timer synchronously and returns how many ran.
func (f *FakeTimers) Fire() int {
	f.mu.Lock()
	var due []*FakeTimer
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	f.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}
