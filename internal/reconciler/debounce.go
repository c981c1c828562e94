package reconciler

import (
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the debouncer relies on.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc; tests substitute a manual implementation.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer holds at most one pending invocation of fn. Scheduling while a
// call is pending replaces the pending timer instead of queueing another.
type Debouncer struct {
	mu        sync.Mutex
	delay     time.Duration
	fn        func()
	afterFunc AfterFunc

	timer   Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		delay:     delay,
		fn:        fn,
		afterFunc: realAfterFunc,
	}
}

// Schedule arms the timer. It reports whether an unfired invocation was
// replaced.
func (d *Debouncer) Schedule() (coalesced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	if d.timer != nil {
		d.timer.Stop()
		coalesced = true
	}

	d.gen++
	gen := d.gen
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen) })
	return coalesced
}

// fire runs fn unless the timer that called it has since been replaced or
// the debouncer stopped. The generation check covers a timer that fired
// while Schedule was holding the lock.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether an invocation is armed and has not yet started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending invocation; later Schedule calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
