package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) LedgerLoadCompleted(duration time.Duration, err error)            {}
func (n *NoopSink) LedgerAppendCompleted(kind string, err error)                     {}
func (n *NoopSink) LedgerReloadScheduled(coalesced bool)                             {}
func (n *NoopSink) LedgerReloadCompleted(trigger string, err error)                  {}
func (n *NoopSink) LedgerStaleReloadDiscarded()                                      {}
func (n *NoopSink) LedgerSessionsActive(count int)                                   {}
func (n *NoopSink) SignalPublished(name string, subscribers int)                     {}
func (n *NoopSink) SignalHandlerPanic(name string)                                   {}
func (n *NoopSink) DispatchAttemptCompleted(workflow, class string, d time.Duration) {}
func (n *NoopSink) DispatchOutcome(workflow, outcome string)                         {}
func (n *NoopSink) DispatchLogWriteFailed()                                          {}
func (n *NoopSink) ContactNotifyOutcome(outcome string)                              {}

var _ Sink = (*NoopSink)(nil)
