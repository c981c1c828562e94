package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Ledger metrics
	LedgerLoadCompleted(duration time.Duration, err error)
	LedgerAppendCompleted(kind string, err error)
	LedgerReloadScheduled(coalesced bool)
	LedgerReloadCompleted(trigger string, err error)
	LedgerStaleReloadDiscarded()
	LedgerSessionsActive(count int)

	// Signal bus metrics
	SignalPublished(name string, subscribers int)
	SignalHandlerPanic(name string)

	// Workflow gateway metrics
	DispatchAttemptCompleted(workflow, statusClass string, duration time.Duration)
	DispatchOutcome(workflow, outcome string)
	DispatchLogWriteFailed()
	ContactNotifyOutcome(outcome string)
}

// Outcome constants for DispatchOutcome.
const (
	OutcomeTriggered     = "triggered"
	OutcomeFailed        = "failed"
	OutcomeLookupFailed  = "lookup_failed"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeInvalid       = "invalid"
	NotifyOutcomeSent    = "sent"
	NotifyOutcomeSkipped = "skipped"
	NotifyOutcomeFailed  = "failed"
)

// Reload triggers for LedgerReloadCompleted.
const (
	TriggerAppend = "append"
	TriggerSignal = "signal"
	TriggerResync = "resync"
	TriggerManual = "manual"
)

// StatusClass constants for DispatchAttemptCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a bounded-cardinality status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
			return StatusClassTimeout
		case strings.Contains(msg, "connection refused"),
			strings.Contains(msg, "no such host"),
			strings.Contains(msg, "network is unreachable"),
			strings.Contains(msg, "dial"):
			return StatusClassConnectionError
		default:
			return StatusClassOtherError
		}
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
