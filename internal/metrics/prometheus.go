package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *zap.Logger

	// Ledger metrics
	ledgerLoadsTotal          *prometheus.CounterVec
	ledgerLoadDuration        prometheus.Histogram
	ledgerAppendsTotal        *prometheus.CounterVec
	ledgerReloadsScheduled    *prometheus.CounterVec
	ledgerReloadsTotal        *prometheus.CounterVec
	ledgerStaleReloadsTotal   prometheus.Counter
	ledgerSessionsActiveGauge prometheus.Gauge

	// Signal bus metrics
	signalsPublishedTotal *prometheus.CounterVec
	signalSubscribers     *prometheus.GaugeVec
	signalPanicsTotal     *prometheus.CounterVec

	// Workflow gateway metrics
	dispatchAttemptsTotal  *prometheus.CounterVec
	dispatchDuration       prometheus.Histogram
	dispatchOutcomesTotal  *prometheus.CounterVec
	dispatchLogErrorsTotal prometheus.Counter
	contactNotifyTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PrometheusSink{logger: logger.Named("metrics")}
	s.initLedgerMetrics(reg)
	s.initSignalMetrics(reg)
	s.initWorkflowMetrics(reg)
	return s
}

func (s *PrometheusSink) initLedgerMetrics(reg prometheus.Registerer) {
	s.ledgerLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_ledger_loads_total",
		Help: "Total number of ledger loads by result.",
	}, []string{"result"})
	s.ledgerLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "talentledger_ledger_load_duration_seconds",
		Help:    "Duration of ledger store queries in seconds.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	s.ledgerAppendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_ledger_appends_total",
		Help: "Total number of interaction appends by kind and result.",
	}, []string{"kind", "result"})
	s.ledgerReloadsScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_ledger_reloads_scheduled_total",
		Help: "Signal-triggered reloads scheduled; coalesced=true when an unfired reload was replaced.",
	}, []string{"coalesced"})
	s.ledgerReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_ledger_reloads_total",
		Help: "Total number of completed ledger reloads by trigger and result.",
	}, []string{"trigger", "result"})
	s.ledgerStaleReloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talentledger_ledger_stale_reloads_discarded_total",
		Help: "Reload results discarded because a newer reload had already been applied.",
	})
	s.ledgerSessionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talentledger_ledger_sessions_active",
		Help: "Number of live per-recruiter ledger sessions.",
	})

	s.register(reg, s.ledgerLoadsTotal, "talentledger_ledger_loads_total")
	s.register(reg, s.ledgerLoadDuration, "talentledger_ledger_load_duration_seconds")
	s.register(reg, s.ledgerAppendsTotal, "talentledger_ledger_appends_total")
	s.register(reg, s.ledgerReloadsScheduled, "talentledger_ledger_reloads_scheduled_total")
	s.register(reg, s.ledgerReloadsTotal, "talentledger_ledger_reloads_total")
	s.register(reg, s.ledgerStaleReloadsTotal, "talentledger_ledger_stale_reloads_discarded_total")
	s.register(reg, s.ledgerSessionsActiveGauge, "talentledger_ledger_sessions_active")
}

func (s *PrometheusSink) initSignalMetrics(reg prometheus.Registerer) {
	s.signalsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_signals_published_total",
		Help: "Total number of signals published by name.",
	}, []string{"signal"})
	s.signalSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "talentledger_signal_subscribers",
		Help: "Subscribers invoked by the most recent publish of each signal.",
	}, []string{"signal"})
	s.signalPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_signal_handler_panics_total",
		Help: "Total number of recovered signal handler panics.",
	}, []string{"signal"})

	s.register(reg, s.signalsPublishedTotal, "talentledger_signals_published_total")
	s.register(reg, s.signalSubscribers, "talentledger_signal_subscribers")
	s.register(reg, s.signalPanicsTotal, "talentledger_signal_handler_panics_total")
}

func (s *PrometheusSink) initWorkflowMetrics(reg prometheus.Registerer) {
	s.dispatchAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_workflow_dispatch_attempts_total",
		Help: "Total number of remote workflow calls by workflow and status class.",
	}, []string{"workflow", "status_class"})
	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "talentledger_workflow_dispatch_duration_seconds",
		Help:    "Remote workflow call latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.dispatchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_workflow_dispatch_outcomes_total",
		Help: "Total number of dispatch outcomes by workflow.",
	}, []string{"workflow", "outcome"})
	s.dispatchLogErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talentledger_workflow_dispatch_log_errors_total",
		Help: "Total number of dispatch records that could not be persisted.",
	})
	s.contactNotifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentledger_workflow_contact_notifications_total",
		Help: "Best-effort candidate-contacted notifications by outcome.",
	}, []string{"outcome"})

	s.register(reg, s.dispatchAttemptsTotal, "talentledger_workflow_dispatch_attempts_total")
	s.register(reg, s.dispatchDuration, "talentledger_workflow_dispatch_duration_seconds")
	s.register(reg, s.dispatchOutcomesTotal, "talentledger_workflow_dispatch_outcomes_total")
	s.register(reg, s.dispatchLogErrorsTotal, "talentledger_workflow_dispatch_log_errors_total")
	s.register(reg, s.contactNotifyTotal, "talentledger_workflow_contact_notifications_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("failed to register collector", zap.String("name", name), zap.Error(err))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Ledger metrics implementation

func (s *PrometheusSink) LedgerLoadCompleted(duration time.Duration, err error) {
	s.ledgerLoadsTotal.WithLabelValues(resultLabel(err)).Inc()
	s.ledgerLoadDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) LedgerAppendCompleted(kind string, err error) {
	s.ledgerAppendsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
}

func (s *PrometheusSink) LedgerReloadScheduled(coalesced bool) {
	s.ledgerReloadsScheduled.WithLabelValues(strconv.FormatBool(coalesced)).Inc()
}

func (s *PrometheusSink) LedgerReloadCompleted(trigger string, err error) {
	s.ledgerReloadsTotal.WithLabelValues(trigger, resultLabel(err)).Inc()
}

func (s *PrometheusSink) LedgerStaleReloadDiscarded() {
	s.ledgerStaleReloadsTotal.Inc()
}

func (s *PrometheusSink) LedgerSessionsActive(count int) {
	s.ledgerSessionsActiveGauge.Set(float64(count))
}

// Signal bus metrics implementation

func (s *PrometheusSink) SignalPublished(name string, subscribers int) {
	s.signalsPublishedTotal.WithLabelValues(name).Inc()
	s.signalSubscribers.WithLabelValues(name).Set(float64(subscribers))
}

func (s *PrometheusSink) SignalHandlerPanic(name string) {
	s.signalPanicsTotal.WithLabelValues(name).Inc()
}

// Workflow gateway metrics implementation

func (s *PrometheusSink) DispatchAttemptCompleted(workflow, statusClass string, duration time.Duration) {
	s.dispatchAttemptsTotal.WithLabelValues(workflow, statusClass).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchOutcome(workflow, outcome string) {
	s.dispatchOutcomesTotal.WithLabelValues(workflow, outcome).Inc()
}

func (s *PrometheusSink) DispatchLogWriteFailed() {
	s.dispatchLogErrorsTotal.Inc()
}

func (s *PrometheusSink) ContactNotifyOutcome(outcome string) {
	s.contactNotifyTotal.WithLabelValues(outcome).Inc()
}

var _ Sink = (*PrometheusSink)(nil)
