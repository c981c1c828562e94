// Package workflow hands recruiter-initiated workflows to the external
// automation endpoint and records each determinate outcome in the dispatch
// log.
package workflow

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/metrics"
)

// Source identifies this system in outbound payloads.
const Source = "talentledger"

type EntityStore interface {
	// GetCandidateByID returns ErrCandidateNotFound when id is unknown.
	GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error)
}

type DispatchLog interface {
	InsertDispatchRecord(ctx context.Context, rec domain.DispatchRecord) error
}

type Sender interface {
	Send(ctx context.Context, req SendRequest) SendResult
}

// Breaker guards the automation endpoint.
type Breaker interface {
	Allow(endpoint string) error
	RecordSuccess(endpoint string)
	RecordFailure(endpoint string)
}

type AnalyticsSink interface {
	Record(ctx context.Context, workflow domain.WorkflowKind, outcome string, at time.Time)
}

// MetricsSink defines the interface for recording gateway metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchAttemptCompleted(workflow, statusClass string, duration time.Duration)
	DispatchOutcome(workflow, outcome string)
	DispatchLogWriteFailed()
}

// Payload is the JSON body sent to the automation endpoint.
type Payload struct {
	Trigger      string            `json:"trigger"`
	WorkflowKind string            `json:"workflowKind"`
	Candidate    *domain.Candidate `json:"candidate,omitempty"`
	TemplateID   string            `json:"templateId"`
	CustomData   map[string]any    `json:"customData"`
	Timestamp    string            `json:"timestamp"`
	Source       string            `json:"source"`
}

// Result describes a dispatch that reached the endpoint.
type Result struct {
	Record     domain.DispatchRecord
	StatusCode int
	Duration   time.Duration
}

type Gateway struct {
	entities  EntityStore
	log       DispatchLog
	sender    Sender
	breaker   Breaker       // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink
	logger    *zap.Logger
	clock     func() time.Time

	secret  string
	timeout time.Duration
}

func NewGateway(entities EntityStore, log DispatchLog, sender Sender) *Gateway {
	return &Gateway{
		entities: entities,
		log:      log,
		sender:   sender,
		metrics:  metrics.NewNoopSink(),
		logger:   zap.NewNop().Named("workflow"),
		clock:    time.Now,
		timeout:  DefaultTimeout,
	}
}

func (g *Gateway) WithBreaker(b Breaker) *Gateway {
	g.breaker = b
	return g
}

func (g *Gateway) WithAnalytics(sink AnalyticsSink) *Gateway {
	g.analytics = sink
	return g
}

func (g *Gateway) WithMetrics(sink MetricsSink) *Gateway {
	g.metrics = sink
	return g
}

func (g *Gateway) WithLogger(logger *zap.Logger) *Gateway {
	g.logger = logging.Component(logger, "workflow")
	return g
}

func (g *Gateway) WithClock(clock func() time.Time) *Gateway {
	g.clock = clock
	return g
}

// WithSigning sets the HMAC secret used to sign outbound payloads.
func (g *Gateway) WithSigning(secret string) *Gateway {
	g.secret = secret
	return g
}

func (g *Gateway) WithTimeout(timeout time.Duration) *Gateway {
	if timeout > 0 {
		g.timeout = timeout
	}
	return g
}

// Dispatch performs one outbound call. It never retries.
//
// Validation, configuration and lookup failures return before any call and
// write nothing. A non-2xx answer or transport failure writes a failed
// record and returns *RemoteCallError. A 2xx answer writes one triggered
// record. A dispatch log write failure is logged and does not fail the
// dispatch.
func (g *Gateway) Dispatch(ctx context.Context, req domain.DispatchRequest) (Result, error) {
	kind := string(req.WorkflowKind)

	if err := validate(req); err != nil {
		g.metrics.DispatchOutcome(kind, metrics.OutcomeInvalid)
		return Result{}, err
	}

	var candidate *domain.Candidate
	if req.CandidateID != nil {
		c, err := g.entities.GetCandidateByID(ctx, *req.CandidateID)
		if err != nil {
			g.metrics.DispatchOutcome(kind, metrics.OutcomeLookupFailed)
			return Result{}, &EntityLookupError{CandidateID: *req.CandidateID, Err: err}
		}
		candidate = &c
	}

	if g.breaker != nil {
		if err := g.breaker.Allow(req.TargetEndpoint); err != nil {
			g.logger.Warn("dispatch skipped",
				zap.String(logging.FieldWorkflow, kind),
				zap.String("endpoint", req.TargetEndpoint),
				zap.Error(err),
			)
			g.metrics.DispatchOutcome(kind, metrics.OutcomeCircuitOpen)
			g.recordAnalytics(ctx, req.WorkflowKind, metrics.OutcomeCircuitOpen)
			return Result{}, &RemoteCallError{Endpoint: req.TargetEndpoint, Err: err}
		}
	}

	now := g.clock().UTC()
	dispatchID := uuid.New()
	customData := req.CustomData
	if customData == nil {
		customData = map[string]any{}
	}
	payload := Payload{
		Trigger:      "workflow",
		WorkflowKind: kind,
		Candidate:    candidate,
		TemplateID:   req.TemplateID,
		CustomData:   customData,
		Timestamp:    now.Format(time.RFC3339),
		Source:       Source,
	}

	result := g.sender.Send(ctx, SendRequest{
		URL:        req.TargetEndpoint,
		Secret:     g.secret,
		Timeout:    g.timeout,
		DispatchID: dispatchID.String(),
		Payload:    payload,
	})
	g.metrics.DispatchAttemptCompleted(kind, metrics.ClassifyStatus(result.StatusCode, result.Error), result.Duration)

	rec := domain.DispatchRecord{
		ID:             dispatchID,
		WorkflowKind:   req.WorkflowKind,
		CandidateID:    req.CandidateID,
		TemplateID:     req.TemplateID,
		RemoteResponse: responseJSON(result.Body),
		TriggeredAt:    now,
	}
	out := Result{StatusCode: result.StatusCode, Duration: result.Duration}

	if !result.IsSuccess() {
		if g.breaker != nil {
			g.breaker.RecordFailure(req.TargetEndpoint)
		}
		rec.Status = domain.DispatchStatusFailed
		g.writeLog(ctx, rec)
		out.Record = rec

		g.logger.Warn("dispatch failed",
			zap.String(logging.FieldWorkflow, kind),
			zap.String("dispatch_id", dispatchID.String()),
			zap.Int("status", result.StatusCode),
			zap.Error(result.Error),
		)
		g.metrics.DispatchOutcome(kind, metrics.OutcomeFailed)
		g.recordAnalytics(ctx, req.WorkflowKind, metrics.OutcomeFailed)

		return out, &RemoteCallError{
			Endpoint:   req.TargetEndpoint,
			StatusCode: result.StatusCode,
			Body:       string(result.Body),
			Err:        result.Error,
		}
	}

	if g.breaker != nil {
		g.breaker.RecordSuccess(req.TargetEndpoint)
	}
	rec.Status = domain.DispatchStatusTriggered
	g.writeLog(ctx, rec)
	out.Record = rec

	g.logger.Info("dispatch triggered",
		zap.String(logging.FieldWorkflow, kind),
		zap.String("dispatch_id", dispatchID.String()),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", result.Duration),
	)
	g.metrics.DispatchOutcome(kind, metrics.OutcomeTriggered)
	g.recordAnalytics(ctx, req.WorkflowKind, metrics.OutcomeTriggered)

	return out, nil
}

func (g *Gateway) writeLog(ctx context.Context, rec domain.DispatchRecord) {
	if err := g.log.InsertDispatchRecord(ctx, rec); err != nil {
		g.metrics.DispatchLogWriteFailed()
		g.logger.Error("dispatch log write failed",
			zap.String("dispatch_id", rec.ID.String()),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}

// recordAnalytics is best-effort; the sink handles its own errors.
func (g *Gateway) recordAnalytics(ctx context.Context, kind domain.WorkflowKind, outcome string) {
	if g.analytics == nil {
		return
	}
	g.analytics.Record(ctx, kind, outcome, g.clock())
}

func validate(req domain.DispatchRequest) error {
	if !req.WorkflowKind.Valid() {
		return &ValidationError{Field: "workflowKind", Message: "unknown workflow kind " + string(req.WorkflowKind)}
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		return &ValidationError{Field: "templateId", Message: "is required"}
	}
	return validateEndpoint(req.TargetEndpoint)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return &ConfigurationError{}
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return &ConfigurationError{Endpoint: endpoint, Reason: "not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Endpoint: endpoint, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ConfigurationError{Endpoint: endpoint, Reason: "host is required"}
	}
	return nil
}

// responseJSON keeps a JSON body as-is and wraps anything else as a JSON
// string so the dispatch log column always holds valid JSON.
func responseJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}
