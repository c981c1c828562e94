package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/metrics"
)

// NotifyMetrics records contact notification outcomes.
type NotifyMetrics interface {
	ContactNotifyOutcome(outcome string)
}

// NotifyResult is the outcome of a best-effort contact notification. It is
// not an error: callers cannot return it as one and must not fail their own
// operation because of it. Callers log it with Log.
type NotifyResult struct {
	Skipped    bool
	StatusCode int
	Err        error
}

// OK reports whether the notification was delivered.
func (r NotifyResult) OK() bool {
	return !r.Skipped && r.Err == nil
}

// Log writes the result at a level matching its outcome.
func (r NotifyResult) Log(logger *zap.Logger) {
	logger = logging.OrNop(logger)
	switch {
	case r.Skipped:
		logger.Debug("contact notification skipped: no endpoint configured")
	case r.Err != nil:
		logger.Warn("contact notification failed", zap.Int("status", r.StatusCode), zap.Error(r.Err))
	default:
		logger.Debug("contact notification sent", zap.Int("status", r.StatusCode))
	}
}

type contactPayload struct {
	Trigger   string            `json:"trigger"`
	Candidate *domain.Candidate `json:"candidate"`
	Subject   string            `json:"subject"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Source    string            `json:"source"`
}

// ContactNotifier tells the automation endpoint that a candidate was
// contacted. Unlike Gateway.Dispatch it never reports failure to the
// caller and writes nothing to the dispatch log.
type ContactNotifier struct {
	sender   Sender
	endpoint string
	secret   string
	timeout  time.Duration
	metrics  NotifyMetrics
	logger   *zap.Logger
	clock    func() time.Time
}

// NewContactNotifier creates a notifier. An empty endpoint turns every
// notification into a skip.
func NewContactNotifier(sender Sender, endpoint string) *ContactNotifier {
	return &ContactNotifier{
		sender:   sender,
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		metrics:  metrics.NewNoopSink(),
		logger:   zap.NewNop(),
		clock:    time.Now,
	}
}

func (n *ContactNotifier) WithMetrics(sink NotifyMetrics) *ContactNotifier {
	n.metrics = sink
	return n
}

func (n *ContactNotifier) WithLogger(logger *zap.Logger) *ContactNotifier {
	n.logger = logging.Component(logger, "contact-notifier")
	return n
}

func (n *ContactNotifier) WithSigning(secret string) *ContactNotifier {
	n.secret = secret
	return n
}

func (n *ContactNotifier) WithTimeout(timeout time.Duration) *ContactNotifier {
	if timeout > 0 {
		n.timeout = timeout
	}
	return n
}

func (n *ContactNotifier) WithClock(clock func() time.Time) *ContactNotifier {
	n.clock = clock
	return n
}

// NotifyCandidateContacted posts the notification once. Failures are
// returned in the result, never as an error; logging the result is up to
// the caller.
func (n *ContactNotifier) NotifyCandidateContacted(ctx context.Context, candidate domain.Candidate, subject, message string) NotifyResult {
	if n.endpoint == "" {
		n.metrics.ContactNotifyOutcome(metrics.NotifyOutcomeSkipped)
		return NotifyResult{Skipped: true}
	}

	n.logger.Debug("sending contact notification",
		zap.String(logging.FieldCandidateID, candidate.ID.String()),
		zap.String("endpoint", n.endpoint),
	)

	result := n.sender.Send(ctx, SendRequest{
		URL:        n.endpoint,
		Secret:     n.secret,
		Timeout:    n.timeout,
		DispatchID: uuid.NewString(),
		Payload: contactPayload{
			Trigger:   "candidate_contacted",
			Candidate: &candidate,
			Subject:   subject,
			Message:   message,
			Timestamp: n.clock().UTC().Format(time.RFC3339),
			Source:    Source,
		},
	})

	res := NotifyResult{StatusCode: result.StatusCode}
	if !result.IsSuccess() {
		res.Err = &RemoteCallError{
			Endpoint:   n.endpoint,
			StatusCode: result.StatusCode,
			Body:       string(result.Body),
			Err:        result.Error,
		}
		n.metrics.ContactNotifyOutcome(metrics.NotifyOutcomeFailed)
	} else {
		n.metrics.ContactNotifyOutcome(metrics.NotifyOutcomeSent)
	}
	return res
}
