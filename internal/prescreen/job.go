// Package prescreen runs AI pre-screening for a candidate, writes the
// result to the ledger store and announces it with a completion signal.
package prescreen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/transport/channel"
)

// Assessment is the screener's verdict.
type Assessment struct {
	Score   float64 `json:"score"`
	Fit     string  `json:"fit"`
	Summary string  `json:"summary"`
	Model   string  `json:"-"`
}

type Screener interface {
	Evaluate(ctx context.Context, candidate domain.Candidate) (Assessment, error)
}

type EntityStore interface {
	GetCandidateByID(ctx context.Context, id uuid.UUID) (domain.Candidate, error)
}

// InteractionWriter persists the pre-screening result.
type InteractionWriter interface {
	InsertInteraction(ctx context.Context, rec domain.InteractionRecord) (uuid.UUID, error)
}

// Publisher announces a completed write.
type Publisher interface {
	Publish(ctx context.Context, sig domain.Signal) error
}

// BusPublisher publishes on an in-process signal bus.
type BusPublisher struct {
	bus *channel.SignalBus
}

func NewBusPublisher(bus *channel.SignalBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(ctx context.Context, sig domain.Signal) error {
	p.bus.Publish(ctx, sig)
	return nil
}

type Job struct {
	entities  EntityStore
	screener  Screener
	store     InteractionWriter
	publisher Publisher
	logger    *zap.Logger
	clock     func() time.Time
}

func NewJob(entities EntityStore, screener Screener, store InteractionWriter, publisher Publisher) *Job {
	return &Job{
		entities:  entities,
		screener:  screener,
		store:     store,
		publisher: publisher,
		logger:    zap.NewNop(),
		clock:     time.Now,
	}
}

func (j *Job) WithLogger(logger *zap.Logger) *Job {
	j.logger = logging.Component(logger, "prescreen")
	return j
}

func (j *Job) WithClock(clock func() time.Time) *Job {
	j.clock = clock
	return j
}

// Run screens one candidate for recruiterID. The signal is published only
// after the interaction is durable. A publish failure is logged: the record
// exists and will be picked up by the next reload.
func (j *Job) Run(ctx context.Context, recruiterID, candidateID uuid.UUID) (Assessment, error) {
	logger := j.logger.With(
		zap.String(logging.FieldRecruiterID, recruiterID.String()),
		zap.String(logging.FieldCandidateID, candidateID.String()),
	)

	candidate, err := j.entities.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return Assessment{}, fmt.Errorf("get candidate: %w", err)
	}

	assessment, err := j.screener.Evaluate(ctx, candidate)
	if err != nil {
		return Assessment{}, fmt.Errorf("evaluate candidate: %w", err)
	}

	now := j.clock().UTC()
	_, err = j.store.InsertInteraction(ctx, domain.InteractionRecord{
		RecruiterID: recruiterID,
		CandidateID: candidateID,
		Kind:        domain.InteractionPreScreeningCompleted,
		OccurredAt:  now,
		Details: map[string]any{
			"score":   assessment.Score,
			"fit":     assessment.Fit,
			"summary": assessment.Summary,
			"model":   assessment.Model,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("record pre-screening: %w", err)
	}

	sig := domain.PreScreeningCompleted{
		CandidateID: candidateID,
		RecruiterID: recruiterID,
		Score:       assessment.Score,
		Summary:     assessment.Summary,
	}.Signal()
	if err := j.publisher.Publish(ctx, sig); err != nil {
		logger.Warn("completion signal not published", zap.Error(err))
	}

	logger.Info("pre-screening completed",
		zap.Float64("score", assessment.Score),
		zap.String("fit", assessment.Fit),
	)
	return assessment, nil
}
