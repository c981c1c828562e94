package ledger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/reconciler"
	"github.com/djlord-it/talentledger/internal/transport/channel"
)

// Subscriber is the part of the signal bus the ledger listens on.
type Subscriber interface {
	Subscribe(name domain.SignalName, handler channel.Handler) channel.Unsubscribe
}

// Watch subscribes the manager to pre-screening completion signals. Each
// matching signal schedules a reload after the settling delay; signals that
// arrive while one is pending collapse into it. Signals addressed to a
// different recruiter are ignored.
//
// The returned stop function unsubscribes and cancels any pending reload.
// It is safe to call more than once.
func (m *Manager) Watch(bus Subscriber, cfg reconciler.Config, opts ...reconciler.Option) (stop func(), err error) {
	opts = append([]reconciler.Option{
		reconciler.WithLogger(m.logger),
		reconciler.WithMetrics(m.metrics),
	}, opts...)
	rec, err := reconciler.New(cfg, m, opts...)
	if err != nil {
		return nil, err
	}
	rec.Start(context.Background())

	unsubscribe := bus.Subscribe(domain.SignalPreScreeningCompleted, func(ctx context.Context, sig domain.Signal) {
		m.onCompleted(rec, sig)
	})

	return func() {
		unsubscribe()
		rec.Stop()
	}, nil
}

func (m *Manager) onCompleted(rec *reconciler.Reconciler, sig domain.Signal) {
	bound := m.Recruiter()
	if bound == uuid.Nil {
		return
	}

	payload, err := domain.DecodePreScreeningCompleted(sig.Payload)
	if err != nil {
		// The write happened somewhere; an undecodable payload still
		// warrants a reload.
		m.logger.Warn("undecodable completion signal", zap.Error(err))
		rec.Trigger(string(sig.Name))
		return
	}

	if payload.RecruiterID != uuid.Nil && payload.RecruiterID != bound {
		m.logger.Debug("ignoring completion signal for another recruiter",
			zap.String(logging.FieldRecruiterID, payload.RecruiterID.String()),
		)
		return
	}

	rec.Trigger(string(sig.Name))
}
