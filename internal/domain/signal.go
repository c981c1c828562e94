package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// SignalName identifies a completion signal carried on the signal bus.
type SignalName string

const (
	// SignalPreScreeningCompleted is published once an AI pre-screening job
	// has written its result for a candidate.
	SignalPreScreeningCompleted SignalName = "pre-screening.completed"
)

// Signal is a named, payload-carrying notification within one process.
type Signal struct {
	Name    SignalName
	Payload map[string]any
}

// PreScreeningCompleted is the decoded payload of SignalPreScreeningCompleted.
type PreScreeningCompleted struct {
	CandidateID uuid.UUID `mapstructure:"candidate_id" json:"candidate_id"`
	RecruiterID uuid.UUID `mapstructure:"recruiter_id" json:"recruiter_id"`
	Score       float64   `mapstructure:"score" json:"score"`
	Summary     string    `mapstructure:"summary" json:"summary"`
}

// Signal wraps the payload for publication.
func (p PreScreeningCompleted) Signal() Signal {
	return Signal{
		Name: SignalPreScreeningCompleted,
		Payload: map[string]any{
			"candidate_id": p.CandidateID.String(),
			"recruiter_id": p.RecruiterID.String(),
			"score":        p.Score,
			"summary":      p.Summary,
		},
	}
}

// DecodePreScreeningCompleted decodes a signal payload. Identifiers may be
// uuid.UUID values or their string form, as produced by out-of-process
// publishers.
func DecodePreScreeningCompleted(payload map[string]any) (PreScreeningCompleted, error) {
	var out PreScreeningCompleted
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("build payload decoder: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", SignalPreScreeningCompleted, err)
	}
	return out, nil
}
