package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type InteractionKind string

const (
	InteractionSaved                 InteractionKind = "saved"
	InteractionEmailSent             InteractionKind = "email_sent"
	InteractionResponseReceived      InteractionKind = "response_received"
	InteractionInterviewScheduled    InteractionKind = "interview_scheduled"
	InteractionRejected              InteractionKind = "rejected"
	InteractionHired                 InteractionKind = "hired"
	InteractionPreScreeningCompleted InteractionKind = "pre_screening_completed"
)

var interactionKinds = map[InteractionKind]struct{}{
	InteractionSaved:                 {},
	InteractionEmailSent:             {},
	InteractionResponseReceived:      {},
	InteractionInterviewScheduled:    {},
	InteractionRejected:              {},
	InteractionHired:                 {},
	InteractionPreScreeningCompleted: {},
}

// Valid reports whether k belongs to the closed set of interaction kinds.
func (k InteractionKind) Valid() bool {
	_, ok := interactionKinds[k]
	return ok
}

// ParseInteractionKind converts s into an InteractionKind, rejecting unknown values.
func ParseInteractionKind(s string) (InteractionKind, error) {
	k := InteractionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
	return k, nil
}

// InteractionRecord is one append-only ledger entry between a recruiter and a candidate.
type InteractionRecord struct {
	ID          uuid.UUID
	RecruiterID uuid.UUID
	CandidateID uuid.UUID

	Kind       InteractionKind
	OccurredAt time.Time // sole ordering key

	// Details is owned by the producer; the ledger never inspects it.
	Details map[string]any
	Notes   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SortByOccurredAtDesc orders records most recent first. Ties fall back to
// CreatedAt and then ID so the order is stable across reloads.
func SortByOccurredAtDesc(records []InteractionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
}
