package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
)

// ErrUnauthorized is returned when a write is attempted without a bound
// recruiter identity. No store call is made.
var ErrUnauthorized = errors.New("ledger: no authenticated recruiter")

// ValidationError reports a malformed append request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Message)
}

// LoadError wraps a store failure while reading the ledger. The cache is
// left as it was before the load started.
type LoadError struct {
	RecruiterID uuid.UUID
	Err         error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("ledger: load interactions for recruiter %s: %v", e.RecruiterID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AppendError wraps a store failure while writing an interaction. Nothing
// was recorded and the cache is unchanged.
type AppendError struct {
	CandidateID uuid.UUID
	Kind        domain.InteractionKind
	Err         error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("ledger: append %s for candidate %s: %v", e.Kind, e.CandidateID, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }
