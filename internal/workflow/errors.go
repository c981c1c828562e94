package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCandidateNotFound is returned by EntityStore implementations when the
// candidate does not exist.
var ErrCandidateNotFound = errors.New("candidate not found")

// ValidationError reports a malformed dispatch request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow: invalid %s: %s", e.Field, e.Message)
}

// ConfigurationError reports a missing or unusable target endpoint. No call
// is attempted and nothing is logged to the dispatch log.
type ConfigurationError struct {
	Endpoint string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Endpoint == "" {
		return "workflow: no target endpoint configured"
	}
	return fmt.Sprintf("workflow: target endpoint %q: %s", e.Endpoint, e.Reason)
}

// EntityLookupError wraps a failure to fetch the candidate used to enrich
// the payload. No remote call is made.
type EntityLookupError struct {
	CandidateID uuid.UUID
	Err         error
}

func (e *EntityLookupError) Error() string {
	return fmt.Sprintf("workflow: lookup candidate %s: %v", e.CandidateID, e.Err)
}

func (e *EntityLookupError) Unwrap() error { return e.Err }

// NotFound reports whether the candidate does not exist.
func (e *EntityLookupError) NotFound() bool {
	return errors.Is(e.Err, ErrCandidateNotFound)
}

// RemoteCallError reports a transport failure or a non-2xx answer from the
// automation endpoint. StatusCode is zero when no response was received.
type RemoteCallError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow: call %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("workflow: call %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
