package domain

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type WorkflowKind string

const (
	WorkflowOutreach    WorkflowKind = "outreach"
	WorkflowDemoBooking WorkflowKind = "demo-booking"
	WorkflowFollowUp    WorkflowKind = "follow-up"
	WorkflowNurture     WorkflowKind = "nurture"
)

var (
	workflowKindsMu sync.RWMutex
	workflowKinds   = map[WorkflowKind]struct{}{
		WorkflowOutreach:    {},
		WorkflowDemoBooking: {},
		WorkflowFollowUp:    {},
		WorkflowNurture:     {},
	}
)

// RegisterWorkflowKind adds k to the set of accepted workflow kinds.
// Intended to be called during startup.
func RegisterWorkflowKind(k WorkflowKind) {
	workflowKindsMu.Lock()
	defer workflowKindsMu.Unlock()
	workflowKinds[k] = struct{}{}
}

func (k WorkflowKind) Valid() bool {
	workflowKindsMu.RLock()
	defer workflowKindsMu.RUnlock()
	_, ok := workflowKinds[k]
	return ok
}

// DispatchRequest is a caller-assembled request for one outbound workflow call.
type DispatchRequest struct {
	WorkflowKind WorkflowKind
	CandidateID  *uuid.UUID // when set, the candidate is fetched and embedded
	TemplateID   string
	CustomData   map[string]any

	// TargetEndpoint has no implicit default at this layer.
	TargetEndpoint string
}

type DispatchStatus string

const (
	DispatchStatusTriggered DispatchStatus = "triggered"
	DispatchStatusFailed    DispatchStatus = "failed"
)

// DispatchRecord is the durable log entry for one dispatch attempt with a
// determinate outcome.
type DispatchRecord struct {
	ID           uuid.UUID
	WorkflowKind WorkflowKind
	CandidateID  *uuid.UUID
	TemplateID   string
	Status       DispatchStatus

	RemoteResponse json.RawMessage

	TriggeredAt time.Time
}
