package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/workflow"
)

type AppendInteractionRequest struct {
	CandidateID string         `json:"candidate_id"`
	Kind        string         `json:"kind"`
	Notes       *string        `json:"notes,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  string         `json:"occurred_at,omitempty"` // RFC3339, default now
}

func (r AppendInteractionRequest) toInput() (ledger.AppendInput, error) {
	if r.CandidateID == "" {
		return ledger.AppendInput{}, fmt.Errorf("candidate_id is required")
	}
	candidateID, err := uuid.Parse(r.CandidateID)
	if err != nil {
		return ledger.AppendInput{}, fmt.Errorf("invalid candidate_id")
	}
	kind, err := domain.ParseInteractionKind(r.Kind)
	if err != nil {
		return ledger.AppendInput{}, err
	}

	in := ledger.AppendInput{
		CandidateID: candidateID,
		Kind:        kind,
		Notes:       r.Notes,
		Details:     r.Details,
	}
	if r.OccurredAt != "" {
		at, err := time.Parse(time.RFC3339, r.OccurredAt)
		if err != nil {
			return ledger.AppendInput{}, fmt.Errorf("invalid occurred_at: %w", err)
		}
		in.OccurredAt = at
	}
	return in, nil
}

type InteractionResponse struct {
	ID          string         `json:"id"`
	RecruiterID string         `json:"recruiter_id"`
	CandidateID string         `json:"candidate_id"`
	Kind        string         `json:"kind"`
	OccurredAt  string         `json:"occurred_at"`
	Details     map[string]any `json:"details,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

type ListInteractionsResponse struct {
	Interactions []InteractionResponse `json:"interactions"`
}

func toInteractionResponse(rec domain.InteractionRecord) InteractionResponse {
	return InteractionResponse{
		ID:          rec.ID.String(),
		RecruiterID: rec.RecruiterID.String(),
		CandidateID: rec.CandidateID.String(),
		Kind:        string(rec.Kind),
		OccurredAt:  formatTime(rec.OccurredAt),
		Details:     rec.Details,
		Notes:       rec.Notes,
		CreatedAt:   formatTime(rec.CreatedAt),
	}
}

// DispatchRequest uses the camelCase field names of the automation payload.
type DispatchRequest struct {
	WorkflowKind   string         `json:"workflowKind"`
	CandidateID    string         `json:"candidateId,omitempty"`
	TemplateID     string         `json:"templateId"`
	CustomData     map[string]any `json:"customData,omitempty"`
	TargetEndpoint string         `json:"targetEndpoint,omitempty"`
}

func (r DispatchRequest) toDomain(defaultEndpoint string) (domain.DispatchRequest, error) {
	out := domain.DispatchRequest{
		WorkflowKind:   domain.WorkflowKind(r.WorkflowKind),
		TemplateID:     r.TemplateID,
		CustomData:     r.CustomData,
		TargetEndpoint: strings.TrimSpace(r.TargetEndpoint),
	}
	if out.TargetEndpoint == "" {
		out.TargetEndpoint = defaultEndpoint
	}
	if r.CandidateID != "" {
		id, err := uuid.Parse(r.CandidateID)
		if err != nil {
			return domain.DispatchRequest{}, fmt.Errorf("invalid candidateId")
		}
		out.CandidateID = &id
	}
	return out, nil
}

type DispatchResponse struct {
	ID             string `json:"id"`
	WorkflowKind   string `json:"workflowKind"`
	Status         string `json:"status"`
	StatusCode     int    `json:"statusCode"`
	RemoteResponse any    `json:"remoteResponse,omitempty"`
	TriggeredAt    string `json:"triggeredAt"`
}

func toDispatchResponse(res workflow.Result) DispatchResponse {
	resp := DispatchResponse{
		ID:           res.Record.ID.String(),
		WorkflowKind: string(res.Record.WorkflowKind),
		Status:       string(res.Record.Status),
		StatusCode:   res.StatusCode,
		TriggeredAt:  formatTime(res.Record.TriggeredAt),
	}
	if len(res.Record.RemoteResponse) > 0 {
		resp.RemoteResponse = res.Record.RemoteResponse
	}
	return resp
}

type DispatchRecordResponse struct {
	ID             string `json:"id"`
	WorkflowKind   string `json:"workflowKind"`
	CandidateID    string `json:"candidateId,omitempty"`
	TemplateID     string `json:"templateId"`
	Status         string `json:"status"`
	RemoteResponse any    `json:"remoteResponse,omitempty"`
	TriggeredAt    string `json:"triggeredAt"`
}

type ListDispatchesResponse struct {
	Dispatches []DispatchRecordResponse `json:"dispatches"`
}

func toDispatchRecordResponse(rec domain.DispatchRecord) DispatchRecordResponse {
	resp := DispatchRecordResponse{
		ID:           rec.ID.String(),
		WorkflowKind: string(rec.WorkflowKind),
		TemplateID:   rec.TemplateID,
		Status:       string(rec.Status),
		TriggeredAt:  formatTime(rec.TriggeredAt),
	}
	if rec.CandidateID != nil {
		resp.CandidateID = rec.CandidateID.String()
	}
	if len(rec.RemoteResponse) > 0 {
		resp.RemoteResponse = rec.RemoteResponse
	}
	return resp
}

type DispatchErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type CandidateEmailRequest struct {
	CandidateID    string `json:"candidateId,omitempty"`
	CandidateEmail string `json:"candidateEmail"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

type MissingFieldsResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
