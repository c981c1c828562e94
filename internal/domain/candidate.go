package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is the entity referenced by interactions and dispatch enrichment.
// It is serialized whole into outbound workflow payloads.
type Candidate struct {
	ID        uuid.UUID      `json:"id"`
	FullName  string         `json:"full_name"`
	Email     string         `json:"email"`
	Headline  string         `json:"headline,omitempty"`
	Location  string         `json:"location,omitempty"`
	Skills    []string       `json:"skills,omitempty"`
	ResumeURL string         `json:"resume_url,omitempty"`
	Profile   map[string]any `json:"profile,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
