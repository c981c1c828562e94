package prescreen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/djlord-it/talentledger/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiScreener asks Gemini for a structured assessment of a candidate.
type GeminiScreener struct {
	models contentGenerator
	model  string
}

func NewGeminiScreener(ctx context.Context, apiKey, model string) (*GeminiScreener, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiScreener(client.Models, model), nil
}

func newGeminiScreener(models contentGenerator, model string) *GeminiScreener {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &GeminiScreener{models: models, model: model}
}

func (g *GeminiScreener) Model() string { return g.model }

const promptTemplate = `You are screening a job candidate for a recruiter.
Assess the candidate profile below and answer with a single JSON object:
{"score": <number between 0 and 1>, "fit": "strong" | "moderate" | "weak", "summary": "<two sentences>"}
Do not include any other text.

Candidate profile:
%s`

func (g *GeminiScreener) Evaluate(ctx context.Context, candidate domain.Candidate) (Assessment, error) {
	profile, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return Assessment{}, fmt.Errorf("marshal candidate: %w", err)
	}

	resp, err := g.models.GenerateContent(ctx, g.model,
		genai.Text(fmt.Sprintf(promptTemplate, profile)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Assessment{}, fmt.Errorf("generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return Assessment{}, errors.New("gemini api returned empty response")
	}

	a, err := parseAssessment(text)
	if err != nil {
		return Assessment{}, err
	}
	a.Model = g.model
	return a, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			builder.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// parseAssessment accepts the JSON answer, optionally wrapped in a
// markdown code fence.
func parseAssessment(text string) (Assessment, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var a Assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &a); err != nil {
		return Assessment{}, fmt.Errorf("parse assessment: %w", err)
	}
	if a.Score < 0 || a.Score > 1 {
		return Assessment{}, fmt.Errorf("parse assessment: score %v out of range", a.Score)
	}
	a.Fit = strings.ToLower(strings.TrimSpace(a.Fit))
	return a, nil
}
