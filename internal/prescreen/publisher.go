package prescreen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/djlord-it/talentledger/internal/domain"
)

// SignalPath is the server route that republishes signals from
// out-of-process producers.
const SignalPath = "/signals/pre-screening-completed"

// HTTPPublisher forwards completion signals to a talentledger server.
type HTTPPublisher struct {
	client   *http.Client
	endpoint string
}

// NewHTTPPublisher posts to baseURL + SignalPath.
func NewHTTPPublisher(baseURL string) *HTTPPublisher {
	return &HTTPPublisher{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: baseURL + SignalPath,
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, sig domain.Signal) error {
	if sig.Name != domain.SignalPreScreeningCompleted {
		return fmt.Errorf("unsupported signal %q", sig.Name)
	}

	body, err := json.Marshal(sig.Payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish signal: status %d", resp.StatusCode)
	}
	return nil
}
