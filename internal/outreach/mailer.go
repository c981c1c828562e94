package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// HTTPMailer posts messages to a Resend-compatible JSON API.
type HTTPMailer struct {
	client  *http.Client
	url     string
	apiKey  string
	timeout time.Duration
}

func NewHTTPMailer(url, apiKey string) *HTTPMailer {
	return &HTTPMailer{
		client:  &http.Client{},
		url:     url,
		apiKey:  apiKey,
		timeout: 15 * time.Second,
	}
}

func (m *HTTPMailer) WithClient(client *http.Client) *HTTPMailer {
	m.client = client
	return m
}

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send returns an error for transport failures and non-2xx answers.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(mailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
