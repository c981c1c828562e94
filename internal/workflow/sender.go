package workflow

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	HeaderDispatchID = "X-Talentledger-Dispatch-ID"
	HeaderSignature  = "X-Talentledger-Signature"

	DefaultTimeout = 30 * time.Second

	// maxResponseBody caps how much of the remote answer is kept.
	maxResponseBody = 1 << 20
)

type SendRequest struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	DispatchID string
	Payload    any
}

type SendResult struct {
	StatusCode int
	Body       []byte
	Error      error
	Duration   time.Duration
}

func (r SendResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender() *HTTPSender {
	return &HTTPSender{
		client: &http.Client{},
	}
}

// WithClient replaces the underlying HTTP client.
func (s *HTTPSender) WithClient(client *http.Client) *HTTPSender {
	s.client = client
	return s
}

// Send posts the JSON payload once. There are no retries.
// Headers: X-Talentledger-Dispatch-ID, and X-Talentledger-Signature when a
// secret is set.
func (s *HTTPSender) Send(ctx context.Context, req SendRequest) SendResult {
	start := time.Now()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return SendResult{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderDispatchID, req.DispatchID)
	if req.Secret != "" {
		httpReq.Header.Set(HeaderSignature, computeSignature(req.Secret, body))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return SendResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return SendResult{StatusCode: resp.StatusCode, Error: fmt.Errorf("read response: %w", err), Duration: time.Since(start)}
	}

	return SendResult{StatusCode: resp.StatusCode, Body: respBody, Duration: time.Since(start)}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to verify incoming dispatches.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
