package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/config"
	"github.com/djlord-it/talentledger/internal/prescreen"
)

type mockRunner struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	failFor  map[uuid.UUID]bool
	inFlight int
	maxSeen  int
	release  chan struct{}
}

func (m *mockRunner) Run(ctx context.Context, recruiterID, candidateID uuid.UUID) (prescreen.Assessment, error) {
	m.mu.Lock()
	m.calls = append(m.calls, candidateID)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	if m.release != nil {
		<-m.release
	}

	m.mu.Lock()
	m.inFlight--
	fail := m.failFor[candidateID]
	m.mu.Unlock()

	if fail {
		return prescreen.Assessment{}, errors.New("screener down")
	}
	return prescreen.Assessment{Score: 80, Fit: "strong"}, nil
}

func TestScreenAll_CountsFailuresAndContinues(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	r := &mockRunner{failFor: map[uuid.UUID]bool{ids[1]: true}}

	failed := screenAll(context.Background(), r, uuid.New(), ids, 2, zap.NewNop())
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
	if len(r.calls) != 3 {
		t.Errorf("expected every candidate screened, got %d", len(r.calls))
	}
}

func TestScreenAll_RespectsConcurrency(t *testing.T) {
	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = uuid.New()
	}
	r := &mockRunner{release: make(chan struct{})}

	done := make(chan int)
	go func() {
		done <- screenAll(context.Background(), r, uuid.New(), ids, 2, zap.NewNop())
	}()
	for range ids {
		r.release <- struct{}{}
	}
	if failed := <-done; failed != 0 {
		t.Errorf("expected no failures, got %d", failed)
	}
	if r.maxSeen > 2 {
		t.Errorf("expected at most 2 in flight, saw %d", r.maxSeen)
	}
}

func TestScreenAll_ZeroConcurrencyRunsSequentially(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	r := &mockRunner{}

	if failed := screenAll(context.Background(), r, uuid.New(), ids, 0, zap.NewNop()); failed != 0 {
		t.Errorf("expected no failures, got %d", failed)
	}
	if r.maxSeen != 1 {
		t.Errorf("expected sequential run, saw %d in flight", r.maxSeen)
	}
}

func TestParseIDs(t *testing.T) {
	recruiter := uuid.New()
	candidate := uuid.New()

	gotR, gotC, err := parseIDs(recruiter.String(), []string{candidate.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotR != recruiter || len(gotC) != 1 || gotC[0] != candidate {
		t.Errorf("unexpected ids %v %v", gotR, gotC)
	}

	if _, _, err := parseIDs("", []string{candidate.String()}); err == nil {
		t.Error("expected error for empty recruiter")
	}
	if _, _, err := parseIDs(uuid.Nil.String(), []string{candidate.String()}); err == nil {
		t.Error("expected error for nil recruiter")
	}
	if _, _, err := parseIDs(recruiter.String(), []string{"nope"}); err == nil {
		t.Error("expected error for bad candidate id")
	}
}

func TestBuildJob_RequiresGeminiKey(t *testing.T) {
	_, _, err := buildJob(context.Background(), config.Config{SQLitePath: t.TempDir() + "/db.sqlite"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("expected GEMINI_API_KEY error, got %v", err)
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no candidates", []string{"--recruiter", uuid.NewString()}},
		{"missing recruiter", []string{uuid.NewString()}},
		{"bad recruiter", []string{"--recruiter", "x", uuid.NewString()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := execute(context.Background(), tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("expected exit %d, got %d (stderr %q)", exitUsage, code, stderr.String())
			}
		})
	}
}

func TestExecute_MissingKeyIsRuntimeError(t *testing.T) {
	t.Setenv("SQLITE_PATH", t.TempDir()+"/db.sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--recruiter", uuid.NewString(), uuid.NewString()}, &stdout, &stderr)
	if code != exitRuntimeError {
		t.Errorf("expected exit %d, got %d", exitRuntimeError, code)
	}
	if !strings.Contains(stderr.String(), "GEMINI_API_KEY") {
		t.Errorf("expected key error on stderr, got %q", stderr.String())
	}
}
