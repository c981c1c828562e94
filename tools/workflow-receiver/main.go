// Command workflow-receiver is a stand-in automation endpoint for local
// runs. It accepts workflow dispatches and contact notifications, checks
// their signature when SIGNING_SECRET is set, and keeps the last few for
// inspection at /stats.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	headerDispatchID = "X-Talentledger-Dispatch-ID"
	headerSignature  = "X-Talentledger-Signature"
)

type received struct {
	Timestamp  string          `json:"timestamp"`
	DispatchID string          `json:"dispatch_id"`
	Trigger    string          `json:"trigger"`
	Verified   bool            `json:"verified"`
	Body       json.RawMessage `json:"body"`
}

type stats struct {
	Count    int64      `json:"count"`
	Rejected int64      `json:"rejected"`
	Last     []received `json:"last"`
	Since    string     `json:"since"`
}

type receiver struct {
	secret    string
	failEvery int64
	maxStored int

	mu       sync.Mutex
	count    int64
	rejected int64
	last     []received
	since    time.Time
}

func main() {
	addr := ":8090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	r := &receiver{
		secret:    os.Getenv("SIGNING_SECRET"),
		maxStored: 50,
		since:     time.Now().UTC(),
	}
	if v := os.Getenv("FAIL_EVERY"); v != "" {
		fmt.Sscanf(v, "%d", &r.failEvery)
	}

	log.Printf("workflow-receiver listening on %s (signed=%t)", addr, r.secret != "")
	log.Fatal(http.ListenAndServe(addr, r.routes()))
}

func (r *receiver) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /hook", r.hook)
	mux.HandleFunc("GET /stats", r.stats)
	mux.HandleFunc("POST /reset", r.reset)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func (r *receiver) hook(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
		return
	}

	verified := false
	if r.secret != "" {
		if !verify(r.secret, body, req.Header.Get(headerSignature)) {
			r.mu.Lock()
			r.rejected++
			r.mu.Unlock()
			log.Printf("rejected %s: bad signature", req.Header.Get(headerDispatchID))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"ok":false,"error":"bad signature"}`)
			return
		}
		verified = true
	}

	var envelope struct {
		Trigger string `json:"trigger"`
	}
	_ = json.Unmarshal(body, &envelope)

	rec := received{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		DispatchID: req.Header.Get(headerDispatchID),
		Trigger:    envelope.Trigger,
		Verified:   verified,
	}
	if json.Valid(body) {
		rec.Body = body
	}

	r.mu.Lock()
	r.count++
	current := r.count
	r.last = append(r.last, rec)
	if len(r.last) > r.maxStored {
		r.last = r.last[len(r.last)-r.maxStored:]
	}
	r.mu.Unlock()

	log.Printf("received #%d %s trigger=%s", current, rec.DispatchID, rec.Trigger)

	w.Header().Set("Content-Type", "application/json")
	if r.failEvery > 0 && current%r.failEvery == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"ok":false,"error":"simulated failure"}`)
		return
	}
	fmt.Fprint(w, `{"ok":true}`)
}

func (r *receiver) stats(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	s := stats{
		Count:    r.count,
		Rejected: r.rejected,
		Last:     append([]received(nil), r.last...),
		Since:    r.since.Format(time.RFC3339),
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (r *receiver) reset(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	r.count = 0
	r.rejected = 0
	r.last = nil
	r.since = time.Now().UTC()
	r.mu.Unlock()
	fmt.Fprintln(w, "reset")
}

func verify(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
