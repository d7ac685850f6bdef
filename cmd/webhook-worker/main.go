// Command webhook-worker is a reference worker for webhook processes. It
// verifies the request signature, answers with the inputs it received, and
// keeps the last requests for inspection at /stats.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/djlord-it/eoflow/internal/process"
)

type request struct {
	Timestamp string          `json:"timestamp"`
	ProcessID string          `json:"processId"`
	Verified  bool            `json:"verified"`
	Inputs    json.RawMessage `json:"inputs"`
}

type stats struct {
	Count        int64     `json:"count"`
	LastRequests []request `json:"last_requests"`
	Since        string    `json:"since"`
}

const maxStored = 50

type receiver struct {
	secret string

	mu           sync.Mutex
	count        int64
	lastRequests []request
	since        time.Time
}

func newReceiver(secret string) *receiver {
	return &receiver{secret: secret, since: time.Now().UTC()}
}

func main() {
	addr := ":9000"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	r := newReceiver(os.Getenv("WEBHOOK_SECRET"))

	log.Printf("webhook-worker listening on %s (signature check: %t)", addr, r.secret != "")
	log.Fatal(http.ListenAndServe(addr, r.routes()))
}

func (rc *receiver) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hook", rc.hook)
	mux.HandleFunc("/stats", rc.stats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		rc.mu.Lock()
		rc.count = 0
		rc.lastRequests = nil
		rc.since = time.Now().UTC()
		rc.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})
	return mux
}

func (rc *receiver) hook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	verified := false
	if rc.secret != "" {
		if !process.VerifySignature(rc.secret, body, r.Header.Get(process.HeaderSignature)) {
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}
		verified = true
	}

	var inputs map[string]json.RawMessage
	if err := json.Unmarshal(body, &inputs); err != nil || inputs == nil {
		http.Error(w, "inputs must be a JSON object", http.StatusBadRequest)
		return
	}

	req := request{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ProcessID: r.Header.Get(process.HeaderProcessID),
		Verified:  verified,
		Inputs:    body,
	}

	rc.mu.Lock()
	rc.count++
	rc.lastRequests = append(rc.lastRequests, req)
	if len(rc.lastRequests) > maxStored {
		rc.lastRequests = rc.lastRequests[len(rc.lastRequests)-maxStored:]
	}
	current := rc.count
	rc.mu.Unlock()

	log.Printf("hook received #%d for %s", current, req.ProcessID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"received":  current,
		"processId": req.ProcessID,
		"inputs":    req.Inputs,
	})
}

func (rc *receiver) stats(w http.ResponseWriter, _ *http.Request) {
	rc.mu.Lock()
	s := stats{
		Count:        rc.count,
		LastRequests: rc.lastRequests,
		Since:        rc.since.Format(time.RFC3339),
	}
	rc.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
