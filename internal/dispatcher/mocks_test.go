package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/eoflow/internal/analytics"
	"github.com/djlord-it/eoflow/internal/cron"
	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/ledger"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/registry"
	"github.com/djlord-it/eoflow/internal/remote"
	"github.com/djlord-it/eoflow/internal/statestore"
	"github.com/djlord-it/eoflow/internal/testutil"
)

// fakeRemote is a scripted remote.Backend.
type fakeRemote struct {
	mu        sync.Mutex
	submitFn  func(req remote.SubmitRequest) remote.SubmitResult
	stateFn   func(runID string) (string, error)
	submitted []remote.SubmitRequest
	polled    []string
}

func (f *fakeRemote) Submit(_ context.Context, req remote.SubmitRequest) remote.SubmitResult {
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	fn := f.submitFn
	f.mu.Unlock()
	if fn == nil {
		return remote.SubmitResult{Outcome: remote.Accepted, RunID: "run-" + req.CorrelationID}
	}
	return fn(req)
}

func (f *fakeRemote) RunState(_ context.Context, runID string) (string, error) {
	f.mu.Lock()
	f.polled = append(f.polled, runID)
	fn := f.stateFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("no state")
	}
	return fn(runID)
}

func (f *fakeRemote) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.polled)
}

type dispatchRecord struct {
	trigger, path, status string
}

type mockMetrics struct {
	mu         sync.Mutex
	dispatches []dispatchRecord
	submits    []string
	fallbacks  int
	syncs      []string
}

func (m *mockMetrics) DispatchCompleted(trigger, path, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, dispatchRecord{trigger, path, status})
}

func (m *mockMetrics) RemoteSubmitted(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits = append(m.submits, outcome)
}

func (m *mockMetrics) FallbackToLocal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func (m *mockMetrics) JobSynced(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, status)
}

type mockAnalytics struct {
	mu     sync.Mutex
	events []analytics.Event
	err    error
}

func (m *mockAnalytics) Record(_ context.Context, ev analytics.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

// env wires a dispatcher over real in-memory ledger and registries.
type env struct {
	ledger    *ledger.Ledger
	workflows *registry.Workflows
	schedules *registry.Schedules
	metrics   *mockMetrics
	d         *Dispatcher
}

// addOne turns {"x":n} into {"y":n+1}.
var addOne = process.Func{
	Def: process.Definition{ID: "P", Title: "Add one", Outputs: json.RawMessage(`{"y":null}`)},
	Fn: func(_ context.Context, inputs json.RawMessage) (json.RawMessage, error) {
		var in struct {
			X int `json:"x"`
		}
		if err := json.Unmarshal(inputs, &in); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"y": in.X + 1})
	},
}

var broken = process.Func{
	Def: process.Definition{ID: "broken", Title: "Always fails"},
	Fn: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("worker exploded")
	},
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := statestore.New(statestore.NewMemoryBackend(), true, testutil.DiscardLogger())
	e := &env{
		ledger:    ledger.New(store),
		workflows: registry.NewWorkflows(store),
		schedules: registry.NewSchedules(store, cron.NewParser()),
		metrics:   &mockMetrics{},
	}
	e.d = New(e.ledger, mustProcesses(t), e.workflows, e.schedules, testutil.DiscardLogger()).WithMetrics(e.metrics)
	return e
}

func (e *env) workflow(t *testing.T, steps ...domain.Step) domain.Workflow {
	t.Helper()
	wf, err := e.workflows.Create(registry.WorkflowDraft{Name: "wf", Steps: steps})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func step(processID, payload string) domain.Step {
	return domain.Step{ProcessID: processID, Payload: json.RawMessage(payload)}
}

func mustProcesses(t *testing.T) *process.Registry {
	t.Helper()
	r, err := process.NewRegistry(process.Echo{}, addOne, broken)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
