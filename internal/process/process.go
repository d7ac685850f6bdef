// Package process is the closed catalogue of computations the service can
// execute. What a process computes is its own business: it receives an
// opaque JSON object and returns one.
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Definition describes a process to callers.
type Definition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"` // zero-valued output shape
}

type Process interface {
	Definition() Definition
	Execute(ctx context.Context, inputs json.RawMessage) (json.RawMessage, error)
}

// Registry is built once at startup and read-only afterwards.
type Registry struct {
	byID map[string]Process
}

func NewRegistry(processes ...Process) (*Registry, error) {
	r := &Registry{byID: make(map[string]Process, len(processes))}
	for _, p := range processes {
		id := p.Definition().ID
		if id == "" {
			return nil, fmt.Errorf("process with empty id")
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate process id %q", id)
		}
		r.byID[id] = p
	}
	return r, nil
}

func (r *Registry) Lookup(id string) (Process, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Definitions returns every definition sorted by id.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Placeholder returns the output shape a queued job carries until it
// completes. Unknown processes and processes without a declared shape get {}.
func (r *Registry) Placeholder(id string) json.RawMessage {
	if p, ok := r.byID[id]; ok {
		if out := p.Definition().Outputs; len(out) > 0 && string(out) != "null" {
			return out
		}
	}
	return json.RawMessage(`{}`)
}

// Echo returns its inputs unchanged.
type Echo struct{}

const EchoID = "core.echo"

func (Echo) Definition() Definition {
	return Definition{
		ID:          EchoID,
		Title:       "Echo",
		Description: "Returns the inputs as outputs.",
	}
}

func (Echo) Execute(_ context.Context, inputs json.RawMessage) (json.RawMessage, error) {
	if len(inputs) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return inputs, nil
}

// Func adapts a function into a Process.
type Func struct {
	Def Definition
	Fn  func(ctx context.Context, inputs json.RawMessage) (json.RawMessage, error)
}

func (f Func) Definition() Definition { return f.Def }

func (f Func) Execute(ctx context.Context, inputs json.RawMessage) (json.RawMessage, error) {
	return f.Fn(ctx, inputs)
}
