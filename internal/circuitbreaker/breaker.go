// Package circuitbreaker tracks consecutive failures per endpoint and sheds
// calls to an endpoint while it is considered down.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type endpoint struct {
	state    State
	failures int
	openedAt time.Time
}

// Breaker is safe for concurrent use. After threshold consecutive failures
// an endpoint opens; once cooldown has elapsed a single probe is let
// through, and its outcome closes or reopens the endpoint.
type Breaker struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		endpoints: make(map[string]*endpoint),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow returns ErrOpen when calls to key must not be attempted.
func (b *Breaker) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ep, ok := b.endpoints[key]
	if !ok {
		return nil
	}

	switch ep.state {
	case Open:
		if b.now().Sub(ep.openedAt) < b.cooldown {
			return ErrOpen
		}
		ep.state = HalfOpen
		return nil
	case HalfOpen:
		// probe already in flight
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) Success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.endpoints, key)
}

func (b *Breaker) Failure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ep, ok := b.endpoints[key]
	if !ok {
		ep = &endpoint{}
		b.endpoints[key] = ep
	}

	ep.failures++
	if ep.state == HalfOpen || ep.failures >= b.threshold {
		ep.state = Open
		ep.openedAt = b.now()
	}
}

// State reports the current state for key without transitioning it.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ep, ok := b.endpoints[key]; ok {
		return ep.state
	}
	return Closed
}
