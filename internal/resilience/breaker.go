// Package resilience guards calls to external systems. Broadcast sends go
// through a circuit breaker so a wedged message bus sheds load fast instead
// of stalling every session request on timeouts.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/classpad/classpad/internal/config"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible breaker state, exposed on the health
// endpoint.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after a run of consecutive failures and stays open for a
// cooldown. After the cooldown a single probe call is let through; its
// outcome decides whether the circuit closes again or reopens.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time // stubbed in tests
}

// NewBreaker builds a breaker from configuration.
func NewBreaker(cfg config.Breaker) *Breaker {
	return &Breaker{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Timeout,
		state:       StateClosed,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open. In half-open state only one
// probe runs at a time; concurrent callers get ErrCircuitOpen until the
// probe settles.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.settle(err)
	return err
}

// State reports the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	}
	return ErrCircuitOpen
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
