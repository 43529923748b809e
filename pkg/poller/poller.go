// Package poller implements the delivery confirmation loop that runs after a
// scan-page visitor asks for an SMS to be relayed: send the message through
// the relay ingress, then repeatedly check for a "sent" confirmation until
// one appears or the attempt budget runs out.
package poller

import (
	"context"
	"time"
)

// State is one node of the confirmation state machine.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StatePolling   State = "polling"
	StateDelivered State = "delivered"
	StateTimedOut  State = "timed_out"
	StateErrored   State = "errored"
)

// Terminal reports whether the state ends the machine.
func (s State) Terminal() bool {
	switch s {
	case StateDelivered, StateTimedOut, StateErrored:
		return true
	}
	return false
}

// IngressClient submits a relay request for a scan code.
type IngressClient interface {
	SendMessage(ctx context.Context, code, message string) error
}

// DeliveryChecker reports whether a "sent" confirmation exists for the
// exact (code, message) pair.
type DeliveryChecker interface {
	Delivered(ctx context.Context, code, message string) (bool, error)
}

const (
	// DefaultInterval between confirmation checks.
	DefaultInterval = 2 * time.Second
	// DefaultMaxAttempts before giving up (~40s total).
	DefaultMaxAttempts = 20
)

// Config wires the poller's collaborators and timing.
type Config struct {
	Ingress     IngressClient
	Checker     DeliveryChecker
	Interval    time.Duration
	MaxAttempts int
	// OnTransition, when set, observes every state change. UI layers hang
	// progress indicators off this.
	OnTransition func(State)
}

// Result is the terminal outcome of one confirmation run.
type Result struct {
	State    State
	Attempts int
	Err      error
}

// Poller drives the Sending → Polling → terminal state machine.
type Poller struct {
	ingress      IngressClient
	checker      DeliveryChecker
	interval     time.Duration
	maxAttempts  int
	onTransition func(State)
}

// New applies defaults for interval and attempt budget.
func New(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		ingress:      cfg.Ingress,
		checker:      cfg.Checker,
		interval:     interval,
		maxAttempts:  maxAttempts,
		onTransition: cfg.OnTransition,
	}
}

// Run sends the message and polls for confirmation. It blocks until a
// terminal state is reached or ctx is cancelled; cancellation yields
// StateErrored with ctx's error. Checks are sequential: a slow check delays
// the next tick rather than overlapping it.
func (p *Poller) Run(ctx context.Context, code, message string) Result {
	p.transition(StateSending)
	if err := p.ingress.SendMessage(ctx, code, message); err != nil {
		p.transition(StateErrored)
		return Result{State: StateErrored, Err: err}
	}

	p.transition(StatePolling)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.transition(StateErrored)
			return Result{State: StateErrored, Attempts: attempt - 1, Err: ctx.Err()}
		case <-timer.C:
		}

		delivered, err := p.checker.Delivered(ctx, code, message)
		if err != nil {
			// Transient check failures burn an attempt but do not abort;
			// the next tick may succeed.
			lastErr = err
		} else if delivered {
			p.transition(StateDelivered)
			return Result{State: StateDelivered, Attempts: attempt}
		}

		if attempt < p.maxAttempts {
			timer.Reset(p.interval)
		}
	}

	p.transition(StateTimedOut)
	return Result{State: StateTimedOut, Attempts: p.maxAttempts, Err: lastErr}
}

func (p *Poller) transition(s State) {
	if p.onTransition != nil {
		p.onTransition(s)
	}
}
