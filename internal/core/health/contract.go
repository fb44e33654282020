// Package health contains pure functions for service readiness evaluation.
// The imperative shell polls containers and probes ports; this package
// decides what the observations mean.
package health

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Health Contracts
// =============================================================================

// Kind identifies how a service's readiness is determined.
type Kind string

const (
	// KindTCP probes a declared port with a TCP connect.
	KindTCP Kind = "tcp"

	// KindHTTP issues a GET against a declared path expecting 2xx/3xx.
	KindHTTP Kind = "http"

	// KindDelay waits a fixed grace period with no active probe.
	// Used for images with no reliable readiness signal.
	KindDelay Kind = "delay"
)

var (
	ErrUnknownKind  = errors.New("unknown health contract kind")
	ErrPortRequired = errors.New("tcp health contract requires a port")
	ErrPathRequired = errors.New("http health contract requires a path")
)

// Contract declares how a catalog entry's readiness is verified.
// A zero-value contract means "tcp probe on the first declared port".
type Contract struct {
	Kind  Kind
	Port  int           // container port (tcp, http)
	Path  string        // request path (http)
	Grace time.Duration // fixed wait (delay)

	// Timeout overrides the orchestrator's default per-service timeout.
	Timeout time.Duration
}

// Validate checks the contract declaration for internal consistency.
func (c Contract) Validate() error {
	switch c.Kind {
	case "", KindTCP:
		// Port may be zero here; it defaults to the entry's first
		// declared port at planning time.
		return nil
	case KindHTTP:
		if c.Path == "" {
			return ErrPathRequired
		}
		return nil
	case KindDelay:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// EffectiveKind resolves the default kind for a zero-value contract.
func (c Contract) EffectiveKind() Kind {
	if c.Kind == "" {
		return KindTCP
	}
	return c.Kind
}

// EffectiveTimeout returns the per-service timeout, falling back to def.
// A delay contract's timeout is never shorter than its grace period, so
// the grace can always elapse before the timeout fails the service.
func (c Contract) EffectiveTimeout(def time.Duration) time.Duration {
	t := def
	if c.Timeout > 0 {
		t = c.Timeout
	}
	if c.Kind == KindDelay && c.Grace > t {
		return c.Grace
	}
	return t
}

// =============================================================================
// Readiness Decisions
// =============================================================================

// Verdict is the outcome of evaluating one observation cycle.
type Verdict string

const (
	VerdictReady   Verdict = "ready"
	VerdictUnready Verdict = "unready"
	VerdictFailed  Verdict = "failed"
)

// FailureReason classifies why a service failed to become ready.
type FailureReason string

const (
	ReasonNone          FailureReason = ""
	ReasonHealthTimeout FailureReason = "HealthTimeout"
	ReasonProcessExited FailureReason = "ProcessExited"
)

// Observation is one snapshot of a starting service, gathered by the shell.
type Observation struct {
	// Running reports whether the container process is still alive.
	Running bool

	// Reachable reports the probe outcome. Ignored for delay contracts.
	Reachable bool
}

// Evaluate decides the verdict for one poll cycle.
//
// A dead process fails immediately with ReasonProcessExited. Exceeding the
// timeout fails with ReasonHealthTimeout. Delay contracts become ready once
// the grace period has elapsed; probe contracts become ready when reachable.
func Evaluate(c Contract, obs Observation, elapsed, timeout time.Duration) (Verdict, FailureReason) {
	if !obs.Running {
		return VerdictFailed, ReasonProcessExited
	}

	if c.EffectiveKind() == KindDelay {
		if elapsed >= c.Grace {
			return VerdictReady, ReasonNone
		}
	} else if obs.Reachable {
		return VerdictReady, ReasonNone
	}

	if elapsed >= timeout {
		return VerdictFailed, ReasonHealthTimeout
	}
	return VerdictUnready, ReasonNone
}
