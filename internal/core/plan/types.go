// Package plan turns deployment requests into concrete, conflict-free
// resource plans: which host ports, which host directories, which network,
// and in what order services may start.
//
// Everything here is deterministic planning logic. Directory creation is
// delegated to a PathClaimer so re-planning the same request against an
// unchanged host yields equivalent bindings.
package plan

import (
	"fmt"
	"time"

	"github.com/bosun-dev/bosun/internal/core/catalog"
)

// =============================================================================
// Resolved Service
// =============================================================================

// ResolvedService is one catalog entry instantiated in a plan, with every
// declared requirement bound to a concrete host resource. Never mutated
// after creation; re-planning produces a new value.
type ResolvedService struct {
	Entry   catalog.Entry
	Ports   map[int]int       // container port → host port
	Volumes map[string]string // container path → host path
	Env     map[string]string
	Network string
}

// HostPort returns the host port bound to the given container port.
func (s ResolvedService) HostPort(containerPort int) int {
	return s.Ports[containerPort]
}

// HealthHostPort resolves the health contract's container port to its host
// binding, defaulting to the first declared port.
func (s ResolvedService) HealthHostPort() int {
	port := s.Entry.Health.Port
	if port == 0 {
		port = s.Entry.DefaultHostPort()
	}
	return s.Ports[port]
}

// =============================================================================
// Plan Status
// =============================================================================

type Status string

const (
	StatusDraft      Status = "draft"
	StatusValidated  Status = "validated"
	StatusApplying   Status = "applying"
	StatusCompleted  Status = "completed"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// validTransitions defines the allowed status transitions.
// Applying → RolledBack is the only backward-looking transition and is
// terminal; Failed is reachable only when rollback itself cannot complete.
var validTransitions = map[Status][]Status{
	StatusDraft:      {StatusValidated},
	StatusValidated:  {StatusApplying},
	StatusApplying:   {StatusCompleted, StatusRolledBack, StatusFailed},
	StatusCompleted:  {},
	StatusRolledBack: {},
	StatusFailed:     {},
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to Status) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

// =============================================================================
// Deployment Plan
// =============================================================================

// Plan is a concrete, resource-resolved, ordered instantiation of one
// catalog entry or bundle for a single apply attempt. Owned exclusively by
// one orchestration session.
type Plan struct {
	ID       string
	Network  string
	Services []ResolvedService   // topological start order
	Deps     map[string][]string // dependency DAG restricted to this plan
	Status   Status

	CreatedAt time.Time
}

// Transition attempts to move the plan to a new status.
func (p *Plan) Transition(to Status) error {
	if err := ValidateTransition(p.Status, to); err != nil {
		return err
	}
	p.Status = to
	return nil
}

// Service returns the resolved service for an entry id.
func (p *Plan) Service(id string) (ResolvedService, bool) {
	for _, s := range p.Services {
		if s.Entry.ID == id {
			return s, true
		}
	}
	return ResolvedService{}, false
}

// Batches groups services into start batches: each batch is the frontier of
// nodes whose dependencies all appear in earlier batches. Services inside a
// batch may start concurrently; batches run strictly in sequence.
func (p *Plan) Batches() [][]ResolvedService {
	order := make([]string, len(p.Services))
	byID := make(map[string]ResolvedService, len(p.Services))
	for i, s := range p.Services {
		order[i] = s.Entry.ID
		byID[s.Entry.ID] = s
	}

	levels := batchLevels(order, p.Deps)
	out := make([][]ResolvedService, len(levels))
	for i, level := range levels {
		batch := make([]ResolvedService, len(level))
		for j, id := range level {
			batch[j] = byID[id]
		}
		out[i] = batch
	}
	return out
}

// MaxBatchWidth returns the size of the largest start batch. The
// orchestrator sizes its worker pool to this.
func (p *Plan) MaxBatchWidth() int {
	width := 0
	for _, b := range p.Batches() {
		if len(b) > width {
			width = len(b)
		}
	}
	return width
}
