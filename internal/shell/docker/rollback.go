package docker

import (
	"context"
	"errors"

	"github.com/bosun-dev/bosun/internal/core/plan"
)

// =============================================================================
// Rollback Controller
// =============================================================================

// Rollback stops and removes every service that reached at least Starting
// (a container object exists), in strict reverse start order, then removes
// the plan's shared network if no binding remains.
//
// Each stop/remove is attempted independently: one failure never aborts
// cleanup of the others, but it downgrades the result from RolledBack to
// Failed so the caller knows manual cleanup may be required. Volume
// directories are never touched — rollback only removes resources this
// apply created on the runtime.
//
// Cancellation is deliberately ignored: rollback runs on a detached
// context so it always reaches its own terminal state.
func (o *Orchestrator) Rollback(ctx context.Context, p *plan.Plan, states map[string]*ServiceState, startOrder []string) error {
	ctx = context.WithoutCancel(ctx)

	o.logger.Info("rolling back plan", "plan_id", p.ID, "containers", len(startOrder))

	var leftovers []string

	for i := len(startOrder) - 1; i >= 0; i-- {
		serviceID := startOrder[i]
		st := states[serviceID]
		if st == nil || st.ContainerID == "" {
			continue
		}

		logger := o.logger.With("plan_id", p.ID, "service", serviceID, "container_id", shortID(st.ContainerID))

		stopTimeout := o.config.StopTimeout
		if err := o.docker.StopContainer(ctx, st.ContainerID, &stopTimeout); err != nil && !errors.Is(err, ErrContainerNotFound) {
			logger.Warn("failed to stop container during rollback", "error", err)
		}

		if err := o.docker.RemoveContainer(ctx, st.ContainerID, true); err != nil && !errors.Is(err, ErrContainerNotFound) {
			logger.Warn("failed to remove container during rollback", "error", err)
			leftovers = append(leftovers, st.ContainerID)
			continue
		}

		logger.Debug("removed container")
	}

	if len(leftovers) == 0 {
		if err := o.docker.RemoveNetwork(ctx, p.Network); err != nil && !errors.Is(err, ErrNetworkNotFound) {
			o.logger.Warn("failed to remove network during rollback", "network", p.Network, "error", err)
			leftovers = append(leftovers, p.Network)
		}
	} else {
		// Containers remain attached; the network cannot go yet.
		leftovers = append(leftovers, p.Network)
	}

	if len(leftovers) > 0 {
		if err := p.Transition(plan.StatusFailed); err != nil {
			o.logger.Error("invalid transition after partial rollback", "plan_id", p.ID, "error", err)
		}
		return &CleanupError{Subject: p.ID, Leftovers: leftovers}
	}

	if err := p.Transition(plan.StatusRolledBack); err != nil {
		return err
	}

	o.logger.Info("rollback complete", "plan_id", p.ID)
	return nil
}
