package docker

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Service Operations (status / stop)
// =============================================================================

// These back the CLI's status and stop commands. They read plan membership
// from container labels: the runtime's live state is the ground truth, no
// deployment registry is kept.

// ServiceContainers returns the containers bosun manages for a service id,
// including stopped ones.
func (o *Orchestrator) ServiceContainers(ctx context.Context, serviceID string) ([]ContainerInfo, error) {
	return o.docker.ListContainers(ctx, ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", LabelService, serviceID),
		},
	})
}

// StopService stops and removes every container bosun manages for a
// service id, then removes each plan network left without containers.
func (o *Orchestrator) StopService(ctx context.Context, serviceID string) error {
	containers, err := o.ServiceContainers(ctx, serviceID)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return NewDockerError("StopService", "container", serviceID, "no managed containers found", ErrContainerNotFound)
	}

	networks := make(map[string]struct{})
	var failed []string

	for _, c := range containers {
		if netName, ok := c.Labels[LabelNetwork]; ok {
			networks[netName] = struct{}{}
		}

		stopTimeout := o.config.StopTimeout
		if err := o.docker.StopContainer(ctx, c.ID, &stopTimeout); err != nil && !errors.Is(err, ErrContainerNotFound) {
			o.logger.Warn("failed to stop container", "container_id", shortID(c.ID), "error", err)
		}
		if err := o.docker.RemoveContainer(ctx, c.ID, true); err != nil && !errors.Is(err, ErrContainerNotFound) {
			o.logger.Warn("failed to remove container", "container_id", shortID(c.ID), "error", err)
			failed = append(failed, c.ID)
		}
	}

	for netName := range networks {
		err := o.docker.RemoveNetwork(ctx, netName)
		if err != nil && !errors.Is(err, ErrNetworkNotFound) && !errors.Is(err, ErrNetworkInUse) {
			o.logger.Warn("failed to remove network", "network", netName, "error", err)
		}
	}

	if len(failed) > 0 {
		return &CleanupError{Subject: serviceID, Leftovers: failed}
	}

	o.logger.Info("service stopped", "service", serviceID, "containers", len(containers))
	return nil
}
