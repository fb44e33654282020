package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bosun-dev/bosun/internal/core/health"
	"github.com/bosun-dev/bosun/internal/core/plan"
)

// =============================================================================
// Service Runtime State
// =============================================================================

// ServiceStatus tracks one service during a single Apply call.
type ServiceStatus string

const (
	ServicePending        ServiceStatus = "pending"
	ServiceStarting       ServiceStatus = "starting"
	ServiceHealthChecking ServiceStatus = "health_checking"
	ServiceReady          ServiceStatus = "ready"
	ServiceFailed         ServiceStatus = "failed"
)

// ServiceState is transient runtime state, owned by the orchestrator for
// the lifetime of one Apply call and discarded afterwards.
type ServiceState struct {
	Status      ServiceStatus
	ContainerID string
	StartedAt   time.Time
	LastError   error
	Reason      health.FailureReason
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config holds orchestrator timing parameters.
type Config struct {
	// PollInterval is the health verifier's poll cadence. Default: 2s.
	PollInterval time.Duration

	// HealthTimeout is the default per-service readiness timeout,
	// overridable per catalog entry. Default: 60s.
	HealthTimeout time.Duration

	// StopTimeout is how long a container gets to stop gracefully
	// during rollback. Default: 10s.
	StopTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:  2 * time.Second,
		HealthTimeout: 60 * time.Second,
		StopTimeout:   10 * time.Second,
	}
}

// Orchestrator walks a validated plan: it materializes the shared network,
// starts services in dependency order, verifies readiness, and drives the
// plan to Completed or triggers rollback.
type Orchestrator struct {
	docker Client
	prober Prober
	logger *slog.Logger
	config Config
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(docker Client, prober Prober, config Config, logger *slog.Logger) *Orchestrator {
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.HealthTimeout == 0 {
		config.HealthTimeout = 60 * time.Second
	}
	if config.StopTimeout == 0 {
		config.StopTimeout = 10 * time.Second
	}
	if prober == nil {
		prober = NewNetProber(config.PollInterval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		docker: docker,
		prober: prober,
		logger: logger.With("component", "orchestrator"),
		config: config,
	}
}

// ApplyResult reports the outcome of one Apply attempt.
type ApplyResult struct {
	PlanID        string
	Status        plan.Status
	States        map[string]*ServiceState
	FailedService string
	FailureReason health.FailureReason
}

// Apply executes a validated plan. On any unrecoverable failure every
// service that reached at least Starting is rolled back in reverse start
// order; a cancelled context triggers the same path rather than leaving
// orphaned containers.
//
// Apply consumes the plan: calling it again on the same plan (completed
// or otherwise) is rejected with plan.ErrNotApplyable.
func (o *Orchestrator) Apply(ctx context.Context, p *plan.Plan) (*ApplyResult, error) {
	if p.Status != plan.StatusValidated {
		return nil, fmt.Errorf("%w: plan %s is %s", plan.ErrNotApplyable, p.ID, p.Status)
	}
	if err := p.Transition(plan.StatusApplying); err != nil {
		return nil, err
	}

	o.logger.Info("applying plan",
		"plan_id", p.ID,
		"services", len(p.Services),
		"network", p.Network,
	)

	states := make(map[string]*ServiceState, len(p.Services))
	for _, svc := range p.Services {
		states[svc.Entry.ID] = &ServiceState{Status: ServicePending}
	}

	var mu sync.Mutex
	var startOrder []string // service ids in the order containers were created

	result := &ApplyResult{PlanID: p.ID, States: states}

	fail := func(applyErr error) (*ApplyResult, error) {
		result.FailedService, result.FailureReason = firstFailure(p, states)
		rbErr := o.Rollback(ctx, p, states, startOrder)
		result.Status = p.Status
		if rbErr != nil {
			o.logger.Error("rollback incomplete", "plan_id", p.ID, "error", rbErr)
			return result, fmt.Errorf("%w (rollback: %w)", applyErr, rbErr)
		}
		return result, applyErr
	}

	if err := o.ensureNetwork(ctx, p); err != nil {
		return fail(err)
	}

	if err := o.pullImages(ctx, p, states); err != nil {
		return fail(err)
	}

	batches := p.Batches()
	sem := make(chan struct{}, p.MaxBatchWidth())

	for i, batch := range batches {
		if ctx.Err() != nil {
			return fail(fmt.Errorf("apply cancelled: %w", ctx.Err()))
		}

		o.logger.Debug("dispatching batch", "plan_id", p.ID, "batch", i, "size", len(batch))

		var wg sync.WaitGroup
		for _, svc := range batch {
			svc := svc
			st := states[svc.Entry.ID]

			wg.Add(1)
			go func() {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				o.startService(ctx, p, svc, st, &mu, &startOrder)
			}()
		}

		// Readiness barrier: dependents are released only after every
		// node in the batch settled. This also lets in-flight services
		// finish or time out before any rollback begins.
		wg.Wait()

		for _, svc := range batch {
			if states[svc.Entry.ID].Status == ServiceFailed {
				st := states[svc.Entry.ID]
				return fail(fmt.Errorf("service %s failed: %w", svc.Entry.ID, st.LastError))
			}
		}
	}

	if ctx.Err() != nil {
		return fail(fmt.Errorf("apply cancelled: %w", ctx.Err()))
	}

	if err := p.Transition(plan.StatusCompleted); err != nil {
		return nil, err
	}
	result.Status = p.Status

	o.logger.Info("plan completed", "plan_id", p.ID, "services", len(p.Services))
	return result, nil
}

// =============================================================================
// Service Start
// =============================================================================

// startService drives one service Pending → Starting → HealthChecking →
// Ready/Failed. The dependency readiness barrier lives in Apply; by the
// time this runs, every dependency is Ready.
func (o *Orchestrator) startService(ctx context.Context, p *plan.Plan, svc plan.ResolvedService, st *ServiceState, mu *sync.Mutex, startOrder *[]string) {
	logger := o.logger.With("plan_id", p.ID, "service", svc.Entry.ID)

	mu.Lock()
	st.Status = ServiceStarting
	st.StartedAt = time.Now().UTC()
	mu.Unlock()

	spec := buildContainerSpec(p, svc)

	containerID, err := o.docker.CreateContainer(ctx, spec)
	if err != nil {
		o.failService(st, mu, err, health.ReasonNone)
		logger.Error("failed to create container", "error", err)
		return
	}

	mu.Lock()
	st.ContainerID = containerID
	*startOrder = append(*startOrder, svc.Entry.ID)
	mu.Unlock()

	if err := o.docker.StartContainer(ctx, containerID); err != nil {
		o.failService(st, mu, err, health.ReasonNone)
		logger.Error("failed to start container", "error", err)
		return
	}

	logger.Debug("container started", "container_id", shortID(containerID))

	mu.Lock()
	st.Status = ServiceHealthChecking
	mu.Unlock()

	if reason, err := o.awaitReady(ctx, svc, st); err != nil {
		o.failService(st, mu, err, reason)
		logger.Warn("service failed readiness", "reason", reason, "error", err)
		return
	}

	mu.Lock()
	st.Status = ServiceReady
	mu.Unlock()

	logger.Info("service ready", "container_id", shortID(containerID))
}

// awaitReady polls the service's health contract until Ready, Failed, or
// context cancellation.
func (o *Orchestrator) awaitReady(ctx context.Context, svc plan.ResolvedService, st *ServiceState) (health.FailureReason, error) {
	contract := svc.Entry.Health
	timeout := contract.EffectiveTimeout(o.config.HealthTimeout)
	start := time.Now()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return health.ReasonNone, fmt.Errorf("readiness wait cancelled: %w", ctx.Err())
		case <-ticker.C:
			obs, err := o.observe(ctx, svc, st.ContainerID, contract)
			if err != nil {
				// A failed inspect says nothing about the process;
				// keep polling and let the timeout bound the retries.
				o.logger.Debug("health observation failed", "service", svc.Entry.ID, "error", err)
				if time.Since(start) >= timeout {
					return health.ReasonHealthTimeout,
						fmt.Errorf("health check failed: %s", health.ReasonHealthTimeout)
				}
				continue
			}

			verdict, reason := health.Evaluate(contract, obs, time.Since(start), timeout)
			switch verdict {
			case health.VerdictReady:
				return health.ReasonNone, nil
			case health.VerdictFailed:
				return reason, fmt.Errorf("health check failed: %s", reason)
			}
		}
	}
}

// observe gathers one health snapshot: process liveness from the runtime,
// reachability from the prober. An inspect error is returned as-is: only
// a successful inspect showing a non-running state means the process
// exited.
func (o *Orchestrator) observe(ctx context.Context, svc plan.ResolvedService, containerID string, contract health.Contract) (health.Observation, error) {
	obs := health.Observation{}

	info, err := o.docker.InspectContainer(ctx, containerID)
	if err != nil {
		return obs, err
	}
	if !info.Running() {
		return obs, nil
	}
	obs.Running = true

	switch contract.EffectiveKind() {
	case health.KindTCP:
		addr := fmt.Sprintf("127.0.0.1:%d", svc.HealthHostPort())
		obs.Reachable = o.prober.ProbeTCP(ctx, addr)
	case health.KindHTTP:
		url := fmt.Sprintf("http://127.0.0.1:%d%s", svc.HealthHostPort(), contract.Path)
		obs.Reachable = o.prober.ProbeHTTP(ctx, url)
	}

	return obs, nil
}

func (o *Orchestrator) failService(st *ServiceState, mu *sync.Mutex, err error, reason health.FailureReason) {
	mu.Lock()
	st.Status = ServiceFailed
	st.LastError = err
	st.Reason = reason
	mu.Unlock()
}

// =============================================================================
// Network and Images
// =============================================================================

// ensureNetwork creates the plan's shared bridge network, reusing an
// existing one with the same name.
func (o *Orchestrator) ensureNetwork(ctx context.Context, p *plan.Plan) error {
	_, err := o.docker.CreateNetwork(ctx, NetworkSpec{
		Name:   p.Network,
		Driver: "bridge",
		Labels: map[string]string{
			LabelManaged: "true",
			LabelPlan:    p.ID,
		},
	})
	if err != nil {
		if errors.Is(err, ErrNetworkAlreadyExists) {
			o.logger.Debug("network already exists, reusing", "network", p.Network)
			return nil
		}
		return fmt.Errorf("failed to create network %s: %w", p.Network, err)
	}
	o.logger.Debug("created network", "network", p.Network)
	return nil
}

// pullImages ensures every image in the plan is present before any
// container starts. A pull failure is a runtime error and fails the
// owning service.
func (o *Orchestrator) pullImages(ctx context.Context, p *plan.Plan, states map[string]*ServiceState) error {
	for _, svc := range p.Services {
		if ctx.Err() != nil {
			return fmt.Errorf("apply cancelled: %w", ctx.Err())
		}

		exists, err := o.docker.ImageExists(ctx, svc.Entry.Image)
		if err == nil && exists {
			continue
		}

		o.logger.Info("pulling image", "image", svc.Entry.Image, "service", svc.Entry.ID)
		if err := o.docker.PullImage(ctx, svc.Entry.Image); err != nil {
			st := states[svc.Entry.ID]
			st.Status = ServiceFailed
			st.LastError = err
			return fmt.Errorf("service %s: %w", svc.Entry.ID, err)
		}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// buildContainerSpec translates a resolved service into a runtime spec.
func buildContainerSpec(p *plan.Plan, svc plan.ResolvedService) ContainerSpec {
	spec := ContainerSpec{
		Name:  plan.ContainerName(p.ID, svc.Entry.ID),
		Image: svc.Entry.Image,
		Env:   svc.Env,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelPlan:    p.ID,
			LabelService: svc.Entry.ID,
			LabelNetwork: p.Network,
		},
		Network:       p.Network,
		RestartPolicy: svc.Entry.RestartPolicy(),
	}

	for _, port := range svc.Entry.Ports {
		spec.Ports = append(spec.Ports, PortBinding{
			ContainerPort: port.ContainerPort,
			HostPort:      svc.Ports[port.ContainerPort],
			Protocol:      port.Protocol,
		})
	}

	for _, vol := range svc.Entry.Volumes {
		spec.Binds = append(spec.Binds, VolumeBind{
			Source: svc.Volumes[vol.ContainerPath],
			Target: vol.ContainerPath,
		})
	}

	return spec
}

// firstFailure returns the first failed service in plan order.
func firstFailure(p *plan.Plan, states map[string]*ServiceState) (string, health.FailureReason) {
	for _, svc := range p.Services {
		if st := states[svc.Entry.ID]; st.Status == ServiceFailed {
			return svc.Entry.ID, st.Reason
		}
	}
	return "", health.ReasonNone
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
