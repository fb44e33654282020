package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bosun-dev/bosun/internal/core/catalog"
)

// =============================================================================
// Plan Builder
// =============================================================================

// BuilderParams carries everything one Build invocation needs. The host
// port snapshot must be queried fresh from the host at the start of each
// planning pass, never cached across sessions.
type BuilderParams struct {
	Catalog *catalog.Catalog

	// BaseDir is the root under which volume directories are allocated.
	BaseDir string

	// Ports is the host port scan range.
	Ports PortRange

	// HostBoundPorts is the snapshot of ports already bound on the host.
	HostBoundPorts []int

	// Paths materializes volume directories. Use NopClaimer for dry runs.
	Paths PathClaimer

	// NetworkPrefix names the plan's shared bridge network.
	// Defaults to "bosun".
	NetworkPrefix string
}

// Builder expands deployment requests into validated plans.
// One Builder serves one planning pass; its reservation table is not
// shared across concurrent sessions.
type Builder struct {
	params BuilderParams
	ports  *PortAllocator
}

// NewBuilder creates a builder for a single planning pass.
func NewBuilder(params BuilderParams) *Builder {
	if params.Paths == nil {
		params.Paths = NopClaimer{}
	}
	if params.NetworkPrefix == "" {
		params.NetworkPrefix = "bosun"
	}
	return &Builder{
		params: params,
		ports:  NewPortAllocator(params.Ports, params.HostBoundPorts),
	}
}

// Build expands the requested entry ids into a full member set via
// depends_on transitive closure, orders them topologically, and allocates
// host resources for each in that order. The returned plan is Validated.
//
// The catalog is never mutated. Building never creates containers; the
// only side effects are directory claims through the PathClaimer.
func (b *Builder) Build(requested []string) (*Plan, error) {
	if len(requested) == 0 {
		return nil, NewError("build", "", "no entries requested", ErrUnknownEntry)
	}

	members, deps, err := b.closure(requested)
	if err != nil {
		return nil, err
	}

	order, err := topoOrder(members, deps, b.params.Catalog.DeclarationIndex)
	if err != nil {
		return nil, NewError("build", "", err.Error(), err)
	}

	planID := uuid.New().String()
	network := fmt.Sprintf("%s_%s", b.params.NetworkPrefix, planID[:8])

	p := &Plan{
		ID:        planID,
		Network:   network,
		Deps:      deps,
		Status:    StatusDraft,
		CreatedAt: time.Now().UTC(),
	}

	// Allocate in topological order so later entries see resources
	// already claimed by earlier ones.
	for _, id := range order {
		entry, _ := b.params.Catalog.Get(id)
		svc, err := b.resolve(entry, network)
		if err != nil {
			return nil, err
		}
		p.Services = append(p.Services, svc)
	}

	if err := p.Transition(StatusValidated); err != nil {
		return nil, err
	}
	return p, nil
}

// closure resolves the requested ids and pulls in their transitive
// dependencies, returning the member set and the DAG restricted to it.
func (b *Builder) closure(requested []string) ([]string, map[string][]string, error) {
	var members []string
	seen := make(map[string]struct{})
	deps := make(map[string][]string)

	queue := append([]string(nil), requested...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, done := seen[id]; done {
			continue
		}
		seen[id] = struct{}{}

		entry, ok := b.params.Catalog.Get(id)
		if !ok {
			return nil, nil, NewError("build", id, "not present in catalog", ErrUnknownEntry)
		}

		members = append(members, id)
		deps[id] = append([]string(nil), entry.DependsOn...)
		queue = append(queue, entry.DependsOn...)
	}

	return members, deps, nil
}

// resolve binds one entry's declared requirements to host resources.
func (b *Builder) resolve(entry catalog.Entry, network string) (ResolvedService, error) {
	svc := ResolvedService{
		Entry:   entry,
		Ports:   make(map[int]int, len(entry.Ports)),
		Volumes: make(map[string]string, len(entry.Volumes)),
		Env:     make(map[string]string, len(entry.Env)),
		Network: network,
	}

	for _, port := range entry.Ports {
		hostPort, err := b.ports.Allocate(port.ContainerPort)
		if err != nil {
			return ResolvedService{}, NewError("allocate", entry.ID,
				fmt.Sprintf("container port %d", port.ContainerPort), err)
		}
		svc.Ports[port.ContainerPort] = hostPort
	}

	for _, vol := range entry.Volumes {
		hostPath := VolumePath(b.params.BaseDir, entry.ID, vol.Purpose)
		if err := b.params.Paths.Claim(entry.ID, hostPath); err != nil {
			return ResolvedService{}, NewError("claim", entry.ID, hostPath, err)
		}
		svc.Volumes[vol.ContainerPath] = hostPath
	}

	for k, v := range entry.Env {
		svc.Env[k] = v
	}

	return svc, nil
}
