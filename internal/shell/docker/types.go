// Package docker provides the container runtime client and the
// orchestrator that drives deployment plans through it.
package docker

import (
	"context"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name          string
	Image         string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	Binds         []VolumeBind
	Network       string
	RestartPolicy string // "no", "always", "on-failure", "unless-stopped"
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	Protocol      string // "tcp" or "udp"
}

// VolumeBind defines a host directory bind mount.
type VolumeBind struct {
	Source string // host path
	Target string // container path
}

// ContainerInfo contains the runtime state of a container.
type ContainerInfo struct {
	ID       string
	Name     string
	Image    string
	State    string // "running", "exited", "created", ...
	ExitCode int
	Ports    []PortBinding
	Labels   map[string]string
}

// Running reports whether the container process is alive.
func (c ContainerInfo) Running() bool {
	return c.State == "running"
}

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name   string
	Driver string // defaults to "bridge"
	Labels map[string]string
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // include stopped containers
	Filters map[string]string // e.g., {"label": "com.bosun.plan=xyz"}
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the container runtime collaborator. The orchestrator requires
// only these operations; the live runtime state it reports is treated as
// ground truth rather than mirrored.
type Client interface {
	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)

	// Network operations
	CreateNetwork(ctx context.Context, spec NetworkSpec) (networkID string, err error)
	RemoveNetwork(ctx context.Context, networkID string) error

	// Image operations
	PullImage(ctx context.Context, image string) error
	ImageExists(ctx context.Context, image string) (bool, error)

	// Daemon operations
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

// Labels mark every resource bosun creates so status and stop can recover
// plan membership from the runtime alone, without persisted state.
const (
	LabelManaged = "com.bosun.managed"
	LabelPlan    = "com.bosun.plan"
	LabelService = "com.bosun.service"
	LabelNetwork = "com.bosun.network"
)
