// Package catalog defines the closed schema for deployable application
// templates and the bundles that group them.
//
// Entries are immutable once loaded. The planner treats the catalog as
// read-only input; it never mutates entries during plan construction.
package catalog

import (
	"fmt"

	"github.com/bosun-dev/bosun/internal/core/health"
)

// =============================================================================
// Catalog Entry Types
// =============================================================================

// PortSpec declares one container port an application listens on.
// The container port doubles as the application's conventional host port:
// the allocator prefers it when it is free on the host.
type PortSpec struct {
	ContainerPort int
	Protocol      string // "tcp" or "udp", defaults to "tcp"
}

// VolumeSpec declares one persistent path an application needs.
// Purpose tags distinguish paths on the same entry (config, media, downloads)
// and form the final path segment of the allocated host directory.
type VolumeSpec struct {
	ContainerPath string
	Purpose       string
}

// Entry is an immutable description of one deployable application.
type Entry struct {
	ID          string
	Description string
	Image       string
	Ports       []PortSpec
	Volumes     []VolumeSpec
	Env         map[string]string // declared env keys with default values
	DependsOn   []string          // entry ids within the same bundle
	Health      health.Contract
	Restart     string // docker restart policy, defaults to "unless-stopped"
}

// Bundle is a named group of entries intended to be deployed together.
type Bundle struct {
	Name        string
	Description string
	Members     []string
}

// =============================================================================
// Entry Validation
// =============================================================================

// Validate checks an entry against the closed schema rules.
func (e Entry) Validate() error {
	if e.ID == "" {
		return ErrEntryNoID
	}
	if e.Image == "" {
		return fmt.Errorf("%w: %s", ErrEntryNoImage, e.ID)
	}

	for i, p := range e.Ports {
		if p.ContainerPort < 1 || p.ContainerPort > 65535 {
			return NewValidationError(
				fmt.Sprintf("%s.ports[%d]", e.ID, i),
				fmt.Sprintf("port %d is out of range (1-65535)", p.ContainerPort),
				ErrInvalidPort,
			)
		}
		if p.Protocol != "" && p.Protocol != "tcp" && p.Protocol != "udp" {
			return NewValidationError(
				fmt.Sprintf("%s.ports[%d]", e.ID, i),
				fmt.Sprintf("unknown protocol %q", p.Protocol),
				ErrInvalidPort,
			)
		}
	}

	seen := make(map[string]struct{}, len(e.Volumes))
	for i, v := range e.Volumes {
		if v.ContainerPath == "" || v.Purpose == "" {
			return NewValidationError(
				fmt.Sprintf("%s.volumes[%d]", e.ID, i),
				"volume requires both container path and purpose",
				ErrInvalidVolume,
			)
		}
		if _, dup := seen[v.Purpose]; dup {
			return NewValidationError(
				fmt.Sprintf("%s.volumes[%d]", e.ID, i),
				fmt.Sprintf("duplicate purpose tag %q", v.Purpose),
				ErrInvalidVolume,
			)
		}
		seen[v.Purpose] = struct{}{}
	}

	if err := e.Health.Validate(); err != nil {
		return NewValidationError(e.ID+".health", err.Error(), err)
	}

	// A probe contract needs a port binding to dial. An entry that
	// exposes nothing can only use a delay contract.
	if len(e.Ports) == 0 {
		switch e.Health.EffectiveKind() {
		case health.KindTCP, health.KindHTTP:
			return NewValidationError(e.ID+".health",
				"probe health contract requires a declared port",
				health.ErrPortRequired)
		}
	}

	return nil
}

// DefaultHostPort returns the entry's conventional host port: the first
// declared container port, or 0 when the entry exposes nothing.
func (e Entry) DefaultHostPort() int {
	if len(e.Ports) == 0 {
		return 0
	}
	return e.Ports[0].ContainerPort
}

// RestartPolicy returns the declared restart policy or the default.
func (e Entry) RestartPolicy() string {
	if e.Restart == "" {
		return "unless-stopped"
	}
	return e.Restart
}
