package plan

import (
	"fmt"
	"path/filepath"
)

// =============================================================================
// Resource Allocator
// =============================================================================

// PortRange is the host port scan range, inclusive on both ends.
type PortRange struct {
	Start int
	End   int
}

// DefaultPortRange is the scan range used when none is configured.
var DefaultPortRange = PortRange{Start: 8000, End: 9000}

func (r PortRange) valid() bool {
	return r.Start > 0 && r.End >= r.Start
}

// Contains reports whether port falls inside the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port <= r.End
}

// PortAllocator assigns host ports without collisions. It keeps an
// in-memory reservation table for ports claimed earlier in the same
// planning pass and treats the host snapshot as read-only external state.
//
// The table is owned exclusively by one Builder invocation and must not
// be shared across concurrent planning sessions.
type PortAllocator struct {
	scan     PortRange
	bound    map[int]struct{} // observed bound on the host
	reserved map[int]struct{} // claimed earlier in this pass
}

// NewPortAllocator creates an allocator over the given scan range and a
// fresh snapshot of host-bound ports.
func NewPortAllocator(scan PortRange, hostBound []int) *PortAllocator {
	if !scan.valid() {
		scan = DefaultPortRange
	}
	a := &PortAllocator{
		scan:     scan,
		bound:    make(map[int]struct{}, len(hostBound)),
		reserved: make(map[int]struct{}),
	}
	for _, p := range hostBound {
		a.bound[p] = struct{}{}
	}
	return a
}

// Allocate picks a host port, preferring the application's conventional
// port when it is free, then scanning upward within the range. The probe
// count is bounded by the range size; exhausting it is ErrResourceExhausted.
func (a *PortAllocator) Allocate(preferred int) (int, error) {
	if preferred > 0 && a.scan.Contains(preferred) && a.free(preferred) {
		a.reserved[preferred] = struct{}{}
		return preferred, nil
	}

	from := a.scan.Start
	if preferred > a.scan.Start && a.scan.Contains(preferred) {
		from = preferred
	}
	for port := from; port <= a.scan.End; port++ {
		if a.free(port) {
			a.reserved[port] = struct{}{}
			return port, nil
		}
	}
	// Wrap around below the preferred port before giving up.
	for port := a.scan.Start; port < from; port++ {
		if a.free(port) {
			a.reserved[port] = struct{}{}
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w (%d-%d)", ErrResourceExhausted, a.scan.Start, a.scan.End)
}

// Reserved returns the number of ports claimed in this pass.
func (a *PortAllocator) Reserved() int {
	return len(a.reserved)
}

func (a *PortAllocator) free(port int) bool {
	if _, taken := a.bound[port]; taken {
		return false
	}
	if _, taken := a.reserved[port]; taken {
		return false
	}
	return true
}

// =============================================================================
// Volume Path Allocation
// =============================================================================

// VolumePath computes the deterministic host path for an entry's volume:
// <base>/<entry-id>/<purpose>. Determinism makes allocation idempotent
// across repeated deployments of the same entry.
func VolumePath(baseDir, entryID, purpose string) string {
	return filepath.Join(baseDir, entryID, purpose)
}

// PathClaimer materializes and guards volume directories on the host.
// Implementations create the directory if absent and verify ownership via
// a marker file; a path owned by a different deployment is ErrPathConflict.
type PathClaimer interface {
	Claim(entryID, hostPath string) error
}

// NopClaimer performs no host I/O. Used for dry-run planning.
type NopClaimer struct{}

func (NopClaimer) Claim(string, string) error { return nil }
