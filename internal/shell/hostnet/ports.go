// Package hostnet takes fresh snapshots of host network state.
//
// Snapshots are taken at the start of each planning pass and never cached:
// concurrent deployment sessions must see already-bound ports as read-only
// external state, re-probed rather than remembered.
package hostnet

import (
	"fmt"
	"net"

	"github.com/bosun-dev/bosun/internal/core/plan"
)

// BoundPorts probes every TCP port in the scan range and returns the ones
// already bound on the host. A port we cannot listen on is treated as
// bound; the allocator will skip it either way.
func BoundPorts(scan plan.PortRange) []int {
	var bound []int
	for port := scan.Start; port <= scan.End; port++ {
		if !Listenable(port) {
			bound = append(bound, port)
		}
	}
	return bound
}

// Listenable reports whether a TCP listener can currently bind the port
// on all interfaces.
func Listenable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
