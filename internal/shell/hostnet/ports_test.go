package hostnet

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosun-dev/bosun/internal/core/plan"
)

func TestBoundPorts_SeesHeldPort(t *testing.T) {
	// Bind an ephemeral port, then confirm the snapshot reports it.
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	bound := BoundPorts(plan.PortRange{Start: port, End: port})
	assert.Equal(t, []int{port}, bound)
}

func TestListenable_FreePort(t *testing.T) {
	// Find a free port by binding and releasing it.
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	assert.True(t, Listenable(port), fmt.Sprintf("port %d", port))
}
