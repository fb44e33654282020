package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosun-dev/bosun/internal/core/catalog"
)

// =============================================================================
// Builder Test Fixtures
// =============================================================================

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{
			ID:    "db",
			Image: "example/db:latest",
			Ports: []catalog.PortSpec{{ContainerPort: 5432, Protocol: "tcp"}},
			Volumes: []catalog.VolumeSpec{
				{ContainerPath: "/var/lib/data", Purpose: "data"},
			},
		},
		{
			ID:    "cache",
			Image: "example/cache:latest",
			Ports: []catalog.PortSpec{{ContainerPort: 6379, Protocol: "tcp"}},
		},
		{
			ID:        "app",
			Image:     "example/app:latest",
			Ports:     []catalog.PortSpec{{ContainerPort: 8080, Protocol: "tcp"}},
			Env:       map[string]string{"MODE": "production"},
			DependsOn: []string{"db", "cache"},
		},
	}, nil)
	require.NoError(t, err)
	return c
}

// recordingClaimer captures every path claim for assertions.
type recordingClaimer struct {
	claims map[string]string // hostPath → entryID
	fail   error
}

func newRecordingClaimer() *recordingClaimer {
	return &recordingClaimer{claims: make(map[string]string)}
}

func (r *recordingClaimer) Claim(entryID, hostPath string) error {
	if r.fail != nil {
		return r.fail
	}
	r.claims[hostPath] = entryID
	return nil
}

func testBuilder(t *testing.T, paths PathClaimer) *Builder {
	t.Helper()
	return NewBuilder(BuilderParams{
		Catalog: testCatalog(t),
		BaseDir: "/srv/bosun",
		Ports:   PortRange{Start: 5000, End: 9000},
		Paths:   paths,
	})
}

// =============================================================================
// Builder Tests
// =============================================================================

func TestBuild_TransitiveClosure(t *testing.T) {
	p, err := testBuilder(t, nil).Build([]string{"app"})
	require.NoError(t, err)

	// Requesting app pulls in db and cache, dependencies first.
	require.Len(t, p.Services, 3)
	assert.Equal(t, "db", p.Services[0].Entry.ID)
	assert.Equal(t, "cache", p.Services[1].Entry.ID)
	assert.Equal(t, "app", p.Services[2].Entry.ID)
}

func TestBuild_PlanIsValidated(t *testing.T) {
	p, err := testBuilder(t, nil).Build([]string{"cache"})
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, p.Status)
}

func TestBuild_NetworkName(t *testing.T) {
	p, err := testBuilder(t, nil).Build([]string{"cache"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(p.Network, "bosun_"))
	assert.Len(t, strings.TrimPrefix(p.Network, "bosun_"), 8)
}

func TestBuild_UnknownEntry(t *testing.T) {
	_, err := testBuilder(t, nil).Build([]string{"ghost"})
	require.ErrorIs(t, err, ErrUnknownEntry)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuild_EmptyRequest(t *testing.T) {
	_, err := testBuilder(t, nil).Build(nil)
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestBuild_PortsPreferConventional(t *testing.T) {
	p, err := testBuilder(t, nil).Build([]string{"app"})
	require.NoError(t, err)

	for _, svc := range p.Services {
		for containerPort, hostPort := range svc.Ports {
			assert.Equal(t, containerPort, hostPort, svc.Entry.ID)
		}
	}
}

func TestBuild_PortsDistinctUnderContention(t *testing.T) {
	// The host already holds app's conventional port.
	b := NewBuilder(BuilderParams{
		Catalog:        testCatalog(t),
		BaseDir:        "/srv/bosun",
		Ports:          PortRange{Start: 5000, End: 9000},
		HostBoundPorts: []int{8080},
	})

	p, err := b.Build([]string{"app"})
	require.NoError(t, err)

	svc, ok := p.Service("app")
	require.True(t, ok)
	assert.Equal(t, 8081, svc.Ports[8080])
}

func TestBuild_PortExhaustion(t *testing.T) {
	b := NewBuilder(BuilderParams{
		Catalog:        testCatalog(t),
		BaseDir:        "/srv/bosun",
		Ports:          PortRange{Start: 8000, End: 8000},
		HostBoundPorts: []int{8000},
	})

	_, err := b.Build([]string{"cache"})
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestBuild_ClaimsVolumePaths(t *testing.T) {
	claimer := newRecordingClaimer()
	_, err := testBuilder(t, claimer).Build([]string{"db"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"/srv/bosun/db/data": "db",
	}, claimer.claims)
}

func TestBuild_PathConflictSurfaces(t *testing.T) {
	claimer := newRecordingClaimer()
	claimer.fail = ErrPathConflict

	_, err := testBuilder(t, claimer).Build([]string{"db"})
	assert.ErrorIs(t, err, ErrPathConflict)
}

func TestBuild_Cycle(t *testing.T) {
	c, err := catalog.New([]catalog.Entry{
		{ID: "a", Image: "example/a", DependsOn: []string{"b"},
			Ports: []catalog.PortSpec{{ContainerPort: 8021, Protocol: "tcp"}}},
		{ID: "b", Image: "example/b", DependsOn: []string{"a"},
			Ports: []catalog.PortSpec{{ContainerPort: 8022, Protocol: "tcp"}}},
	}, nil)
	require.NoError(t, err)

	claimer := newRecordingClaimer()
	b := NewBuilder(BuilderParams{
		Catalog: c,
		BaseDir: "/srv/bosun",
		Ports:   PortRange{Start: 8000, End: 9000},
		Paths:   claimer,
	})

	_, err = b.Build([]string{"a"})
	require.ErrorIs(t, err, ErrCyclicDependency)

	// Ordering fails before allocation: no path was claimed.
	assert.Empty(t, claimer.claims)
}

func TestBuild_EnvCopiedNotShared(t *testing.T) {
	b := testBuilder(t, nil)

	p1, err := b.Build([]string{"app"})
	require.NoError(t, err)
	svc, _ := p1.Service("app")
	svc.Env["MODE"] = "mutated"

	entry, _ := testCatalog(t).Get("app")
	assert.Equal(t, "production", entry.Env["MODE"])
}

func TestBuild_DepsRestrictedToPlan(t *testing.T) {
	p, err := testBuilder(t, nil).Build([]string{"app"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"db", "cache"}, p.Deps["app"])
	assert.Empty(t, p.Deps["db"])
}
