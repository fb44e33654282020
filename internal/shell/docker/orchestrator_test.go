package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosun-dev/bosun/internal/core/catalog"
	"github.com/bosun-dev/bosun/internal/core/health"
	"github.com/bosun-dev/bosun/internal/core/plan"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeClient is an in-memory Client that records every operation in order.
type fakeClient struct {
	mu         sync.Mutex
	containers map[string]*ContainerInfo
	networks   map[string]struct{}
	events     []string
	nextID     int

	createErr   map[string]error // keyed by service label
	startErr    map[string]error // keyed by service label
	removeErr   map[string]error // keyed by service label
	exitOnStart map[string]bool  // service label → container dies immediately
	inspectErr  map[string]int   // service label → remaining inspect failures
	missingImgs map[string]bool
	pullErr     map[string]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		containers:  make(map[string]*ContainerInfo),
		networks:    make(map[string]struct{}),
		createErr:   make(map[string]error),
		startErr:    make(map[string]error),
		removeErr:   make(map[string]error),
		exitOnStart: make(map[string]bool),
		inspectErr:  make(map[string]int),
		missingImgs: make(map[string]bool),
		pullErr:     make(map[string]error),
	}
}

func (f *fakeClient) record(format string, args ...any) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeClient) serviceOf(containerID string) string {
	if info, ok := f.containers[containerID]; ok {
		return info.Labels[LabelService]
	}
	return containerID
}

func (f *fakeClient) CreateContainer(_ context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	service := spec.Labels[LabelService]
	if err := f.createErr[service]; err != nil {
		return "", err
	}

	f.nextID++
	id := fmt.Sprintf("ctr-%d", f.nextID)
	f.containers[id] = &ContainerInfo{
		ID:     id,
		Name:   spec.Name,
		Image:  spec.Image,
		State:  "created",
		Ports:  spec.Ports,
		Labels: spec.Labels,
	}
	f.record("create %s", service)
	return id, nil
}

func (f *fakeClient) StartContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.containers[containerID]
	if !ok {
		return ErrContainerNotFound
	}
	service := info.Labels[LabelService]
	if err := f.startErr[service]; err != nil {
		return err
	}

	if f.exitOnStart[service] {
		info.State = "exited"
		info.ExitCode = 1
	} else {
		info.State = "running"
	}
	f.record("start %s", service)
	return nil
}

func (f *fakeClient) StopContainer(_ context.Context, containerID string, _ *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.containers[containerID]
	if !ok {
		return ErrContainerNotFound
	}
	info.State = "exited"
	f.record("stop %s", info.Labels[LabelService])
	return nil
}

func (f *fakeClient) RemoveContainer(_ context.Context, containerID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.containers[containerID]
	if !ok {
		return ErrContainerNotFound
	}
	service := info.Labels[LabelService]
	if err := f.removeErr[service]; err != nil {
		return err
	}
	delete(f.containers, containerID)
	f.record("remove %s", service)
	return nil
}

func (f *fakeClient) InspectContainer(_ context.Context, containerID string) (*ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.containers[containerID]
	if !ok {
		return nil, ErrContainerNotFound
	}
	service := info.Labels[LabelService]
	if f.inspectErr[service] > 0 {
		f.inspectErr[service]--
		return nil, errors.New("daemon busy")
	}
	copied := *info
	return &copied, nil
}

func (f *fakeClient) ListContainers(_ context.Context, opts ListOptions) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ContainerInfo
	for _, info := range f.containers {
		if !opts.All && info.State != "running" {
			continue
		}
		if filter, ok := opts.Filters["label"]; ok && !matchesLabel(info.Labels, filter) {
			continue
		}
		out = append(out, *info)
	}
	return out, nil
}

func matchesLabel(labels map[string]string, filter string) bool {
	key, value, found := strings.Cut(filter, "=")
	if !found {
		_, ok := labels[key]
		return ok
	}
	return labels[key] == value
}

func (f *fakeClient) CreateNetwork(_ context.Context, spec NetworkSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.networks[spec.Name]; exists {
		return "", fmt.Errorf("network %s: %w", spec.Name, ErrNetworkAlreadyExists)
	}
	f.networks[spec.Name] = struct{}{}
	f.record("network create %s", spec.Name)
	return "net-" + spec.Name, nil
}

func (f *fakeClient) RemoveNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.networks[name]; !exists {
		return ErrNetworkNotFound
	}
	delete(f.networks, name)
	f.record("network remove %s", name)
	return nil
}

func (f *fakeClient) PullImage(_ context.Context, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.pullErr[image]; err != nil {
		return err
	}
	delete(f.missingImgs, image)
	f.record("pull %s", image)
	return nil
}

func (f *fakeClient) ImageExists(_ context.Context, image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missingImgs[image], nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }
func (f *fakeClient) Close() error               { return nil }

// eventsMatching returns recorded events with the given prefix, in order.
func (f *fakeClient) eventsMatching(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, e := range f.events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeClient) eventIndex(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, e := range f.events {
		if e == event {
			return i
		}
	}
	return -1
}

// fakeProber reports readiness per service by never consulting the network.
type fakeProber struct {
	mu       sync.Mutex
	allReady bool
	ready    map[string]bool // keyed by "127.0.0.1:<port>"
}

func (p *fakeProber) ProbeTCP(_ context.Context, addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allReady || p.ready[addr]
}

func (p *fakeProber) ProbeHTTP(_ context.Context, url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allReady
}

// =============================================================================
// Fixtures
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		PollInterval:  time.Millisecond,
		HealthTimeout: 25 * time.Millisecond,
		StopTimeout:   time.Millisecond,
	}
}

// stackPlan builds a validated plan for db + cache ← app.
func stackPlan(t *testing.T) *plan.Plan {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{ID: "db", Image: "example/db", Ports: []catalog.PortSpec{{ContainerPort: 8001, Protocol: "tcp"}}},
		{ID: "cache", Image: "example/cache", Ports: []catalog.PortSpec{{ContainerPort: 8002, Protocol: "tcp"}}},
		{ID: "app", Image: "example/app", Ports: []catalog.PortSpec{{ContainerPort: 8003, Protocol: "tcp"}},
			DependsOn: []string{"db", "cache"}},
	}, nil)
	require.NoError(t, err)

	return buildPlan(t, c, []string{"app"})
}

// chainPlan builds a validated plan for a ← b ← c.
func chainPlan(t *testing.T) *plan.Plan {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{ID: "a", Image: "example/a", Ports: []catalog.PortSpec{{ContainerPort: 8011, Protocol: "tcp"}}},
		{ID: "b", Image: "example/b", Ports: []catalog.PortSpec{{ContainerPort: 8012, Protocol: "tcp"}},
			DependsOn: []string{"a"}},
		{ID: "c", Image: "example/c", Ports: []catalog.PortSpec{{ContainerPort: 8013, Protocol: "tcp"}},
			DependsOn: []string{"b"}},
	}, nil)
	require.NoError(t, err)

	return buildPlan(t, c, []string{"c"})
}

func buildPlan(t *testing.T, c *catalog.Catalog, requested []string) *plan.Plan {
	t.Helper()
	p, err := plan.NewBuilder(plan.BuilderParams{
		Catalog: c,
		BaseDir: t.TempDir(),
		Ports:   plan.PortRange{Start: 8000, End: 9000},
	}).Build(requested)
	require.NoError(t, err)
	return p
}

// =============================================================================
// Apply Tests
// =============================================================================

func TestApply_AllServicesReady(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	result, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, plan.StatusCompleted, p.Status)
	assert.Equal(t, plan.StatusCompleted, result.Status)
	for id, st := range result.States {
		assert.Equal(t, ServiceReady, st.Status, id)
	}
}

func TestApply_DependentStartsAfterDependenciesReady(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())

	_, err := orch.Apply(context.Background(), stackPlan(t))
	require.NoError(t, err)

	appCreate := client.eventIndex("create app")
	require.GreaterOrEqual(t, appCreate, 0)
	assert.Less(t, client.eventIndex("start db"), appCreate)
	assert.Less(t, client.eventIndex("start cache"), appCreate)
}

func TestApply_NetworkCreatedBeforeContainers(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)

	netCreate := client.eventIndex("network create " + p.Network)
	require.GreaterOrEqual(t, netCreate, 0)
	for _, create := range client.eventsMatching("create ") {
		assert.Greater(t, client.eventIndex(create), netCreate)
	}
}

func TestApply_ReusesExistingNetwork(t *testing.T) {
	client := newFakeClient()
	p := stackPlan(t)
	client.networks[p.Network] = struct{}{}

	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())

	_, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, p.Status)
}

func TestApply_RejectsReapply(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)

	_, err = orch.Apply(context.Background(), p)
	assert.ErrorIs(t, err, plan.ErrNotApplyable)
}

func TestApply_HealthTimeout_DependentNeverStarts(t *testing.T) {
	client := newFakeClient()
	// db's probe never succeeds; cache and app would be reachable.
	prober := &fakeProber{ready: map[string]bool{
		"127.0.0.1:8002": true,
		"127.0.0.1:8003": true,
	}}
	orch := NewOrchestrator(client, prober, fastConfig(), testLogger())
	p := stackPlan(t)

	result, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	// The failing service and reason identify db, not its dependents.
	assert.Equal(t, "db", result.FailedService)
	assert.Equal(t, health.ReasonHealthTimeout, result.FailureReason)
	assert.Equal(t, plan.StatusRolledBack, p.Status)

	// The dependent batch was never dispatched.
	assert.Equal(t, -1, client.eventIndex("create app"))
}

func TestApply_TransientInspectError_DoesNotFailService(t *testing.T) {
	client := newFakeClient()
	// The daemon hiccups on the first poll of every service; the
	// containers themselves stay running the whole time.
	client.inspectErr["db"] = 1
	client.inspectErr["cache"] = 1
	client.inspectErr["app"] = 1
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	result, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, plan.StatusCompleted, p.Status)
	for id, st := range result.States {
		assert.Equal(t, ServiceReady, st.Status, id)
		assert.NotEqual(t, health.ReasonProcessExited, st.Reason, id)
	}
}

func TestApply_PersistentInspectError_TimesOut(t *testing.T) {
	client := newFakeClient()
	// Inspect never recovers for db: the poll loop retries until the
	// readiness timeout, which classifies the failure as a timeout, not
	// a process exit.
	client.inspectErr["db"] = 1 << 20
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	result, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	assert.Equal(t, "db", result.FailedService)
	assert.Equal(t, health.ReasonHealthTimeout, result.FailureReason)
	assert.Equal(t, plan.StatusRolledBack, p.Status)
}

func TestApply_ProcessExit_FailsImmediately(t *testing.T) {
	client := newFakeClient()
	client.exitOnStart["db"] = true
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	result, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	assert.Equal(t, "db", result.FailedService)
	assert.Equal(t, health.ReasonProcessExited, result.FailureReason)
	assert.Equal(t, plan.StatusRolledBack, p.Status)
}

func TestApply_CreateFailure_RollsBack(t *testing.T) {
	client := newFakeClient()
	client.createErr["cache"] = errors.New("boom")
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	assert.Equal(t, plan.StatusRolledBack, p.Status)
	// Everything that was created got removed again.
	assert.Empty(t, client.containers)
	assert.Empty(t, client.networks)
}

func TestApply_PullFailure(t *testing.T) {
	client := newFakeClient()
	client.missingImgs["example/db"] = true
	client.pullErr["example/db"] = fmt.Errorf("%w: example/db", ErrImagePullFailed)
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.ErrorIs(t, err, ErrImagePullFailed)

	// Pulls happen before any container exists.
	assert.Empty(t, client.eventsMatching("create "))
	assert.Equal(t, plan.StatusRolledBack, p.Status)
}

func TestApply_Cancelled_RollsBack(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{}, fastConfig(), testLogger())
	p := stackPlan(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Apply(ctx, p)
	require.ErrorIs(t, err, context.Canceled)

	// Cancellation still lands in a terminal state with nothing left behind.
	assert.Equal(t, plan.StatusRolledBack, p.Status)
	assert.Empty(t, client.containers)
}

// =============================================================================
// Rollback Tests
// =============================================================================

func TestRollback_ReverseStartOrder(t *testing.T) {
	client := newFakeClient()
	// c exits right after start, so a and b are already Ready and must be
	// unwound after c.
	client.exitOnStart["c"] = true
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := chainPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	stops := client.eventsMatching("stop ")
	require.Equal(t, []string{"stop c", "stop b", "stop a"}, stops)
	assert.Equal(t, plan.StatusRolledBack, p.Status)
}

func TestRollback_RemovesNetworkLast(t *testing.T) {
	client := newFakeClient()
	client.exitOnStart["a"] = true
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := chainPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	netRemove := client.eventIndex("network remove " + p.Network)
	require.GreaterOrEqual(t, netRemove, 0)
	for _, remove := range client.eventsMatching("remove ") {
		assert.Less(t, client.eventIndex(remove), netRemove)
	}
}

func TestRollback_PartialFailure_ReportsLeftovers(t *testing.T) {
	client := newFakeClient()
	client.exitOnStart["b"] = true
	client.removeErr["a"] = errors.New("device busy")
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := chainPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.Error(t, err)

	var cleanup *CleanupError
	require.ErrorAs(t, err, &cleanup)
	assert.ErrorIs(t, cleanup, ErrPartialRollback)

	// The stuck container and the network it blocks are both reported,
	// and the plan lands in Failed rather than RolledBack.
	assert.Len(t, cleanup.Leftovers, 2)
	assert.Contains(t, cleanup.Leftovers, p.Network)
	assert.Equal(t, plan.StatusFailed, p.Status)
}

// =============================================================================
// Stop Tests
// =============================================================================

func TestStopService_RemovesContainersAndNetwork(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, client.containers, 3)

	require.NoError(t, orch.StopService(context.Background(), "app"))

	// Only app's container goes; db and cache belong to themselves.
	assert.Len(t, client.containers, 2)
}

func TestStopService_Unknown(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{}, fastConfig(), testLogger())

	err := orch.StopService(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestServiceContainers_FiltersByLabel(t *testing.T) {
	client := newFakeClient()
	orch := NewOrchestrator(client, &fakeProber{allReady: true}, fastConfig(), testLogger())
	p := stackPlan(t)

	_, err := orch.Apply(context.Background(), p)
	require.NoError(t, err)

	containers, err := orch.ServiceContainers(context.Background(), "db")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "db", containers[0].Labels[LabelService])
}
