package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bosun-dev/bosun/internal/core/catalog"
	"github.com/bosun-dev/bosun/internal/core/plan"
	"github.com/bosun-dev/bosun/internal/shell/docker"
	"github.com/bosun-dev/bosun/internal/shell/hostnet"
	"github.com/bosun-dev/bosun/internal/shell/workspace"
)

var deployBundle string

var deployCmd = &cobra.Command{
	Use:   "deploy <app>",
	Short: "Deploy an application and its dependencies",
	Long: `Deploy expands the named catalog entry (or, with --bundle, every
member of a bundle) into a plan covering its transitive dependencies,
allocates host ports and volume directories, and starts the containers
in dependency order. Each service must pass its readiness contract
before its dependents start; any failure rolls the whole group back.

Exit codes:
  0  every service reached ready
  1  the request could not be planned (unknown entry, cycle, no free
     ports, volume directory owned by another deployment)
  2  a service failed at runtime and the group was rolled back
  3  rollback itself left resources behind`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployBundle, "bundle", "", "deploy a named bundle instead of a single app")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	requested, err := resolveRequest(cat, args)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer client.Close()

	// Runtime reachability is a prerequisite: fail before any resource
	// is allocated rather than mid-apply.
	if err := client.Ping(ctx); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("docker daemon unreachable: %w", err)}
	}

	p, err := buildPlan(cat, requested, workspace.New(logger))
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	fmt.Printf("Plan %s: %d service(s) on network %s\n", p.ID, len(p.Services), p.Network)

	orch := docker.NewOrchestrator(client, nil, docker.Config{
		PollInterval:  cfg.Health.PollInterval,
		HealthTimeout: cfg.Health.Timeout,
		StopTimeout:   cfg.Health.StopTimeout,
	}, logger)

	result, err := orch.Apply(ctx, p)
	if err != nil {
		return deployFailure(result, err)
	}

	printPlanSummary(p)
	color.Green("Deployment complete.")
	return nil
}

// resolveRequest turns the command line into the requested entry ids.
func resolveRequest(cat *catalog.Catalog, args []string) ([]string, error) {
	if deployBundle != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("cannot combine --bundle with an app argument")
		}
		b, ok := cat.Bundle(deployBundle)
		if !ok {
			return nil, fmt.Errorf("unknown bundle %q (see 'bosun list')", deployBundle)
		}
		return b.Members, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("an app name or --bundle is required (see 'bosun list')")
	}
	return []string{args[0]}, nil
}

// buildPlan snapshots host state and runs one planning pass.
func buildPlan(cat *catalog.Catalog, requested []string, paths plan.PathClaimer) (*plan.Plan, error) {
	scan := plan.PortRange{Start: cfg.Ports.Start, End: cfg.Ports.End}

	builder := plan.NewBuilder(plan.BuilderParams{
		Catalog:        cat,
		BaseDir:        cfg.Storage.BaseDir,
		Ports:          scan,
		HostBoundPorts: hostnet.BoundPorts(scan),
		Paths:          paths,
		NetworkPrefix:  cfg.Network.Prefix,
	})

	return builder.Build(requested)
}

// deployFailure maps an apply failure to the right exit code and prints
// what a human needs to act on it.
func deployFailure(result *docker.ApplyResult, err error) error {
	if result != nil && result.FailedService != "" {
		reason := string(result.FailureReason)
		if reason == "" {
			reason = "runtime error"
		}
		color.Red("Service %s failed: %s", result.FailedService, reason)
	}

	var cleanup *docker.CleanupError
	if errors.As(err, &cleanup) {
		color.Red("Rollback incomplete, manual cleanup required:")
		for _, leftover := range cleanup.Leftovers {
			fmt.Fprintf(os.Stderr, "  leftover: %s\n", leftover)
		}
		return &exitError{code: 3, err: err}
	}

	if result != nil && result.Status == plan.StatusRolledBack {
		color.Yellow("All started containers were rolled back.")
		return &exitError{code: 2, err: err}
	}

	return &exitError{code: 1, err: err}
}

// printPlanSummary lists each service with its host bindings.
func printPlanSummary(p *plan.Plan) {
	bold := color.New(color.Bold)
	for _, svc := range p.Services {
		bold.Printf("  %s\n", svc.Entry.ID)
		for _, port := range svc.Entry.Ports {
			fmt.Printf("    http://localhost:%d -> %d/%s\n",
				svc.Ports[port.ContainerPort], port.ContainerPort, port.Protocol)
		}
		for _, vol := range svc.Entry.Volumes {
			fmt.Printf("    %s -> %s\n", svc.Volumes[vol.ContainerPath], vol.ContainerPath)
		}
	}
}
