package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bosun-dev/bosun/internal/shell/docker"
)

var statusCmd = &cobra.Command{
	Use:   "status [app]",
	Short: "Show managed containers and their state",
	Long: `Status lists the containers bosun manages, read live from the
container runtime. With an app argument, only that service's containers
are shown. There is no persisted deployment registry; the runtime is
the ground truth.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	filter := fmt.Sprintf("%s=true", docker.LabelManaged)
	if len(args) == 1 {
		filter = fmt.Sprintf("%s=%s", docker.LabelService, args[0])
	}

	containers, err := client.ListContainers(ctx, docker.ListOptions{
		All:     true,
		Filters: map[string]string{"label": filter},
	})
	if err != nil {
		return err
	}

	if len(containers) == 0 {
		fmt.Println("No managed containers.")
		return nil
	}

	for _, c := range containers {
		printContainerStatus(c)
	}
	return nil
}

func printContainerStatus(c docker.ContainerInfo) {
	state := color.RedString(c.State)
	if c.Running() {
		state = color.GreenString(c.State)
	}

	service := c.Labels[docker.LabelService]
	planID := c.Labels[docker.LabelPlan]

	fmt.Printf("%-24s %-10s %s\n", service, state, c.Image)
	if planID != "" {
		fmt.Printf("  plan: %s\n", planID)
	}
	for _, p := range c.Ports {
		if p.HostPort == 0 {
			continue
		}
		fmt.Printf("  http://localhost:%d -> %d/%s\n", p.HostPort, p.ContainerPort, p.Protocol)
	}
}
