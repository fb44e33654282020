package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bosun-dev/bosun/internal/shell/docker"
)

var stopCmd = &cobra.Command{
	Use:   "stop <app>",
	Short: "Stop and remove a deployed application",
	Long: `Stop halts and removes every container bosun manages for the named
app, then removes plan networks left without containers. Volume
directories are never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	orch := docker.NewOrchestrator(client, nil, docker.Config{
		StopTimeout: cfg.Health.StopTimeout,
	}, logger)

	if err := orch.StopService(ctx, args[0]); err != nil {
		var cleanup *docker.CleanupError
		if errors.As(err, &cleanup) {
			color.Red("Some resources could not be removed:")
			for _, leftover := range cleanup.Leftovers {
				fmt.Fprintf(os.Stderr, "  leftover: %s\n", leftover)
			}
			return &exitError{code: 3, err: err}
		}
		return err
	}

	color.Green("Stopped %s.", args[0])
	return nil
}
