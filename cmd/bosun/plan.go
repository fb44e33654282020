package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bosun-dev/bosun/internal/core/plan"
)

var planBundle string

var planCmd = &cobra.Command{
	Use:   "plan <app>",
	Short: "Show the deployment plan without starting anything",
	Long: `Plan runs the same expansion and resource allocation as deploy but
stops before touching the container runtime: no directories are
created, no containers started. Port assignments reflect the host
state at the moment the command runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planBundle, "bundle", "", "plan a named bundle instead of a single app")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	deployBundle = planBundle
	requested, err := resolveRequest(cat, args)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	// NopClaimer keeps the dry run side-effect free.
	p, err := buildPlan(cat, requested, plan.NopClaimer{})
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	bold := color.New(color.Bold)
	bold.Printf("Plan %s\n", p.ID)
	fmt.Printf("  network: %s\n", p.Network)

	for i, batch := range p.Batches() {
		var ids []string
		for _, svc := range batch {
			ids = append(ids, svc.Entry.ID)
		}
		fmt.Printf("  batch %d: %s\n", i+1, strings.Join(ids, ", "))
	}

	fmt.Println()
	printPlanSummary(p)
	return nil
}
