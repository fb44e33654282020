package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployable apps and bundles",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Println("Apps:")
	for _, e := range cat.Entries() {
		fmt.Printf("  %-24s %s\n", e.ID, e.Description)
		if len(e.DependsOn) > 0 {
			fmt.Printf("  %-24s depends on: %s\n", "", strings.Join(e.DependsOn, ", "))
		}
	}

	bundles := cat.Bundles()
	if len(bundles) == 0 {
		return nil
	}

	fmt.Println()
	bold.Println("Bundles:")
	for _, b := range bundles {
		fmt.Printf("  %-24s %s\n", b.Name, b.Description)
		fmt.Printf("  %-24s members: %s\n", "", strings.Join(b.Members, ", "))
	}
	return nil
}
