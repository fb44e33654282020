package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bosun-dev/bosun/internal/config"
	"github.com/bosun-dev/bosun/internal/core/catalog"
)

var (
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bosun",
	Short: "Bosun - deploy self-hosted apps as managed container groups",
	Long: `Bosun plans and orchestrates self-hosted application deployments.
It expands a catalog entry or bundle into a dependency-ordered plan,
allocates host ports and volume directories, and drives the containers
to a verified ready state or rolls the whole group back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger = config.SetupLogger(cfg)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is builtin defaults + BOSUN_* env)")
}

// loadCatalog loads the configured catalog file merged over the builtin
// entries.
func loadCatalog() (*catalog.Catalog, error) {
	return catalog.LoadFile(cfg.Catalog.Path)
}
