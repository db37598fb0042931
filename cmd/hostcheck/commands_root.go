package main

import (
	"fmt"

	"github.com/sourceplane/hostcheck/internal/config"
	"github.com/sourceplane/hostcheck/internal/job"
	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	dslFile    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "hostcheck",
	Short:        "Policy-gated remote host verification",
	Long:         "hostcheck compiles a declarative verification job into an audited plan of catalog actions, runs it over SSH and judges the results",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		l, err := logging.New(loaded.Log)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		cfg, logger = loaded, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (YAML); HOSTCHECK_* variables override it")

	registerValidateCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerRunCommand(rootCmd)
	registerCatalogCommand(rootCmd)
}

// newPlanner builds an orchestrator that is only used for its submission
// checks; it never runs a job.
func newPlanner() (*job.Orchestrator, error) {
	cat, err := loader.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return job.New(cat, nil, job.WithLogger(logger))
}
