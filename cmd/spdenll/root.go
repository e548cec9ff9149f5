package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/spdebarrier/config"
	"github.com/notargets/spdebarrier/logging"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "spdenll",
		Short:         "Negative log-likelihood of the barrier SPDE Poisson model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "configuration file (YAML)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	cmd.AddCommand(newEvalCommand(a), newMeshCommand(a), newVersionCommand())
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log.Named("spdenll")
	a.log.Debug("configuration loaded",
		zap.String("path", a.configPath),
		zap.String("level", cfg.Log.Level),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "spdenll", version)
			return err
		},
	}
}
