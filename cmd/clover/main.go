package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/logging"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "clover",
		Short:         "Clover matches fact finds with automation forms and delivers insurance reports",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(retriggerCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

// setup loads config and builds the process logger. The returned func flushes the logger.
func setup() (*config.Config, ectologger.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Version == "dev" {
		cfg.Version = Version
	}

	logger, zl, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger.WithField("app", cfg.AppName), func() { _ = zl.Sync() }, nil
}
