package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/app"
	"github.com/Ramsey-B/clover/pkg/database"
)

func migrateCmd() *cobra.Command {
	var (
		version int
		force   int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the submission archive migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			if cmd.Flags().Changed("target-version") {
				cfg.DatabaseMigrationVersion = version
			}
			if cmd.Flags().Changed("force") {
				cfg.DatabaseMigrationForce = force
			}

			db, err := database.Connect(cmd.Context(), app.DatabaseConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.NewMigrator(logger, app.MigrationConfig(cfg)).Up(cmd.Context(), db, cfg.DatabaseName)
		},
	}

	cmd.Flags().IntVar(&version, "target-version", 0, "Target schema version (0 migrates to latest)")
	cmd.Flags().IntVar(&force, "force", 0, "Force the schema version before migrating, to recover from a dirty state")

	return cmd
}
