package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/app"
)

func retriggerCmd() *cobra.Command {
	var noForce bool

	cmd := &cobra.Command{
		Use:   "retrigger [email]",
		Short: "Re-run matching and delivery for one client from the submission archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			// a one-shot retrigger must not start reading the intake topic
			cfg.KafkaConsumerEnabled = false
			cfg.DatabaseRehydrateOnStart = true

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = a.Stop(ctx) }()

			summary, err := a.Orchestrator().Retrigger(ctx, args[0], !noForce)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noForce, "no-force", false, "Skip delivery if this exact pair was already delivered")

	return cmd
}
