package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake, the optional kafka consumer and delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			logger.WithFields(map[string]any{
				"version":   cfg.Version,
				"port":      cfg.Port,
				"database":  cfg.DatabaseEnabled(),
				"redis":     cfg.RedisEnabled(),
				"consumer":  cfg.KafkaConsumerEnabled,
				"events":    cfg.KafkaEventsEnabled,
				"delivery":  cfg.DeliveryEnabled,
				"threshold": cfg.MatchThreshold,
			}).Info("Starting clover")

			return a.Run(ctx)
		},
	}
}
