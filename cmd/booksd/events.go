package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/bookstore/services/books/internal/config"
	"github.com/bookstore/services/books/internal/events"
	"github.com/bookstore/services/books/pkg/logger"
	"github.com/spf13/cobra"
)

func newEventsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print book events from RabbitMQ as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.RabbitMQURL == "" {
				return errors.New("RABBITMQ_URL is not configured")
			}

			log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			consumer, err := events.NewConsumer(cfg.RabbitMQURL, cfg.ServiceName+".events", log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return consumer.Consume(ctx, func(_ context.Context, event events.Event) error {
				return enc.Encode(event)
			})
		},
	}
}
