package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	serve := newServeCmd(&configPath)

	root := &cobra.Command{
		Use:   "booksd",
		Short: "Book inventory REST service",
		Long: `booksd stores book records and serves them over a JSON REST API.

Configuration is read from an optional YAML file (--config) and then from
environment variables such as DATABASE_URL, HTTP_PORT and RABBITMQ_URL.
Running booksd without a subcommand starts the server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(
		serve,
		newMigrateCmd(&configPath),
		newEventsCmd(&configPath),
		newOpenAPICmd(),
	)
	return root
}
