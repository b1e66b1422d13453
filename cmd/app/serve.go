package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"LabPulse/internal/di"
	"LabPulse/pkg/config"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, ingest consumers and live stream",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	return cmd
}
