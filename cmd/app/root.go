package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "labpulse",
	Short:         "Longitudinal biomarker analytics: forecasts, risk scores and anomalies.",
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newAnalyzeCmd())
}
