package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/config"
	"github.com/mzxrai/driggsby/internal/logging"
)

var homeOverride string

var rootCmd = &cobra.Command{
	Use:           "driggsby",
	Short:         "Offline personal-finance ledger",
	Long:          "Driggsby is a single-user, offline personal-finance ledger: import normalized transactions, deduplicate against history, undo imports, and derive recurring patterns and anomalies.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = config.Initialize()
		logging.New(logging.Options{
			Destination: config.LogDestination(),
			Level:       config.LogLevel(),
			MaxSizeMB:   config.LogMaxSizeMB(),
			MaxBackups:  config.LogMaxBackups(),
		})
		if homeOverride == "" {
			homeOverride = config.LedgerHome()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeOverride, "home", "", "ledger home directory (default $DRIGGSBY_HOME or ~/.driggsby)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(recurringCmd)
	rootCmd.AddCommand(anomaliesCmd)
	rootCmd.AddCommand(intelligenceCmd)
	rootCmd.AddCommand(accountCmd)
}
