package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/intelligence"
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect unusual transaction amounts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := intelligence.Anomalies(dateFlag(cmd, "from"), dateFlag(cmd, "to"), homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

func init() {
	anomaliesCmd.Flags().String("from", "", "only consider rows posted on or after this date (YYYY-MM-DD)")
	anomaliesCmd.Flags().String("to", "", "only consider rows posted on or before this date (YYYY-MM-DD)")
}
