package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/intelligence"
)

var intelligenceCmd = &cobra.Command{
	Use:   "intelligence",
	Short: "Manage derived analytics materializations",
}

var intelligenceRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the recurring and anomaly materializations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := intelligence.Refresh(homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

func init() {
	intelligenceCmd.AddCommand(intelligenceRefreshCmd)
}
