package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/intelligence"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Detect recurring payment patterns",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := intelligence.Recurring(dateFlag(cmd, "from"), dateFlag(cmd, "to"), homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

// dateFlag returns a date flag's value, or nil when unset.
func dateFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}

func init() {
	recurringCmd.Flags().String("from", "", "only consider rows posted on or after this date (YYYY-MM-DD)")
	recurringCmd.Flags().String("to", "", "only consider rows posted on or before this date (YYYY-MM-DD)")
}
