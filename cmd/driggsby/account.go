package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/accounts"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect ledger accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "Summarize accounts and their activity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := accounts.Run(homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

func init() {
	accountCmd.AddCommand(accountListCmd)
}
