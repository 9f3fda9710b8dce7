package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Ingest, list, inspect, and undo transaction imports",
}

var importCreateCmd = &cobra.Command{
	Use:   "create [path]",
	Short: "Import a batch of normalized transactions",
	Long: `Import a JSON array or CSV of normalized transactions.

Pass a file path, pipe input on stdin, or pass "-" to read stdin
explicitly. With --dry-run, the batch is validated and analyzed against
committed history and nothing is written.

Examples:
  driggsby import create statement.json
  driggsby import create --dry-run statement.csv
  cat statement.json | driggsby import create
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var path *string
		if len(args) == 1 {
			path = &args[0]
		}

		envelope, err := importer.Run(importer.RunOptions{
			Path:         path,
			DryRun:       dryRun,
			HomeOverride: homeOverride,
		})
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import runs, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := importer.List(homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var importUndoCmd = &cobra.Command{
	Use:   "undo <import_id>",
	Short: "Revert a committed import and promote waiting candidates",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := importer.Undo(args[0], homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var importDuplicatesCmd = &cobra.Command{
	Use:   "duplicates <import_id>",
	Short: "Show an import's dedupe candidate audit trail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := importer.Duplicates(args[0], homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var importKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect the committed value inventory",
}

var importKeysUniqCmd = &cobra.Command{
	Use:   "uniq [property]",
	Short: "List distinct committed values per tracked property",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var property *string
		if len(args) == 1 {
			property = &args[0]
		}
		envelope, err := importer.KeysUniq(property, homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

func init() {
	importCreateCmd.Flags().Bool("dry-run", false, "validate and analyze without writing")

	importKeysCmd.AddCommand(importKeysUniqCmd)
	importCmd.AddCommand(importCreateCmd)
	importCmd.AddCommand(importListCmd)
	importCmd.AddCommand(importUndoCmd)
	importCmd.AddCommand(importDuplicatesCmd)
	importCmd.AddCommand(importKeysCmd)
}
