package main

import (
	"github.com/spf13/cobra"

	"github.com/mzxrai/driggsby/internal/sqlquery"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and query the ledger's public SQL surface",
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Describe the public v1_* view contract",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := sqlquery.SchemaSummary(homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var dbSchemaViewCmd = &cobra.Command{
	Use:   "view <view_name>",
	Short: "Describe one public view's columns",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		envelope, err := sqlquery.SchemaView(args[0], homeOverride)
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

var dbSQLCmd = &cobra.Command{
	Use:   "sql [query]",
	Short: "Run a read-only query against the public views",
	Long: `Run a read-only SQL query against the public v1_* views.

Queries execute behind an authorizer that permits only SELECT access to
the public views and a fixed set of scalar/aggregate functions.

Examples:
  driggsby db sql "SELECT * FROM v1_transactions LIMIT 5;"
  driggsby db sql --file report.sql
  echo "SELECT COUNT(*) FROM v1_imports;" | driggsby db sql --file -
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		maxRowsFlag, _ := cmd.Flags().GetInt64("max-rows")

		var query *string
		if len(args) == 1 {
			query = &args[0]
		}
		var file *string
		if filePath != "" {
			file = &filePath
		}
		var maxRows *int64
		if cmd.Flags().Changed("max-rows") {
			maxRows = &maxRowsFlag
		}

		envelope, err := sqlquery.Run(sqlquery.QueryOptions{
			Query:        query,
			File:         file,
			HomeOverride: homeOverride,
			MaxRows:      maxRows,
		})
		if err != nil {
			fail(err)
		}
		emit(envelope)
	},
}

func init() {
	dbSQLCmd.Flags().String("file", "", "read the query from a file ('-' for stdin)")
	dbSQLCmd.Flags().Int64("max-rows", 1000, "maximum rows to return (hard cap 10000)")

	dbSchemaCmd.AddCommand(dbSchemaViewCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	dbCmd.AddCommand(dbSQLCmd)
}
