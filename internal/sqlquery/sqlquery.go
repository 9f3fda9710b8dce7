// Package sqlquery is the ledger's public SQL surface: read-only,
// caller-supplied queries against the `v1_*` views, executed behind the
// store's authorizer, plus the schema introspection that documents those
// views.
package sqlquery

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/store"
)

const (
	defaultMaxRows = 1000
	hardMaxRows    = 10000
	maxSQLLength   = 65536
)

// QueryOptions carries one `db sql` call's inputs.
type QueryOptions struct {
	Query         *string
	File          *string
	HomeOverride  string
	StdinOverride *string
	MaxRows       *int64
}

type sqlSource struct {
	label string
	ref   *string
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// Run executes a caller-supplied read-only query against the public views.
func Run(opts QueryOptions) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(opts.HomeOverride)
	if err != nil {
		return nil, err
	}

	query, source, err := resolveSQLSource(opts.Query, opts.File, opts.StdinOverride)
	if err != nil {
		return nil, err
	}
	if err := validateSQLInput(query); err != nil {
		return nil, err
	}
	maxRows, err := normalizeMaxRows(opts.MaxRows)
	if err != nil {
		return nil, err
	}

	allowedViews := make([]string, 0, len(setup.PublicViews))
	for _, view := range setup.PublicViews {
		allowedViews = append(allowedViews, view.Name)
	}

	db, err := store.OpenPublicReadOnly(setup.DBPath, allowedViews)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	data, err := executeQuery(db, setup.DBPath, query, source, maxRows)
	if err != nil {
		return nil, err
	}
	return contracts.Success("db sql", data)
}

// SchemaSummary describes the public view contract.
func SchemaSummary(homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	return contracts.Success("db schema", contracts.SchemaSummaryData{
		DBPath:      setup.DBPath,
		ReadonlyURI: setup.ReadonlyURI,
		PublicViews: setup.PublicViews,
	})
}

// SchemaView describes one public view's columns.
func SchemaView(viewName, homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	for _, view := range setup.PublicViews {
		if view.Name == viewName {
			return contracts.Success("db schema view", contracts.SchemaViewData{
				ViewName: viewName,
				Columns:  view.Columns,
			})
		}
	}
	return nil, driggerr.UnknownView(viewName)
}

func resolveSQLSource(query, file, stdinOverride *string) (string, sqlSource, error) {
	if query != nil && file != nil {
		return "", sqlSource{}, sqlSourceError()
	}

	if query != nil {
		return *query, sqlSource{label: "inline"}, nil
	}

	if file != nil {
		if *file == "-" {
			var body string
			if stdinOverride != nil {
				body = *stdinOverride
			} else {
				buffer, err := io.ReadAll(os.Stdin)
				if err != nil {
					return "", sqlSource{}, driggerr.InvalidArgumentWithRecovery(
						fmt.Sprintf("Failed to read SQL from stdin: %v", err),
						[]string{"Pass an inline SQL query, or provide --file <path>."},
					)
				}
				body = string(buffer)
			}
			return body, sqlSource{label: "stdin"}, nil
		}

		body, err := os.ReadFile(*file)
		if err != nil {
			return "", sqlSource{}, driggerr.InvalidArgumentWithRecovery(
				fmt.Sprintf("Failed to read SQL file `%s`: %v", *file, err),
				[]string{
					"Check the file path and read permissions, then retry.",
					"Or pass an inline SQL query directly to `driggsby db sql`.",
				},
			)
		}
		return string(body), sqlSource{label: "file", ref: file}, nil
	}

	return "", sqlSource{}, sqlSourceError()
}

func sqlSourceError() error {
	return driggerr.InvalidArgumentWithRecovery(
		"Provide exactly one SQL source: inline query arg, --file <path>, or --file - for stdin.",
		[]string{
			"Use `driggsby db sql \"SELECT * FROM v1_transactions LIMIT 5;\"`.",
			"Or use `driggsby db sql --file <path-to-query.sql>`.",
		},
	)
}

func validateSQLInput(query string) error {
	if strings.TrimSpace(query) == "" {
		return driggerr.InvalidArgumentWithRecovery(
			"SQL query cannot be empty.",
			[]string{"Provide a non-empty SQL query and retry."},
		)
	}
	if strings.ContainsRune(query, 0) {
		return driggerr.InvalidArgumentWithRecovery(
			"SQL query contains unsupported NUL bytes.",
			[]string{"Remove NUL bytes and retry the query."},
		)
	}
	if len(query) > maxSQLLength {
		return driggerr.InvalidArgumentWithRecovery(
			fmt.Sprintf("SQL query exceeds max length (%d characters).", maxSQLLength),
			[]string{
				"Shorten the query and rerun `driggsby db sql`.",
				"For long workflows, split your query into smaller statements.",
			},
		)
	}
	return nil
}

func normalizeMaxRows(maxRows *int64) (int64, error) {
	resolved := int64(defaultMaxRows)
	if maxRows != nil {
		resolved = *maxRows
	}
	if resolved <= 0 || resolved > hardMaxRows {
		return 0, driggerr.InvalidArgumentWithRecovery(
			fmt.Sprintf("max_rows must be between 1 and %d.", hardMaxRows),
			[]string{"Retry with a valid max_rows value."},
		)
	}
	return resolved, nil
}

func executeQuery(db querier, dbPath, query string, source sqlSource, maxRows int64) (*contracts.SQLQueryData, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, mapQueryError(dbPath, err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, mapQueryError(dbPath, err)
	}

	inferredTypes := make([]string, len(columnNames))
	inferredNullable := make([]bool, len(columnNames))
	for index := range inferredTypes {
		inferredTypes[index] = "unknown"
	}

	outputRows := [][]any{}
	truncated := false
	for rows.Next() {
		if int64(len(outputRows)) >= maxRows {
			truncated = true
			break
		}

		rawValues := make([]any, len(columnNames))
		scanTargets := make([]any, len(columnNames))
		for index := range rawValues {
			scanTargets[index] = &rawValues[index]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, mapQueryError(dbPath, err)
		}

		outputRow := make([]any, len(columnNames))
		for index, rawValue := range rawValues {
			jsonValue := sqlValueToJSON(rawValue)
			inferColumnContract(jsonValue, &inferredTypes[index], &inferredNullable[index])
			outputRow[index] = jsonValue
		}
		outputRows = append(outputRows, outputRow)
	}
	if err := rows.Err(); err != nil {
		return nil, mapQueryError(dbPath, err)
	}

	columns := make([]contracts.SQLColumn, 0, len(columnNames))
	for index, name := range columnNames {
		columns = append(columns, contracts.SQLColumn{
			Name:     name,
			Type:     finalizeInferredType(inferredTypes[index]),
			Nullable: inferredNullable[index],
		})
	}

	return &contracts.SQLQueryData{
		Columns:   columns,
		Rows:      outputRows,
		RowCount:  int64(len(outputRows)),
		Truncated: truncated,
		MaxRows:   maxRows,
		Source:    source.label,
		SourceRef: source.ref,
	}, nil
}

func sqlValueToJSON(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func inferColumnContract(value any, inferredType *string, inferredNullable *bool) {
	if value == nil {
		*inferredNullable = true
		return
	}

	observed := inferScalarType(value)
	if *inferredType == "unknown" {
		*inferredType = observed
		return
	}
	if *inferredType != observed {
		*inferredType = "mixed"
	}
}

func inferScalarType(value any) string {
	switch value.(type) {
	case int64:
		return "integer"
	case float64:
		return "real"
	case string:
		return "text"
	default:
		return "unknown"
	}
}

func finalizeInferredType(inferred string) string {
	if inferred == "unknown" {
		return "text"
	}
	return inferred
}

// mapQueryError turns an authorizer denial into actionable guidance; every
// other engine error maps through the store's taxonomy.
func mapQueryError(dbPath string, err error) error {
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "not authorized") || strings.Contains(message, "prohibited") {
		return driggerr.InvalidArgumentWithRecovery(
			"SQL statement must be a read-only query against the public `v1_*` views.",
			[]string{
				"Use SELECT-only queries against public `v1_*` views.",
				"Run `driggsby db schema` to inspect supported view contracts.",
			},
		)
	}
	if strings.Contains(message, "syntax error") || strings.Contains(message, "no such") {
		return driggerr.InvalidArgumentWithRecovery(
			fmt.Sprintf("SQL query failed: %v", err),
			[]string{
				"Fix the query and retry.",
				"Run `driggsby db schema` to list available views and columns.",
			},
		)
	}
	return store.MapEngineError(dbPath, err)
}
