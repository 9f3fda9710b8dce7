// Package driggerr defines the structured error taxonomy returned across
// every Driggsby operation. Each error carries a stable code and a list of
// concrete recovery steps a CLI or embedding host renders into guidance.
package driggerr

import "fmt"

const (
	ImportHelpCommand      = "driggsby import create --help"
	ImportHelpSectionTitle = "Import Troubleshooting"
)

// Error is a tagged, recoverable error value. Every Driggsby operation that
// can fail returns one of these instead of a bare error string, so a CLI or
// embedding host can render consistent recovery guidance.
type Error struct {
	Code          string
	Message       string
	RecoverySteps []string
	Data          any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, message string, steps []string) *Error {
	return &Error{Code: code, Message: message, RecoverySteps: steps}
}

// WithData attaches structured payload data to the error.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// WithImportHelp merges the import troubleshooting hint into the error's data.
func (e *Error) WithImportHelp() *Error {
	return e.WithImportHelpData(map[string]any{})
}

// WithImportHelpData merges the import troubleshooting hint into the supplied
// data map before attaching it.
func (e *Error) WithImportHelpData(data map[string]any) *Error {
	if data == nil {
		data = map[string]any{}
	}
	data["help_command"] = ImportHelpCommand
	data["help_section_title"] = ImportHelpSectionTitle
	return e.WithData(data)
}

func InvalidArgument(message string) *Error {
	return InvalidArgumentForCommand(message, "")
}

func InvalidArgumentForCommand(message, command string) *Error {
	hint := "Run `driggsby --help` for usage."
	if command != "" {
		hint = fmt.Sprintf("Run `driggsby %s --help` for usage.", command)
	}
	err := newError("invalid_argument", message, []string{hint})
	if command != "" {
		err.WithData(map[string]any{"command_hint": command})
	}
	return err
}

func InvalidArgumentWithRecovery(message string, steps []string) *Error {
	return newError("invalid_argument", message, steps)
}

func InvalidImportFormat(message, receivedFormat string) *Error {
	return newError("invalid_import_format", message, []string{
		"Provide a supported import format (JSON array or CSV).",
		"Run `driggsby import create --help` to confirm field requirements.",
	}).WithImportHelpData(map[string]any{
		"received_format":   receivedFormat,
		"supported_formats": []string{"json_array", "csv"},
	})
}

func ImportSchemaMismatch(requiredHeaders, optionalHeaders, actualHeaders []string) *Error {
	expected := append(append([]string{}, requiredHeaders...), optionalHeaders...)
	return newError(
		"import_schema_mismatch",
		"CSV headers do not satisfy the import schema.",
		[]string{
			"Include all required headers; optional headers may be omitted.",
			"Do not include unknown headers.",
			"Run `driggsby import create --help` to review required and optional fields.",
			"Rerun `driggsby import create --dry-run <path>`.",
		},
	).WithImportHelpData(map[string]any{
		"required_headers": requiredHeaders,
		"optional_headers": optionalHeaders,
		"expected_headers": expected,
		"actual_headers":   actualHeaders,
	})
}

func ImportValidationFailed(rowsInvalid int64, summary, issues any) *Error {
	return newError(
		"import_validation_failed",
		fmt.Sprintf("Import failed validation: %d rows need fixes. No rows were written.", rowsInvalid),
		[]string{
			"Fix the listed issues in your source file.",
			"Rerun driggsby import create --dry-run <path>.",
			"Then rerun driggsby import create <path>.",
		},
	).WithImportHelpData(map[string]any{
		"summary": summary,
		"issues":  issues,
	})
}

func ImportIDNotFound(importID string) *Error {
	return newError(
		"import_id_not_found",
		fmt.Sprintf("Import id `%s` was not found.", importID),
		[]string{
			"Run driggsby import list to find a valid import id.",
			"Retry with driggsby import undo <import_id>.",
		},
	).WithImportHelpData(map[string]any{"import_id": importID})
}

func ImportDuplicatesIDNotFound(importID string) *Error {
	return newError(
		"import_id_not_found",
		fmt.Sprintf("Import id `%s` was not found.", importID),
		[]string{
			"Run driggsby import list to find a valid import id.",
			"Retry with driggsby import duplicates <import_id>.",
		},
	).WithImportHelpData(map[string]any{"import_id": importID})
}

func ImportAlreadyReverted(importID string) *Error {
	return newError(
		"import_already_reverted",
		fmt.Sprintf("Import id `%s` was already reverted.", importID),
		[]string{
			"Run driggsby import list to inspect import statuses.",
			"Choose a committed import id and retry undo.",
		},
	).WithImportHelpData(map[string]any{"import_id": importID})
}

func InternalSerialization(message string) *Error {
	return newError("internal_serialization_error", message, []string{
		"Retry the command; if the failure persists, report the message above.",
	})
}

func UnknownView(viewName string) *Error {
	return newError(
		"unknown_view",
		fmt.Sprintf("Unknown view `%s`. Run `driggsby db schema` to list available views.", viewName),
		[]string{
			"Run `driggsby db schema` to list available views.",
			"Use `driggsby db schema view v1_transactions` as a known-good example.",
		},
	)
}

func LedgerInitPermissionDenied(path, detail string) *Error {
	return newError(
		"ledger_init_permission_denied",
		fmt.Sprintf("Cannot initialize ledger at `%s`: %s", path, detail),
		[]string{fmt.Sprintf("Grant write access to `%s` or set `DRIGGSBY_HOME` to a writable directory.", path)},
	)
}

func LedgerLocked(path string) *Error {
	return newError(
		"ledger_locked",
		fmt.Sprintf("Ledger database is locked at `%s`.", path),
		[]string{fmt.Sprintf("Close other processes using `%s` so the lock is released.", path)},
	)
}

func LedgerCorrupt(path string) *Error {
	return newError(
		"ledger_corrupt",
		fmt.Sprintf("Ledger database appears corrupt at `%s`.", path),
		[]string{fmt.Sprintf("Replace `%s` with a valid SQLite ledger file or restore from backup.", path)},
	)
}

func MigrationFailed(path, detail string) *Error {
	return newError(
		"migration_failed",
		fmt.Sprintf("Ledger migration failed at `%s`: %s", path, detail),
		[]string{"Resolve conflicting schema objects referenced in the error details."},
	)
}

func LedgerInitFailed(path, detail string) *Error {
	return newError(
		"ledger_init_failed",
		fmt.Sprintf("Ledger initialization failed at `%s`: %s", path, detail),
		[]string{
			fmt.Sprintf("Check that `%s` is writable and retry.", path),
			"Set `DRIGGSBY_HOME` to a different directory if the path is unusable.",
		},
	)
}

// ExitCode classifies the error for process exit status: 0 never applies
// here (errors only), 1 is a caller-fixable usage/validation problem, 2 is
// an environment/ledger-state problem the caller cannot fix by editing input.
func (e *Error) ExitCode() int {
	switch e.Code {
	case "invalid_argument", "invalid_import_format", "import_schema_mismatch",
		"import_validation_failed", "import_id_not_found", "import_already_reverted",
		"unknown_view":
		return 1
	default:
		return 2
	}
}
