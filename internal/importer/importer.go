// Package importer owns the ingest pipeline: source resolution, parsing,
// validation, two-stage deduplication, atomic persistence, undo with
// candidate promotion, and the dry-run analysis queries. It is the only
// package that creates or destroys canonical ledger rows.
package importer

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/store"
	"github.com/mzxrai/driggsby/internal/store/idgen"
)

// CanonicalTransaction is one validated ledger row, before or after
// commit. Amount is an exact decimal: the dedupe key embeds its string
// form, and a float's formatting is not injective enough to anchor a
// fingerprint on.
type CanonicalTransaction struct {
	StatementID   *string
	DedupeScopeID string
	AccountKey    string
	AccountType   *string
	PostedAt      string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	ExternalID    *string
	Merchant      *string
	Category      *string
}

// querier is the read surface shared by *sql.DB and *sql.Tx, so the dedupe
// and inventory queries run identically inside and outside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// execer extends querier with writes; *sql.Tx satisfies it.
type execer interface {
	querier
	Exec(query string, args ...any) (sql.Result, error)
}

func mapStoreError(dbPath string, err error) error {
	return store.MapEngineError(dbPath, err)
}

// ExecutionResult is the structured outcome of one import call, dry-run or
// commit.
type ExecutionResult struct {
	DryRun            bool
	ImportID          *string
	Message           string
	Summary           contracts.ImportCreateSummary
	DuplicateSummary  contracts.ImportDuplicateSummary
	DuplicatesPreview contracts.ImportDuplicatesPreview
	NextStep          contracts.ImportNextStep
	OtherActions      []contracts.ImportAction
	Issues            []contracts.ImportIssue
	SourceUsed        *string
	SourceIgnored     *string
	SourceConflict    bool
	Warnings          []contracts.ImportWarning
	KeyInventory      *contracts.ImportKeyInventory
	SignProfiles      *[]contracts.ImportSignProfile
	DriftWarnings     *[]contracts.ImportDriftWarning
}

// ExecuteOptions carries the import call's inputs. StdinOverride short-
// circuits actual stdin reads so tests and embedding hosts can inject a
// body.
type ExecuteOptions struct {
	Path          *string
	DryRun        bool
	StdinOverride *string
}

// Execute runs the full import pipeline against an initialized ledger.
// Dry-run performs stage-2 dedupe and the drift analysis inside a
// transaction that is rolled back, so the report reflects exactly what a
// commit would do without mutating anything. Commit persists canonical
// rows, candidate audit rows, and the import-run row atomically.
func Execute(setup *store.Context, opts ExecuteOptions) (*ExecutionResult, error) {
	resolved, err := ResolveSource(opts.Path, opts.StdinOverride)
	if err != nil {
		return nil, err
	}
	parsedRows, err := ParseSource(resolved.Content)
	if err != nil {
		return nil, err
	}

	statementScopeID := idgen.New("scope")
	validated, err := ValidateRows(parsedRows, statementScopeID)
	if err != nil {
		return nil, err
	}

	batchDeduped := DedupeBatch(validated.Rows)

	db, lock, err := store.OpenReadWrite(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.ReleaseLock(lock)
	defer db.Close()

	if err := checkStatementIDReuse(db, setup.DBPath, validated); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return executeDryRun(db, setup.DBPath, resolved, validated, batchDeduped)
	}
	return executeCommit(db, setup.DBPath, resolved, validated, batchDeduped)
}

func executeDryRun(
	db *sql.DB,
	dbPath string,
	resolved *ResolvedSource,
	validated *ValidatedRows,
	batchDeduped BatchDedupeResult,
) (*ExecutionResult, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer tx.Rollback()

	ledgerDeduped, err := DedupeAgainstExisting(tx, batchDeduped.CandidateRows, dbPath)
	if err != nil {
		return nil, err
	}
	analysis, err := AnalyzeDryRun(tx, dbPath, ledgerDeduped.InsertableRows)
	if err != nil {
		return nil, err
	}
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return nil, mapStoreError(dbPath, err)
	}

	duplicateRows := mergeDuplicateRows(batchDeduped.DuplicateRows, ledgerDeduped.DuplicateRows)
	duplicateSummary := buildDuplicateSummary(
		int64(len(batchDeduped.DuplicateRows)),
		int64(len(ledgerDeduped.DuplicateRows)),
	)

	nextStep, otherActions := buildNextActions(true, nil, duplicateSummary.Total, resolved.SourceKind)

	return &ExecutionResult{
		DryRun:  true,
		Message: "Validation passed. No rows were written.",
		Summary: contracts.ImportCreateSummary{
			RowsRead:    validated.Summary.RowsRead,
			RowsValid:   validated.Summary.RowsValid,
			RowsInvalid: validated.Summary.RowsInvalid,
		},
		DuplicateSummary:  duplicateSummary,
		DuplicatesPreview: buildDuplicatesPreview(duplicateRows),
		NextStep:          nextStep,
		OtherActions:      otherActions,
		Issues:            []contracts.ImportIssue{},
		SourceUsed:        resolved.SourceUsed,
		SourceIgnored:     resolved.SourceIgnored,
		SourceConflict:    resolved.SourceConflict,
		Warnings:          resolved.Warnings,
		KeyInventory:      &analysis.KeyInventory,
		SignProfiles:      &analysis.SignProfiles,
		DriftWarnings:     &analysis.DriftWarnings,
	}, nil
}

func executeCommit(
	db *sql.DB,
	dbPath string,
	resolved *ResolvedSource,
	validated *ValidatedRows,
	batchDeduped BatchDedupeResult,
) (*ExecutionResult, error) {
	existingDeduped, err := DedupeAgainstExisting(db, batchDeduped.CandidateRows, dbPath)
	if err != nil {
		return nil, err
	}
	duplicateRows := mergeDuplicateRows(batchDeduped.DuplicateRows, existingDeduped.DuplicateRows)

	persisted, err := PersistImport(db, dbPath, PersistInput{
		CandidateRows: existingDeduped.InsertableRows,
		DuplicateRows: duplicateRows,
		RowsRead:      validated.Summary.RowsRead,
		RowsValid:     validated.Summary.RowsValid,
		RowsInvalid:   validated.Summary.RowsInvalid,
		SourceKind:    resolved.SourceKind,
		SourceRef:     resolved.SourceRef,
	})
	if err != nil {
		return nil, err
	}

	duplicateSummary := buildDuplicateSummary(
		int64(len(batchDeduped.DuplicateRows)),
		int64(len(existingDeduped.DuplicateRows)),
	)
	nextStep, otherActions := buildNextActions(false, &persisted.ImportID, duplicateSummary.Total, resolved.SourceKind)

	return &ExecutionResult{
		DryRun:   false,
		ImportID: &persisted.ImportID,
		Message:  "Import completed successfully.",
		Summary: contracts.ImportCreateSummary{
			RowsRead:    validated.Summary.RowsRead,
			RowsValid:   validated.Summary.RowsValid,
			RowsInvalid: validated.Summary.RowsInvalid,
			Inserted:    persisted.Inserted,
		},
		DuplicateSummary:  duplicateSummary,
		DuplicatesPreview: buildDuplicatesPreview(persisted.DuplicateRows),
		NextStep:          nextStep,
		OtherActions:      otherActions,
		Issues:            []contracts.ImportIssue{},
		SourceUsed:        resolved.SourceUsed,
		SourceIgnored:     resolved.SourceIgnored,
		SourceConflict:    resolved.SourceConflict,
		Warnings:          resolved.Warnings,
	}, nil
}

// checkStatementIDReuse rejects a batch that re-supplies a statement id
// already present on a committed row of the same account. Reuse is a
// validation failure, not a dedupe event: the whole batch is refused.
func checkStatementIDReuse(q querier, dbPath string, validated *ValidatedRows) error {
	if len(validated.StatementIDRows) == 0 {
		return nil
	}

	var issues []contracts.ImportIssue
	invalidRows := make(map[int64]struct{})
	for key, rowIndexes := range validated.StatementIDRows {
		var exists int
		err := q.QueryRow(
			`SELECT 1 FROM internal_transactions
			 WHERE account_key = ? AND statement_id = ?
			 LIMIT 1`,
			key.AccountKey, key.StatementID,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return mapStoreError(dbPath, err)
		}
		for _, rowIndex := range rowIndexes {
			invalidRows[rowIndex] = struct{}{}
			issues = append(issues, contracts.ImportIssue{
				Row:         rowIndex,
				Field:       "statement_id",
				Code:        "statement_id_reused",
				Description: fmt.Sprintf("statement_id %q was already imported for account %q.", key.StatementID, key.AccountKey),
				Expected:    stringPtr("a statement_id not previously committed for this account"),
				Received:    stringPtr(key.StatementID),
			})
		}
	}

	if len(issues) == 0 {
		return nil
	}

	sortIssues(issues)
	summary := contracts.ImportSummary{
		RowsRead:    validated.Summary.RowsRead,
		RowsValid:   validated.Summary.RowsRead - int64(len(invalidRows)),
		RowsInvalid: int64(len(invalidRows)),
	}
	return driggerr.ImportValidationFailed(summary.RowsInvalid, summary, issues)
}

func sortIssues(issues []contracts.ImportIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Row < issues[j].Row
	})
}

// mergeDuplicateRows interleaves stage-1 and stage-2 duplicates into the
// canonical persistence order.
func mergeDuplicateRows(batchRows, existingRows []DuplicateRecord) []DuplicateRecord {
	all := make([]DuplicateRecord, 0, len(batchRows)+len(existingRows))
	all = append(all, batchRows...)
	all = append(all, existingRows...)
	sortDuplicateRecords(all)
	return all
}

func sortDuplicateRecords(records []DuplicateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SourceRowIndex != records[j].SourceRowIndex {
			return records[i].SourceRowIndex < records[j].SourceRowIndex
		}
		return records[i].DedupeReason < records[j].DedupeReason
	})
}

func buildDuplicateSummary(batch, existingLedger int64) contracts.ImportDuplicateSummary {
	return contracts.ImportDuplicateSummary{
		Total:          batch + existingLedger,
		Batch:          batch,
		ExistingLedger: existingLedger,
	}
}

const duplicatesPreviewLimit = 50

func buildDuplicatesPreview(rows []DuplicateRecord) contracts.ImportDuplicatesPreview {
	limit := len(rows)
	if limit > duplicatesPreviewLimit {
		limit = duplicatesPreviewLimit
	}
	previewRows := make([]contracts.ImportDuplicateRow, 0, limit)
	for _, record := range rows[:limit] {
		previewRows = append(previewRows, duplicateRecordToContract(record))
	}
	return contracts.ImportDuplicatesPreview{
		Returned:  int64(len(previewRows)),
		Truncated: len(rows) > duplicatesPreviewLimit,
		Rows:      previewRows,
	}
}

func duplicateRecordToContract(record DuplicateRecord) contracts.ImportDuplicateRow {
	return contracts.ImportDuplicateRow{
		SourceRowIndex:       record.SourceRowIndex,
		DedupeReason:         string(record.DedupeReason),
		StatementID:          record.Row.StatementID,
		AccountKey:           record.Row.AccountKey,
		PostedAt:             record.Row.PostedAt,
		Amount:               record.Row.Amount.InexactFloat64(),
		Currency:             record.Row.Currency,
		Description:          record.Row.Description,
		ExternalID:           record.Row.ExternalID,
		MatchedBatchRowIndex: record.MatchedBatchRowIndex,
		MatchedTxnID:         record.MatchedTxnID,
		MatchedImportID:      record.MatchedImportID,
	}
}

func buildNextActions(dryRun bool, importID *string, duplicateTotal int64, sourceKind SourceKind) (contracts.ImportNextStep, []contracts.ImportAction) {
	if dryRun {
		command := "driggsby import create <path>"
		if sourceKind == SourceKindStdin {
			command = "driggsby import create"
		}
		return contracts.ImportNextStep{
			Label:   "Commit this import",
			Command: command,
		}, []contracts.ImportAction{}
	}

	otherActions := []contracts.ImportAction{{
		Label:   "View import list",
		Command: "driggsby import list",
	}}

	if importID != nil {
		if duplicateTotal > 0 {
			otherActions = append(otherActions, contracts.ImportAction{
				Label:   "View duplicates",
				Command: fmt.Sprintf("driggsby import duplicates %s", *importID),
			})
		}
		risk := "destructive"
		otherActions = append(otherActions, contracts.ImportAction{
			Label:   "Undo this import (destructive)",
			Command: fmt.Sprintf("driggsby import undo %s", *importID),
			Risk:    &risk,
		})
	}

	return contracts.ImportNextStep{
		Label:   "Connect and query your data",
		Command: "driggsby db schema",
	}, otherActions
}

func invalidInputError(message string) *driggerr.Error {
	return driggerr.InvalidArgumentWithRecovery(message, []string{
		"Provide JSON array or CSV input via path or stdin.",
		"Run `driggsby import create --help` to confirm import field requirements.",
	}).WithImportHelp()
}
