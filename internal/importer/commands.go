package importer

import (
	"database/sql"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/store"
)

// RunOptions are the inputs for one `import create` call.
type RunOptions struct {
	Path          *string
	DryRun        bool
	HomeOverride  string
	StdinOverride *string
}

// Run executes an import end to end and assembles the response envelope.
func Run(opts RunOptions) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(opts.HomeOverride)
	if err != nil {
		return nil, err
	}

	execution, err := Execute(setup, ExecuteOptions{
		Path:          opts.Path,
		DryRun:        opts.DryRun,
		StdinOverride: opts.StdinOverride,
	})
	if err != nil {
		return nil, err
	}

	// A commit changed the data range; re-read so the query context
	// reflects the post-commit ledger.
	contextSetup := setup
	if !opts.DryRun {
		contextSetup, err = store.EnsureInitialized(opts.HomeOverride)
		if err != nil {
			return nil, err
		}
	}

	data := contracts.ImportData{
		DryRun:            execution.DryRun,
		Path:              opts.Path,
		ImportID:          execution.ImportID,
		Message:           execution.Message,
		Summary:           execution.Summary,
		DuplicateSummary:  execution.DuplicateSummary,
		DuplicatesPreview: execution.DuplicatesPreview,
		NextStep:          execution.NextStep,
		OtherActions:      execution.OtherActions,
		Issues:            execution.Issues,
		SourceUsed:        execution.SourceUsed,
		SourceIgnored:     execution.SourceIgnored,
		SourceConflict:    execution.SourceConflict,
		Warnings:          execution.Warnings,
		KeyInventory:      execution.KeyInventory,
		SignProfiles:      execution.SignProfiles,
		DriftWarnings:     execution.DriftWarnings,
		QueryContext: contracts.QueryContext{
			ReadonlyURI:   contextSetup.ReadonlyURI,
			DBPath:        contextSetup.DBPath,
			SchemaVersion: contextSetup.SchemaVersion,
			DataRange:     contextSetup.DataRange,
			PublicViews:   contextSetup.PublicViews,
		},
	}

	return contracts.Success("import", data)
}

// List returns every import run, newest first, with per-account counters.
func List(homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(
		`SELECT
			import_id, status, created_at, committed_at, reverted_at,
			rows_read, rows_valid, rows_invalid, inserted, deduped,
			source_kind, source_ref
		 FROM internal_import_runs
		 ORDER BY CAST(created_at AS INTEGER) DESC, import_id DESC`,
	)
	if err != nil {
		return nil, mapStoreError(setup.DBPath, err)
	}
	defer rows.Close()

	items := []contracts.ImportListItem{}
	for rows.Next() {
		var item contracts.ImportListItem
		err := rows.Scan(
			&item.ImportID, &item.Status, &item.CreatedAt, &item.CommittedAt,
			&item.RevertedAt, &item.RowsRead, &item.RowsValid, &item.RowsInvalid,
			&item.Inserted, &item.Deduped, &item.SourceKind, &item.SourceRef,
		)
		if err != nil {
			return nil, mapStoreError(setup.DBPath, err)
		}
		item.Accounts = []contracts.ImportListAccountStat{}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(setup.DBPath, err)
	}

	for index := range items {
		accounts, err := accountStatsForImport(db, setup.DBPath, items[index].ImportID)
		if err != nil {
			return nil, err
		}
		items[index].Accounts = accounts
	}

	// Legacy shape: a bare array, not an object wrapper.
	return contracts.Success("import list", items)
}

func accountStatsForImport(q querier, dbPath, importID string) ([]contracts.ImportListAccountStat, error) {
	rows, err := q.Query(
		`SELECT s.account_key, a.account_type, s.rows_read, s.inserted, s.deduped
		 FROM internal_import_account_stats s
		 LEFT JOIN internal_accounts a ON a.account_key = s.account_key
		 WHERE s.import_id = ?
		 ORDER BY s.account_key ASC`,
		importID,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer rows.Close()

	stats := []contracts.ImportListAccountStat{}
	for rows.Next() {
		var stat contracts.ImportListAccountStat
		err := rows.Scan(
			&stat.AccountKey, &stat.AccountType, &stat.RowsRead,
			&stat.Inserted, &stat.Deduped,
		)
		if err != nil {
			return nil, mapStoreError(dbPath, err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// Undo reverts one import and promotes eligible candidates.
func Undo(importID, homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	db, lock, err := store.OpenReadWrite(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.ReleaseLock(lock)
	defer db.Close()

	result, err := UndoImport(db, setup.DBPath, importID)
	if err != nil {
		return nil, err
	}

	return contracts.Success("import undo", contracts.ImportUndoData{
		ImportID: result.ImportID,
		Message:  "Import reverted successfully.",
		Summary: contracts.ImportUndoSummary{
			RowsReverted: result.RowsReverted,
			RowsPromoted: result.RowsPromoted,
		},
	})
}

// Duplicates returns an import's full candidate audit trail, with live
// match pointers resolved against the current ledger and the frozen
// at-dedupe pointers alongside.
func Duplicates(importID, homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var exists int
	err = db.QueryRow(
		"SELECT 1 FROM internal_import_runs WHERE import_id = ? LIMIT 1", importID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, driggerr.ImportDuplicatesIDNotFound(importID)
	}
	if err != nil {
		return nil, mapStoreError(setup.DBPath, err)
	}

	rows, err := db.Query(
		`SELECT
			c.source_row_index,
			c.dedupe_reason,
			c.statement_id,
			c.account_key,
			c.posted_at,
			CAST(c.amount AS REAL),
			c.currency,
			c.description,
			c.external_id,
			c.matched_batch_row_index,
			COALESCE(promoted.txn_id, direct.txn_id, fallback.txn_id) AS matched_txn_id,
			COALESCE(promoted.import_id, direct.import_id, fallback.import_id) AS matched_import_id,
			c.matched_txn_id AS matched_txn_id_at_dedupe,
			c.matched_import_id AS matched_import_id_at_dedupe
		 FROM internal_transaction_dedupe_candidates c
		 LEFT JOIN internal_transactions promoted
		   ON promoted.txn_id = c.promoted_txn_id
		 LEFT JOIN internal_transactions direct
		   ON direct.txn_id = c.matched_txn_id
		 LEFT JOIN internal_transactions fallback
		   ON fallback.txn_id = (
				SELECT t.txn_id
				FROM internal_transactions t
				-- Keep this predicate aligned with findExistingMatch.
				WHERE c.dedupe_reason = 'existing_ledger'
				  AND (
					(c.external_id IS NOT NULL
					 AND t.account_key = c.account_key
					 AND t.external_id = c.external_id)
					OR
					(c.external_id IS NULL
					 AND t.account_key = c.account_key
					 AND t.posted_at = c.posted_at
					 AND t.amount = c.amount
					 AND t.currency = c.currency
					 AND t.description = c.description
					 AND t.dedupe_scope_id != c.dedupe_scope_id)
				  )
				ORDER BY t.txn_id ASC
				LIMIT 1
		   )
		 WHERE c.import_id = ?
		 ORDER BY c.source_row_index ASC, c.dedupe_reason ASC, c.candidate_id ASC`,
		importID,
	)
	if err != nil {
		return nil, mapStoreError(setup.DBPath, err)
	}
	defer rows.Close()

	duplicateRows := []contracts.ImportDuplicateRow{}
	for rows.Next() {
		var row contracts.ImportDuplicateRow
		err := rows.Scan(
			&row.SourceRowIndex, &row.DedupeReason, &row.StatementID,
			&row.AccountKey, &row.PostedAt, &row.Amount, &row.Currency,
			&row.Description, &row.ExternalID, &row.MatchedBatchRowIndex,
			&row.MatchedTxnID, &row.MatchedImportID,
			&row.MatchedTxnIDAtDedupe, &row.MatchedImportIDAtDedupe,
		)
		if err != nil {
			return nil, mapStoreError(setup.DBPath, err)
		}
		duplicateRows = append(duplicateRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(setup.DBPath, err)
	}

	return contracts.Success("import duplicates", contracts.ImportDuplicatesData{
		ImportID: importID,
		Total:    int64(len(duplicateRows)),
		Rows:     duplicateRows,
	})
}

// KeysUniq reports the committed value inventory, optionally restricted to
// one property.
func KeysUniq(property *string, homeOverride string) (*contracts.SuccessEnvelope, error) {
	var requested *TrackedProperty
	if property != nil {
		parsed, ok := ParseTrackedProperty(*property)
		if !ok {
			return nil, driggerr.InvalidArgumentWithRecovery(
				"Invalid property `"+*property+"`. Supported values: account_key, account_type, currency, merchant, category.",
				[]string{
					"Use one of: account_key, account_type, currency, merchant, category.",
					"Run `driggsby import keys uniq --help` for usage.",
				},
			)
		}
		requested = &parsed
	}

	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	inventory, err := QueryKeyInventory(db, setup.DBPath)
	if err != nil {
		return nil, err
	}

	data := contracts.ImportKeysUniqData{}
	if requested != nil {
		name := string(*requested)
		data.Property = &name
		data.Inventories = []contracts.ImportPropertyInventory{
			selectPropertyInventory(inventory, *requested),
		}
	} else {
		data.Inventories = InventoryToList(inventory)
	}

	return contracts.Success("import keys uniq", data)
}

func selectPropertyInventory(inventory *contracts.ImportKeyInventory, property TrackedProperty) contracts.ImportPropertyInventory {
	switch property {
	case TrackedPropertyAccountKey:
		return inventory.AccountKey
	case TrackedPropertyAccountType:
		return inventory.AccountType
	case TrackedPropertyCurrency:
		return inventory.Currency
	case TrackedPropertyMerchant:
		return inventory.Merchant
	default:
		return inventory.Category
	}
}
