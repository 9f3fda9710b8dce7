package importer

import (
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/store/idgen"
)

// orphanedCandidateSentinel marks a candidate whose owning import was
// reverted: it can never be promoted, because its own import no longer
// exists.
const orphanedCandidateSentinel = "__invalid__"

// UndoResult reports what one undo removed and restored.
type UndoResult struct {
	ImportID     string
	RowsReverted int64
	RowsPromoted int64
}

type promotionCandidate struct {
	CandidateID string
	ImportID    string
	Row         CanonicalTransaction
}

// UndoImport reverts one committed import and, in the same transaction,
// promotes previously-deduped candidates whose dedupe keys the revert
// reopened. Promotions per key are capped at the number of rows removed
// with that key, and each promotion re-checks for a residual committed
// conflict before inserting. All-or-nothing: any engine error aborts
// everything.
func UndoImport(db *sql.DB, dbPath, importID string) (*UndoResult, error) {
	timestamp := nowTimestamp()

	tx, err := db.Begin()
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(
		"SELECT status FROM internal_import_runs WHERE import_id = ? LIMIT 1",
		importID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, driggerr.ImportIDNotFound(importID)
	}
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	if status == "reverted" {
		return nil, driggerr.ImportAlreadyReverted(importID)
	}
	if status != "committed" {
		return nil, driggerr.LedgerCorrupt(dbPath)
	}

	touchedKeyCounts, err := touchedKeyCountsForImport(tx, dbPath, importID)
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		"DELETE FROM internal_transactions WHERE import_id = ?", importID,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	rowsReverted, err := result.RowsAffected()
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	_, err = tx.Exec(
		`UPDATE internal_import_runs
		 SET status = 'reverted', reverted_at = ?
		 WHERE import_id = ?`,
		timestamp, importID,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	// The reverted import's own candidates are orphaned: even if their key
	// reopens later, re-materializing a row of a reverted import would
	// resurrect data the user asked to remove.
	_, err = tx.Exec(
		`UPDATE internal_transaction_dedupe_candidates
		 SET promoted_txn_id = COALESCE(promoted_txn_id, ?)
		 WHERE import_id = ?`,
		orphanedCandidateSentinel, importID,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	keys := make([]string, 0, len(touchedKeyCounts))
	for key := range touchedKeyCounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rowsPromoted int64
	for _, key := range keys {
		targetPromotions := touchedKeyCounts[key]
		candidates, err := candidatesForKey(tx, dbPath, key)
		if err != nil {
			return nil, err
		}

		var promotedForKey int64
		for _, candidate := range candidates {
			if promotedForKey >= targetPromotions {
				break
			}

			match, err := findExistingMatch(tx, candidate.Row, dbPath)
			if err != nil {
				return nil, err
			}
			if match != nil {
				// Still conflicts with a committed canonical row; leave it
				// pending so a later undo can promote it when safe.
				continue
			}

			if err := promoteCandidate(tx, dbPath, candidate); err != nil {
				return nil, err
			}
			rowsPromoted++
			promotedForKey++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	return &UndoResult{
		ImportID:     importID,
		RowsReverted: rowsReverted,
		RowsPromoted: rowsPromoted,
	}, nil
}

// touchedKeyCountsForImport reconstructs the dedupe key of every canonical
// row the undo is about to delete and counts removals per key. Each count
// is the promotion budget for that key.
func touchedKeyCountsForImport(tx querier, dbPath, importID string) (map[string]int64, error) {
	rows, err := tx.Query(
		`SELECT statement_id, dedupe_scope_id, account_key, posted_at,
		        amount, currency, description, external_id
		 FROM internal_transactions
		 WHERE import_id = ?`,
		importID,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		row, err := scanStoredTransaction(rows)
		if err != nil {
			return nil, mapStoreError(dbPath, err)
		}
		counts[dedupeKey(row)]++
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	return counts, nil
}

// candidatesForKey loads the pending candidates for one dedupe key in
// promotion order: oldest owning import first, then batch position.
func candidatesForKey(tx querier, dbPath, dedupeKeyValue string) ([]promotionCandidate, error) {
	rows, err := tx.Query(
		`SELECT
			c.candidate_id, c.import_id, c.statement_id, c.dedupe_scope_id,
			c.account_key, c.posted_at, c.amount, c.currency, c.description,
			c.external_id, c.merchant, c.category
		 FROM internal_transaction_dedupe_candidates c
		 JOIN internal_import_runs i ON i.import_id = c.import_id
		 WHERE c.dedupe_key = ?
		   AND c.promoted_txn_id IS NULL
		   AND i.status = 'committed'
		 ORDER BY CAST(i.created_at AS INTEGER) ASC,
		          c.source_row_index ASC,
		          c.dedupe_reason ASC,
		          c.candidate_id ASC`,
		dedupeKeyValue,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer rows.Close()

	var candidates []promotionCandidate
	for rows.Next() {
		var candidate promotionCandidate
		var amountText string
		err := rows.Scan(
			&candidate.CandidateID, &candidate.ImportID,
			&candidate.Row.StatementID, &candidate.Row.DedupeScopeID,
			&candidate.Row.AccountKey, &candidate.Row.PostedAt,
			&amountText, &candidate.Row.Currency, &candidate.Row.Description,
			&candidate.Row.ExternalID, &candidate.Row.Merchant, &candidate.Row.Category,
		)
		if err != nil {
			return nil, mapStoreError(dbPath, err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, driggerr.LedgerCorrupt(dbPath)
		}
		candidate.Row.Amount = amount
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	return candidates, nil
}

// promoteCandidate materializes a pending candidate as a fresh canonical
// row. The new row keeps the candidate's owning import id, so its lineage
// still points at the batch that first carried it.
func promoteCandidate(tx execer, dbPath string, candidate promotionCandidate) error {
	txnID := idgen.New("txn")
	_, err := tx.Exec(
		`INSERT INTO internal_transactions (
			txn_id, import_id, statement_id, dedupe_scope_id, account_key,
			posted_at, amount, currency, description, external_id,
			merchant, category
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txnID, candidate.ImportID, candidate.Row.StatementID,
		candidate.Row.DedupeScopeID, candidate.Row.AccountKey,
		candidate.Row.PostedAt, candidate.Row.Amount.String(),
		candidate.Row.Currency, candidate.Row.Description,
		candidate.Row.ExternalID, candidate.Row.Merchant, candidate.Row.Category,
	)
	if err != nil {
		return mapStoreError(dbPath, err)
	}

	_, err = tx.Exec(
		`UPDATE internal_transaction_dedupe_candidates
		 SET promoted_txn_id = ?
		 WHERE candidate_id = ?`,
		txnID, candidate.CandidateID,
	)
	if err != nil {
		return mapStoreError(dbPath, err)
	}
	return nil
}

// scanStoredTransaction reads the dedupe-key column subset of a stored
// canonical row.
func scanStoredTransaction(rows *sql.Rows) (CanonicalTransaction, error) {
	var row CanonicalTransaction
	var amountText string
	err := rows.Scan(
		&row.StatementID, &row.DedupeScopeID, &row.AccountKey, &row.PostedAt,
		&amountText, &row.Currency, &row.Description, &row.ExternalID,
	)
	if err != nil {
		return row, err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return row, err
	}
	row.Amount = amount
	return row, nil
}
