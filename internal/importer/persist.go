package importer

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/mzxrai/driggsby/internal/store/idgen"
)

// PersistResult reports the committed import's identity and counters.
type PersistResult struct {
	ImportID      string
	Inserted      int64
	DuplicateRows []DuplicateRecord
}

// PersistInput carries everything the commit transaction writes.
type PersistInput struct {
	CandidateRows []BatchRow
	DuplicateRows []DuplicateRecord
	RowsRead      int64
	RowsValid     int64
	RowsInvalid   int64
	SourceKind    SourceKind
	SourceRef     *string
}

// PersistImport writes one import atomically: canonical rows for every
// surviving candidate, one audit row per duplicate, per-account counters,
// account metadata upserts, and the import-run row, all in one exclusive
// transaction. Any engine error aborts the whole import.
func PersistImport(db *sql.DB, dbPath string, input PersistInput) (*PersistResult, error) {
	importID := idgen.New("imp")
	timestamp := nowTimestamp()

	tx, err := db.Begin()
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer tx.Rollback()

	var inserted int64
	for _, batchRow := range input.CandidateRows {
		if err := insertCanonicalRow(tx, dbPath, importID, batchRow.Row); err != nil {
			return nil, err
		}
		inserted++
	}

	for _, duplicateRow := range input.DuplicateRows {
		if err := insertDedupeCandidate(tx, dbPath, importID, duplicateRow, timestamp); err != nil {
			return nil, err
		}
	}

	if err := upsertAccountMetadata(tx, dbPath, input.CandidateRows, timestamp); err != nil {
		return nil, err
	}
	if err := insertAccountStats(tx, dbPath, importID, input.CandidateRows, input.DuplicateRows); err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`INSERT INTO internal_import_runs (
			import_id, status, created_at, committed_at,
			rows_read, rows_valid, rows_invalid, inserted, deduped,
			source_kind, source_ref
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		importID, "committed", timestamp, timestamp,
		input.RowsRead, input.RowsValid, input.RowsInvalid,
		inserted, int64(len(input.DuplicateRows)),
		string(input.SourceKind), input.SourceRef,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	return &PersistResult{
		ImportID:      importID,
		Inserted:      inserted,
		DuplicateRows: input.DuplicateRows,
	}, nil
}

func insertCanonicalRow(tx execer, dbPath, importID string, row CanonicalTransaction) error {
	txnID := idgen.New("txn")
	_, err := tx.Exec(
		`INSERT INTO internal_transactions (
			txn_id, import_id, statement_id, dedupe_scope_id, account_key,
			posted_at, amount, currency, description, external_id,
			merchant, category
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txnID, importID, row.StatementID, row.DedupeScopeID, row.AccountKey,
		row.PostedAt, row.Amount.String(), row.Currency, row.Description,
		row.ExternalID, row.Merchant, row.Category,
	)
	if err != nil {
		return mapStoreError(dbPath, err)
	}
	return nil
}

func insertDedupeCandidate(tx execer, dbPath, importID string, record DuplicateRecord, timestamp string) error {
	candidateID := idgen.New("cand")
	key := dedupeKey(record.Row)
	_, err := tx.Exec(
		`INSERT INTO internal_transaction_dedupe_candidates (
			candidate_id, import_id, dedupe_key, statement_id, dedupe_scope_id,
			account_key, posted_at, amount, currency, description,
			external_id, merchant, category, source_row_index, dedupe_reason,
			matched_txn_id, matched_import_id, matched_batch_row_index,
			created_at, promoted_txn_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		candidateID, importID, key, record.Row.StatementID, record.Row.DedupeScopeID,
		record.Row.AccountKey, record.Row.PostedAt, record.Row.Amount.String(),
		record.Row.Currency, record.Row.Description,
		record.Row.ExternalID, record.Row.Merchant, record.Row.Category,
		record.SourceRowIndex, string(record.DedupeReason),
		record.MatchedTxnID, record.MatchedImportID, record.MatchedBatchRowIndex,
		timestamp,
	)
	if err != nil {
		return mapStoreError(dbPath, err)
	}
	return nil
}

// upsertAccountMetadata records every account seen in the batch, attaching
// its declared account_type when one was supplied. A later batch's type
// wins; a batch without a type never erases a recorded one.
func upsertAccountMetadata(tx execer, dbPath string, rows []BatchRow, timestamp string) error {
	seen := make(map[string]*string)
	var order []string
	for _, batchRow := range rows {
		if _, ok := seen[batchRow.Row.AccountKey]; !ok {
			order = append(order, batchRow.Row.AccountKey)
			seen[batchRow.Row.AccountKey] = nil
		}
		if batchRow.Row.AccountType != nil {
			seen[batchRow.Row.AccountKey] = batchRow.Row.AccountType
		}
	}

	for _, accountKey := range order {
		_, err := tx.Exec(
			`INSERT INTO internal_accounts (account_key, account_type, created_at, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(account_key) DO UPDATE SET
				account_type = COALESCE(excluded.account_type, account_type),
				updated_at = excluded.updated_at`,
			accountKey, seen[accountKey], timestamp, timestamp,
		)
		if err != nil {
			return mapStoreError(dbPath, err)
		}
	}
	return nil
}

// insertAccountStats records per-account counters for this import, feeding
// `import list`'s per-account breakdown.
func insertAccountStats(tx execer, dbPath, importID string, candidateRows []BatchRow, duplicateRows []DuplicateRecord) error {
	type accountStat struct {
		inserted int64
		deduped  int64
	}
	stats := make(map[string]*accountStat)
	var order []string
	track := func(accountKey string) *accountStat {
		if stat, ok := stats[accountKey]; ok {
			return stat
		}
		stat := &accountStat{}
		stats[accountKey] = stat
		order = append(order, accountKey)
		return stat
	}

	for _, batchRow := range candidateRows {
		track(batchRow.Row.AccountKey).inserted++
	}
	for _, record := range duplicateRows {
		track(record.Row.AccountKey).deduped++
	}

	for _, accountKey := range order {
		stat := stats[accountKey]
		_, err := tx.Exec(
			`INSERT INTO internal_import_account_stats (
				import_id, account_key, rows_read, inserted, deduped
			 ) VALUES (?, ?, ?, ?, ?)`,
			importID, accountKey, stat.inserted+stat.deduped, stat.inserted, stat.deduped,
		)
		if err != nil {
			return mapStoreError(dbPath, err)
		}
	}
	return nil
}

// nowTimestamp renders the current time as integer seconds since epoch,
// the ledger's only timestamp format.
func nowTimestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
