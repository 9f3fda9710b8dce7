package importer

import (
	"database/sql"
	"fmt"
)

// DedupeReason labels why a row was rejected: it collided inside its own
// batch, or it collided with a row already committed to the ledger.
type DedupeReason string

const (
	DedupeReasonBatch          DedupeReason = "batch"
	DedupeReasonExistingLedger DedupeReason = "existing_ledger"
)

// BatchRow pairs a validated row with its 1-based position in the batch.
type BatchRow struct {
	Row            CanonicalTransaction
	SourceRowIndex int64
}

// DuplicateRecord is the full evidence for one dedupe decision, durable
// enough to replay it: the frozen row, its position, the reason, and the
// match pointer appropriate to the reason.
type DuplicateRecord struct {
	Row                  CanonicalTransaction
	SourceRowIndex       int64
	DedupeReason         DedupeReason
	MatchedBatchRowIndex *int64
	MatchedTxnID         *string
	MatchedImportID      *string
}

// BatchDedupeResult is stage-1 output: rows that survived plus rows that
// collided within the batch.
type BatchDedupeResult struct {
	CandidateRows []BatchRow
	DuplicateRows []DuplicateRecord
}

// ExistingDedupeResult is stage-2 output: rows safe to insert plus rows
// that matched committed history.
type ExistingDedupeResult struct {
	InsertableRows []BatchRow
	DuplicateRows  []DuplicateRecord
}

// LedgerMatch points at the committed row a candidate collided with.
type LedgerMatch struct {
	TxnID    string
	ImportID string
}

type fallbackSeenEntry struct {
	scopeID        string
	sourceRowIndex int64
}

// DedupeBatch is stage 1: streaming intra-batch classification in source
// order. External-id keys collide on first sight; fallback keys collide
// only across different dedupe scopes, because the same statement may
// legitimately list two identical charges.
func DedupeBatch(rows []CanonicalTransaction) BatchDedupeResult {
	extSeen := make(map[string]int64)
	fallbackSeen := make(map[string][]fallbackSeenEntry)
	var candidateRows []BatchRow
	var duplicateRows []DuplicateRecord

	for index, row := range rows {
		sourceRowIndex := int64(index) + 1
		key := dedupeKey(row)

		if row.ExternalID != nil {
			if matchedIndex, ok := extSeen[key]; ok {
				matched := matchedIndex
				duplicateRows = append(duplicateRows, DuplicateRecord{
					Row:                  row,
					SourceRowIndex:       sourceRowIndex,
					DedupeReason:         DedupeReasonBatch,
					MatchedBatchRowIndex: &matched,
				})
				continue
			}
			extSeen[key] = sourceRowIndex
			candidateRows = append(candidateRows, BatchRow{Row: row, SourceRowIndex: sourceRowIndex})
			continue
		}

		var matchedIndex *int64
		for _, entry := range fallbackSeen[key] {
			if entry.scopeID != row.DedupeScopeID {
				matched := entry.sourceRowIndex
				matchedIndex = &matched
				break
			}
		}
		if matchedIndex != nil {
			duplicateRows = append(duplicateRows, DuplicateRecord{
				Row:                  row,
				SourceRowIndex:       sourceRowIndex,
				DedupeReason:         DedupeReasonBatch,
				MatchedBatchRowIndex: matchedIndex,
			})
			continue
		}

		fallbackSeen[key] = append(fallbackSeen[key], fallbackSeenEntry{
			scopeID:        row.DedupeScopeID,
			sourceRowIndex: sourceRowIndex,
		})
		candidateRows = append(candidateRows, BatchRow{Row: row, SourceRowIndex: sourceRowIndex})
	}

	return BatchDedupeResult{CandidateRows: candidateRows, DuplicateRows: duplicateRows}
}

// DedupeAgainstExisting is stage 2: one committed-history lookup per
// surviving candidate. Pure with respect to the store: it only reads.
func DedupeAgainstExisting(q querier, rows []BatchRow, dbPath string) (*ExistingDedupeResult, error) {
	var insertableRows []BatchRow
	var duplicateRows []DuplicateRecord

	for _, row := range rows {
		existing, err := findExistingMatch(q, row.Row, dbPath)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			duplicateRows = append(duplicateRows, DuplicateRecord{
				Row:             row.Row,
				SourceRowIndex:  row.SourceRowIndex,
				DedupeReason:    DedupeReasonExistingLedger,
				MatchedTxnID:    &existing.TxnID,
				MatchedImportID: &existing.ImportID,
			})
			continue
		}
		insertableRows = append(insertableRows, row)
	}

	return &ExistingDedupeResult{InsertableRows: insertableRows, DuplicateRows: duplicateRows}, nil
}

// dedupeKey derives a row's duplicate-detection fingerprint: the external
// id when the bank supplied one, otherwise the full content tuple.
func dedupeKey(row CanonicalTransaction) string {
	if row.ExternalID != nil {
		return fmt.Sprintf("ext|%s|%s", row.AccountKey, *row.ExternalID)
	}
	return fmt.Sprintf(
		"fallback|%s|%s|%s|%s|%s",
		row.AccountKey, row.PostedAt, row.Amount.String(), row.Currency, row.Description,
	)
}

// findExistingMatch looks for a committed canonical row that collides with
// the given row. The fallback branch excludes rows sharing the candidate's
// dedupe scope, so re-importing the same statement from a different source
// still catches cross-statement duplicates without flagging legitimate
// repeats.
func findExistingMatch(q querier, row CanonicalTransaction, dbPath string) (*LedgerMatch, error) {
	var match LedgerMatch
	var err error

	if row.ExternalID != nil {
		err = q.QueryRow(
			`SELECT txn_id, import_id
			 FROM internal_transactions
			 WHERE account_key = ?
			   AND external_id = ?
			 ORDER BY txn_id ASC
			 LIMIT 1`,
			row.AccountKey, *row.ExternalID,
		).Scan(&match.TxnID, &match.ImportID)
	} else {
		err = q.QueryRow(
			`SELECT txn_id, import_id
			 FROM internal_transactions
			 WHERE account_key = ?
			   AND posted_at = ?
			   AND amount = ?
			   AND currency = ?
			   AND description = ?
			   AND dedupe_scope_id != ?
			 ORDER BY txn_id ASC
			 LIMIT 1`,
			row.AccountKey, row.PostedAt, row.Amount.String(), row.Currency,
			row.Description, row.DedupeScopeID,
		).Scan(&match.TxnID, &match.ImportID)
	}

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	return &match, nil
}
