package intelligence

import (
	"database/sql"

	"github.com/mzxrai/driggsby/internal/store"
)

// RefreshSummary reports how many rows the materialization wrote.
type RefreshSummary struct {
	RecurringRows int64
	AnomalyRows   int64
}

type execer interface {
	querier
	Exec(query string, args ...any) (sql.Result, error)
}

// RefreshAll rebuilds both materializations in one exclusive transaction:
// delete everything, re-derive from committed history, re-insert. Either
// the whole rebuild lands or the prior materializations survive untouched.
func RefreshAll(db *sql.DB, dbPath string) (*RefreshSummary, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	defer tx.Rollback()

	summary, err := RefreshAllInTransaction(tx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	return summary, nil
}

// RefreshAllInTransaction rebuilds both materializations inside an
// existing transaction.
func RefreshAllInTransaction(tx *sql.Tx, dbPath string) (*RefreshSummary, error) {
	return refreshAll(tx, dbPath)
}

func refreshAll(tx execer, dbPath string) (*RefreshSummary, error) {
	transactions, err := LoadTransactions(tx, dbPath, &IntelligenceFilter{})
	if err != nil {
		return nil, err
	}
	recurringRows := DetectRecurring(transactions)
	anomalyRows := DetectAnomalies(transactions)

	if _, err := tx.Exec("DELETE FROM internal_recurring_materialized"); err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	if _, err := tx.Exec("DELETE FROM internal_anomalies_materialized"); err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}

	var recurringInserted int64
	for _, row := range recurringRows {
		var nextExpectedAt *string
		if row.NextExpectedAt != nil {
			formatted := FormatISODate(*row.NextExpectedAt)
			nextExpectedAt = &formatted
		}
		isActive := int64(0)
		if row.IsActive {
			isActive = 1
		}
		_, err := tx.Exec(
			`INSERT INTO internal_recurring_materialized (
				group_key, account_key, merchant, cadence, typical_amount,
				currency, last_seen_at, next_expected_at, occurrence_count,
				score, is_active
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.GroupKey, row.AccountKey, row.Counterparty, string(row.Cadence),
			row.TypicalAmount, row.Currency, FormatISODate(row.LastSeenAt),
			nextExpectedAt, row.OccurrenceCount, row.Score, isActive,
		)
		if err != nil {
			return nil, store.MapEngineError(dbPath, err)
		}
		recurringInserted++
	}

	var anomaliesInserted int64
	for _, row := range anomalyRows {
		_, err := tx.Exec(
			`INSERT INTO internal_anomalies_materialized (
				txn_id, account_key, posted_at, merchant, amount, currency,
				reason_code, reason, score, severity
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.TxnID, row.AccountKey, row.PostedAt, row.Merchant, row.Amount,
			row.Currency, row.ReasonCode, row.Reason, row.Score, row.Severity,
		)
		if err != nil {
			return nil, store.MapEngineError(dbPath, err)
		}
		anomaliesInserted++
	}

	return &RefreshSummary{
		RecurringRows: recurringInserted,
		AnomalyRows:   anomaliesInserted,
	}, nil
}
