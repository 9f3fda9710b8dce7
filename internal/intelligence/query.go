package intelligence

import (
	"database/sql"
	"strings"

	"github.com/mzxrai/driggsby/internal/store"
)

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// LoadTransactions reads the committed rows analytics operates on:
// zero-amount rows excluded, dates parsed, currency normalized, in the
// stable load order grouping depends on.
func LoadTransactions(q querier, dbPath string, filter *IntelligenceFilter) ([]NormalizedTransaction, error) {
	var fromBound, toBound *string
	if filter.From != nil {
		bound := FormatISODate(*filter.From)
		fromBound = &bound
	}
	if filter.To != nil {
		bound := FormatISODate(*filter.To)
		toBound = &bound
	}

	rows, err := q.Query(
		`SELECT txn_id, account_key, posted_at, CAST(amount AS REAL),
		        currency, description, merchant
		 FROM internal_transactions
		 WHERE CAST(amount AS REAL) <> 0
		   AND (?1 IS NULL OR posted_at >= ?1)
		   AND (?2 IS NULL OR posted_at <= ?2)
		 ORDER BY account_key ASC, currency ASC, posted_at ASC, txn_id ASC`,
		fromBound, toBound,
	)
	if err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	defer rows.Close()

	var transactions []NormalizedTransaction
	for rows.Next() {
		var txnID, accountKey, postedAt, currency, description string
		var amount float64
		var merchant sql.NullString
		err := rows.Scan(&txnID, &accountKey, &postedAt, &amount, &currency, &description, &merchant)
		if err != nil {
			return nil, store.MapEngineError(dbPath, err)
		}
		if amount == 0 {
			continue
		}
		parsedDate, ok := ParseTransactionDate(postedAt)
		if !ok {
			continue
		}

		transaction := NormalizedTransaction{
			TxnID:       txnID,
			AccountKey:  accountKey,
			PostedAt:    parsedDate,
			Amount:      amount,
			Currency:    strings.ToUpper(strings.TrimSpace(currency)),
			Description: strings.TrimSpace(description),
		}
		if merchant.Valid {
			trimmed := strings.TrimSpace(merchant.String)
			if trimmed != "" {
				transaction.Merchant = &trimmed
			}
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	return transactions, nil
}
