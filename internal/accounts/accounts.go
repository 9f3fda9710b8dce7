// Package accounts summarizes the ledger's accounts: per-account activity
// ranges and net amounts plus the overall transaction totals.
package accounts

import (
	"database/sql"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/store"
)

// Run returns the accounts summary envelope.
func Run(homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	data, err := QueryAccountsData(db, setup.DBPath)
	if err != nil {
		return nil, err
	}
	return contracts.Success("account list", data)
}

// QueryAccountsData computes the summary and per-account rows.
func QueryAccountsData(db *sql.DB, dbPath string) (*contracts.AccountsData, error) {
	var summary contracts.AccountsSummary
	err := db.QueryRow(
		`SELECT
			COUNT(DISTINCT t.account_key) AS account_count,
			COUNT(*) AS transaction_count,
			MIN(t.posted_at) AS earliest_posted_at,
			MAX(t.posted_at) AS latest_posted_at,
			COUNT(DISTINCT CASE
				WHEN a.account_type IS NOT NULL AND TRIM(a.account_type) <> '' THEN t.account_key
				ELSE NULL
			END) AS typed_account_count,
			ROUND(COALESCE(SUM(t.amount), 0), 2) AS net_amount
		 FROM internal_transactions t
		 LEFT JOIN internal_accounts a ON a.account_key = t.account_key`,
	).Scan(
		&summary.AccountCount, &summary.TransactionCount,
		&summary.EarliestPostedAt, &summary.LatestPostedAt,
		&summary.TypedAccountCount, &summary.NetAmount,
	)
	if err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	summary.UntypedAccountCount = summary.AccountCount - summary.TypedAccountCount

	rows, err := db.Query(
		`SELECT
			t.account_key,
			a.account_type,
			t.currency,
			COUNT(*) AS txn_count,
			MIN(t.posted_at) AS first_posted_at,
			MAX(t.posted_at) AS last_posted_at,
			ROUND(COALESCE(SUM(t.amount), 0), 2) AS net_amount
		 FROM internal_transactions t
		 LEFT JOIN internal_accounts a ON a.account_key = t.account_key
		 GROUP BY t.account_key, a.account_type, t.currency
		 ORDER BY t.account_key ASC, t.currency ASC`,
	)
	if err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}
	defer rows.Close()

	accountRows := []contracts.AccountRow{}
	for rows.Next() {
		var row contracts.AccountRow
		err := rows.Scan(
			&row.AccountKey, &row.AccountType, &row.Currency, &row.TxnCount,
			&row.FirstPostedAt, &row.LastPostedAt, &row.NetAmount,
		)
		if err != nil {
			return nil, store.MapEngineError(dbPath, err)
		}
		accountRows = append(accountRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapEngineError(dbPath, err)
	}

	return &contracts.AccountsData{Summary: summary, Rows: accountRows}, nil
}
