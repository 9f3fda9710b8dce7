package importer

import (
	"sort"

	"github.com/mzxrai/driggsby/internal/contracts"
)

// SignCounts tallies an account's debit/credit split. Zero-amount rows
// count on neither side.
type SignCounts struct {
	NegativeCount int64
	PositiveCount int64
}

// TotalCount is the number of signed rows observed.
func (s SignCounts) TotalCount() int64 {
	return s.NegativeCount + s.PositiveCount
}

// NegativeRatio is the debit share of signed rows, 0 when empty.
func (s SignCounts) NegativeRatio() float64 {
	total := s.TotalCount()
	if total <= 0 {
		return 0
	}
	return float64(s.NegativeCount) / float64(total)
}

// PositiveRatio is the credit share of signed rows, 0 when empty.
func (s SignCounts) PositiveRatio() float64 {
	total := s.TotalCount()
	if total <= 0 {
		return 0
	}
	return float64(s.PositiveCount) / float64(total)
}

// ExistingSignCountMap tallies committed history's sign split per account.
func ExistingSignCountMap(q querier, dbPath string) (map[string]SignCounts, error) {
	rows, err := q.Query(
		`SELECT
			account_key,
			SUM(CASE WHEN amount < 0 THEN 1 ELSE 0 END) AS negative_count,
			SUM(CASE WHEN amount > 0 THEN 1 ELSE 0 END) AS positive_count
		 FROM internal_transactions
		 GROUP BY account_key
		 ORDER BY account_key ASC`,
	)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer rows.Close()

	counts := make(map[string]SignCounts)
	for rows.Next() {
		var accountKey string
		var entry SignCounts
		if err := rows.Scan(&accountKey, &entry.NegativeCount, &entry.PositiveCount); err != nil {
			return nil, mapStoreError(dbPath, err)
		}
		counts[accountKey] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	return counts, nil
}

// IncomingSignCountMap tallies a batch's sign split per account.
func IncomingSignCountMap(rows []BatchRow) map[string]SignCounts {
	counts := make(map[string]SignCounts)
	for _, batchRow := range rows {
		entry := counts[batchRow.Row.AccountKey]
		if batchRow.Row.Amount.IsNegative() {
			entry.NegativeCount++
		} else if batchRow.Row.Amount.IsPositive() {
			entry.PositiveCount++
		}
		counts[batchRow.Row.AccountKey] = entry
	}
	return counts
}

// ProfilesFromSignCounts renders sign counts as the response contract,
// sorted by account key.
func ProfilesFromSignCounts(countsByAccount map[string]SignCounts) []contracts.ImportSignProfile {
	accountKeys := make([]string, 0, len(countsByAccount))
	for accountKey := range countsByAccount {
		accountKeys = append(accountKeys, accountKey)
	}
	sort.Strings(accountKeys)

	profiles := make([]contracts.ImportSignProfile, 0, len(accountKeys))
	for _, accountKey := range accountKeys {
		counts := countsByAccount[accountKey]
		profiles = append(profiles, contracts.ImportSignProfile{
			AccountKey:    accountKey,
			NegativeCount: counts.NegativeCount,
			PositiveCount: counts.PositiveCount,
			NegativeRatio: counts.NegativeRatio(),
			PositiveRatio: counts.PositiveRatio(),
			TotalCount:    counts.TotalCount(),
		})
	}
	return profiles
}
