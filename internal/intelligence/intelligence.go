// Package intelligence derives the two analytics streams from committed
// ledger history: recurring-payment detection and amount-anomaly
// detection. Both are deterministic functions of the history and a frozen,
// versioned policy; the same snapshot always produces byte-identical
// output.
package intelligence

import "time"

// IntelligenceFilter bounds an analytics query by posted date, inclusive
// on both ends.
type IntelligenceFilter struct {
	From *time.Time
	To   *time.Time
}

// NormalizedTransaction is a committed row loaded for analytics: date
// parsed, currency uppercased, zero amounts already excluded.
type NormalizedTransaction struct {
	TxnID       string
	AccountKey  string
	PostedAt    time.Time
	Amount      float64
	Currency    string
	Description string
	Merchant    *string
}

// AmountSignKey buckets the row as debit or credit for grouping.
func (t NormalizedTransaction) AmountSignKey() string {
	if t.Amount < 0 {
		return "debit"
	}
	return "credit"
}

// AbsAmount is the row's magnitude.
func (t NormalizedTransaction) AbsAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}
