package importer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func txnRow(accountKey, postedAt, amount, currency, description, scopeID string, externalID *string) CanonicalTransaction {
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return CanonicalTransaction{
		DedupeScopeID: scopeID,
		AccountKey:    accountKey,
		PostedAt:      postedAt,
		Amount:        parsed,
		Currency:      currency,
		Description:   description,
		ExternalID:    externalID,
	}
}

func TestDedupeKeyBranches(t *testing.T) {
	externalID := "e1"
	withExt := txnRow("acct", "2026-01-01", "-42.15", "USD", "X", "s1", &externalID)
	if got := dedupeKey(withExt); got != "ext|acct|e1" {
		t.Errorf("unexpected ext key: %s", got)
	}

	fallback := txnRow("acct", "2026-01-01", "-42.15", "USD", "X", "s1", nil)
	if got := dedupeKey(fallback); got != "fallback|acct|2026-01-01|-42.15|USD|X" {
		t.Errorf("unexpected fallback key: %s", got)
	}
}

func TestDedupeBatchExternalIDCollidesRegardlessOfScope(t *testing.T) {
	externalID := "e1"
	rows := []CanonicalTransaction{
		txnRow("acct", "2026-01-01", "-42.15", "USD", "X", "stmt|acct|s1", &externalID),
		txnRow("acct", "2026-01-01", "-42.15", "USD", "X", "stmt|acct|s1", &externalID),
	}

	result := DedupeBatch(rows)
	if len(result.CandidateRows) != 1 || len(result.DuplicateRows) != 1 {
		t.Fatalf("expected 1 candidate + 1 duplicate, got %d + %d",
			len(result.CandidateRows), len(result.DuplicateRows))
	}
	duplicate := result.DuplicateRows[0]
	if duplicate.DedupeReason != DedupeReasonBatch {
		t.Errorf("expected batch reason, got %s", duplicate.DedupeReason)
	}
	if duplicate.MatchedBatchRowIndex == nil || *duplicate.MatchedBatchRowIndex != 1 {
		t.Errorf("expected match pointer to row 1, got %v", duplicate.MatchedBatchRowIndex)
	}
	if duplicate.SourceRowIndex != 2 {
		t.Errorf("expected duplicate at row 2, got %d", duplicate.SourceRowIndex)
	}
}

func TestDedupeBatchFallbackSameScopeIsNotDuplicate(t *testing.T) {
	// The same statement legitimately lists two identical charges.
	rows := []CanonicalTransaction{
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s1", nil),
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s1", nil),
	}

	result := DedupeBatch(rows)
	if len(result.CandidateRows) != 2 || len(result.DuplicateRows) != 0 {
		t.Fatalf("same-scope repeats must both survive, got %d candidates + %d duplicates",
			len(result.CandidateRows), len(result.DuplicateRows))
	}
}

func TestDedupeBatchFallbackCrossScopeIsDuplicate(t *testing.T) {
	rows := []CanonicalTransaction{
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s1", nil),
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s2", nil),
	}

	result := DedupeBatch(rows)
	if len(result.CandidateRows) != 1 || len(result.DuplicateRows) != 1 {
		t.Fatalf("cross-scope equal rows must dedupe, got %d candidates + %d duplicates",
			len(result.CandidateRows), len(result.DuplicateRows))
	}
}

func TestDedupeBatchScopeSearchFindsFirstDifferentScope(t *testing.T) {
	rows := []CanonicalTransaction{
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s1", nil),
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s1", nil),
		txnRow("acct", "2026-01-01", "-4.50", "USD", "coffee", "stmt|acct|s2", nil),
	}

	result := DedupeBatch(rows)
	if len(result.DuplicateRows) != 1 {
		t.Fatalf("expected exactly one duplicate, got %d", len(result.DuplicateRows))
	}
	duplicate := result.DuplicateRows[0]
	if duplicate.SourceRowIndex != 3 {
		t.Errorf("expected row 3 to be the duplicate, got %d", duplicate.SourceRowIndex)
	}
	if duplicate.MatchedBatchRowIndex == nil || *duplicate.MatchedBatchRowIndex != 1 {
		t.Errorf("expected match pointer to the first cross-scope row, got %v", duplicate.MatchedBatchRowIndex)
	}
}
