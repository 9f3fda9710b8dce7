package intelligence

import (
	"testing"
)

func normalizedRow(t *testing.T, txnID, accountKey, postedAt string, amount float64, currency, description string, merchant *string) NormalizedTransaction {
	t.Helper()
	parsed, ok := ParseTransactionDate(postedAt)
	if !ok {
		t.Fatalf("bad test date %q", postedAt)
	}
	return NormalizedTransaction{
		TxnID:       txnID,
		AccountKey:  accountKey,
		PostedAt:    parsed,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Merchant:    merchant,
	}
}

func merchantPtr(value string) *string {
	return &value
}

func TestMonthlyRecurringDetection(t *testing.T) {
	var rows []NormalizedTransaction
	dates := []string{"2026-01-05", "2026-02-05", "2026-03-05", "2026-04-05", "2026-05-05", "2026-06-05"}
	for index, day := range dates {
		rows = append(rows, normalizedRow(
			t, "txn_"+string(rune('a'+index)), "acct_1", day, -15.99, "USD",
			"NETFLIX.COM", merchantPtr("Netflix"),
		))
	}

	detections := DetectRecurring(rows)
	if len(detections) != 1 {
		t.Fatalf("expected exactly one detection, got %d", len(detections))
	}

	detection := detections[0]
	if detection.Cadence != CadenceMonthly {
		t.Errorf("expected monthly, got %s", detection.Cadence)
	}
	if detection.TypicalAmount != -15.99 {
		t.Errorf("expected typical amount -15.99, got %f", detection.TypicalAmount)
	}
	if detection.OccurrenceCount != 6 {
		t.Errorf("expected 6 occurrences, got %d", detection.OccurrenceCount)
	}
	if detection.Score < 0.78 {
		t.Errorf("score must clear the gate, got %f", detection.Score)
	}
	if detection.NextExpectedAt == nil || FormatISODate(*detection.NextExpectedAt) != "2026-07-05" {
		t.Errorf("expected next occurrence 2026-07-05, got %v", detection.NextExpectedAt)
	}
	if !detection.IsActive {
		t.Errorf("freshly-seen monthly pattern must be active")
	}
}

func TestMonthlyNextExpectedClampsEndOfMonth(t *testing.T) {
	var rows []NormalizedTransaction
	for index, day := range []string{"2025-10-31", "2025-11-30", "2025-12-31", "2026-01-31"} {
		rows = append(rows, normalizedRow(
			t, "txn_"+string(rune('a'+index)), "acct_1", day, -9.99, "USD",
			"SUBSCRIPTION", merchantPtr("Clamp Co"),
		))
	}

	detections := DetectRecurring(rows)
	if len(detections) != 1 {
		t.Fatalf("expected one detection, got %d", len(detections))
	}
	if detections[0].NextExpectedAt == nil || FormatISODate(*detections[0].NextExpectedAt) != "2026-02-28" {
		t.Errorf("expected clamped 2026-02-28, got %v", detections[0].NextExpectedAt)
	}
}

func TestWeeklyDetectionRequiresMinOccurrences(t *testing.T) {
	var rows []NormalizedTransaction
	for index, day := range []string{"2026-01-01", "2026-01-08", "2026-01-15"} {
		rows = append(rows, normalizedRow(
			t, "txn_"+string(rune('a'+index)), "acct_1", day, -5.0, "USD",
			"WEEKLY PLAN", merchantPtr("Weekly Co"),
		))
	}
	if detections := DetectRecurring(rows); len(detections) != 0 {
		t.Fatalf("three weekly rows must not qualify, got %d", len(detections))
	}

	rows = append(rows, normalizedRow(t, "txn_d", "acct_1", "2026-01-22", -5.0, "USD",
		"WEEKLY PLAN", merchantPtr("Weekly Co")))
	detections := DetectRecurring(rows)
	if len(detections) != 1 || detections[0].Cadence != CadenceWeekly {
		t.Fatalf("four weekly rows must classify weekly, got %+v", detections)
	}
}

func TestVolatileAmountsAreFiltered(t *testing.T) {
	rows := []NormalizedTransaction{
		normalizedRow(t, "txn_a", "acct_1", "2026-01-01", -5.0, "USD", "UTILITY", merchantPtr("Grid Co")),
		normalizedRow(t, "txn_b", "acct_1", "2026-02-01", -100.0, "USD", "UTILITY", merchantPtr("Grid Co")),
		normalizedRow(t, "txn_c", "acct_1", "2026-03-01", -10.0, "USD", "UTILITY", merchantPtr("Grid Co")),
	}
	if detections := DetectRecurring(rows); len(detections) != 0 {
		t.Errorf("volatile amounts must fail the amount gate, got %+v", detections)
	}
}

func TestGroupingIsSignAndCurrencySensitive(t *testing.T) {
	var rows []NormalizedTransaction
	for index, day := range []string{"2026-01-01", "2026-02-01", "2026-03-01"} {
		rows = append(rows, normalizedRow(
			t, "txn_d"+string(rune('a'+index)), "acct_1", day, -10.0, "USD",
			"MONTHLY PLAN", merchantPtr("Plan Co"),
		))
	}
	for index, day := range []string{"2026-01-02", "2026-02-02", "2026-03-02"} {
		rows = append(rows, normalizedRow(
			t, "txn_c"+string(rune('a'+index)), "acct_1", day, 10.0, "USD",
			"MONTHLY PLAN", merchantPtr("Plan Co"),
		))
	}

	detections := DetectRecurring(rows)
	if len(detections) != 2 {
		t.Fatalf("debit and credit streams must classify separately, got %d", len(detections))
	}
}

func TestWeakDescriptionGroupsAreSkipped(t *testing.T) {
	var rows []NormalizedTransaction
	for index, day := range []string{"2026-01-05", "2026-02-05", "2026-03-05", "2026-04-05"} {
		rows = append(rows, normalizedRow(
			t, "txn_"+string(rune('a'+index)), "acct_1", day, -12.0, "USD",
			"ACH PAYMENT NETFLIX 1234", nil,
		))
	}
	if detections := DetectRecurring(rows); len(detections) != 0 {
		t.Errorf("single-token description fallback must be skipped, got %+v", detections)
	}
}

func TestIsActiveUsesLedgerLatestNotWallClock(t *testing.T) {
	var rows []NormalizedTransaction
	for index, day := range []string{"2020-01-05", "2020-02-05", "2020-03-05", "2020-04-05"} {
		rows = append(rows, normalizedRow(
			t, "txn_"+string(rune('a'+index)), "acct_1", day, -7.5, "USD",
			"OLD PLAN", merchantPtr("Old Co"),
		))
	}
	// A lone recent row pushes the ledger's latest date far past the group.
	rows = append(rows, normalizedRow(t, "txn_z", "acct_1", "2026-06-01", -99.0, "USD",
		"UNRELATED CHARGE", merchantPtr("Other Co")))

	detections := DetectRecurring(rows)
	var oldPlan *RecurringDetection
	for index := range detections {
		if detections[index].Counterparty == "OLD CO" {
			oldPlan = &detections[index]
		}
	}
	if oldPlan == nil {
		t.Fatal("expected the old plan to classify")
	}
	if oldPlan.IsActive {
		t.Errorf("a group silent for years must not be active")
	}
}

func TestDeterministicOutputOrder(t *testing.T) {
	var rows []NormalizedTransaction
	build := func(prefix, merchant string, amount float64, dates []string) {
		for index, day := range dates {
			rows = append(rows, normalizedRow(
				t, prefix+string(rune('a'+index)), "acct_1", day, amount, "USD",
				merchant+" PLAN", merchantPtr(merchant),
			))
		}
	}
	build("txn_m", "Monthly Co", -10.0, []string{"2026-01-05", "2026-02-05", "2026-03-05"})
	build("txn_w", "Weekly Co", -5.0, []string{"2026-03-01", "2026-03-08", "2026-03-15", "2026-03-22"})

	first := DetectRecurring(rows)
	second := DetectRecurring(rows)
	if len(first) != len(second) {
		t.Fatalf("nondeterministic detection count")
	}
	for index := range first {
		if first[index].GroupKey != second[index].GroupKey ||
			first[index].Score != second[index].Score {
			t.Fatalf("nondeterministic output at %d", index)
		}
	}

	// Sorted by next_expected_at ascending.
	for index := 1; index < len(first); index++ {
		left, right := first[index-1].NextExpectedAt, first[index].NextExpectedAt
		if left != nil && right != nil && left.After(*right) {
			t.Errorf("detections out of next_expected_at order")
		}
	}
}
