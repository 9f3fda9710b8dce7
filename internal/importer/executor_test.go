package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/store"
)

func setupLedger(t *testing.T) *store.Context {
	t.Helper()
	ctx, err := store.EnsureInitialized(t.TempDir())
	if err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	return ctx
}

func runImport(t *testing.T, ctx *store.Context, body string, dryRun bool) *ExecutionResult {
	t.Helper()
	result, err := Execute(ctx, ExecuteOptions{
		DryRun:        dryRun,
		StdinOverride: &body,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return result
}

func canonicalRowCount(t *testing.T, ctx *store.Context) int64 {
	t.Helper()
	db, err := store.OpenReadOnly(ctx.DBPath)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer db.Close()

	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM internal_transactions").Scan(&count); err != nil {
		t.Fatalf("counting canonical rows: %v", err)
	}
	return count
}

const scenarioOneBody = `[
	{"statement_id":"A_2026-01-31","account_key":"A","posted_at":"2026-01-01","amount":-42.15,"currency":"USD","description":"X","external_id":"e1"},
	{"statement_id":"A_2026-01-31","account_key":"A","posted_at":"2026-01-02","amount":-17.89,"currency":"USD","description":"Y"}
]`

const scenarioTwoBody = `[
	{"statement_id":"A_2026-02-28","account_key":"A","posted_at":"2026-01-01","amount":-42.15,"currency":"USD","description":"X","external_id":"e1"},
	{"statement_id":"A_2026-02-28","account_key":"A","posted_at":"2026-02-10","amount":-30,"currency":"USD","description":"C"},
	{"statement_id":"A_2026-02-28","account_key":"A","posted_at":"2026-01-01","amount":-42.15,"currency":"USD","description":"X","external_id":"e1"}
]`

func TestCommitSimpleImport(t *testing.T) {
	ctx := setupLedger(t)

	result := runImport(t, ctx, scenarioOneBody, false)

	if result.Summary.RowsRead != 2 || result.Summary.RowsValid != 2 ||
		result.Summary.RowsInvalid != 0 || result.Summary.Inserted != 2 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
	if result.DuplicateSummary.Total != 0 {
		t.Errorf("expected no duplicates, got %+v", result.DuplicateSummary)
	}
	if result.ImportID == nil || !strings.HasPrefix(*result.ImportID, "imp_") {
		t.Errorf("expected imp_-prefixed import id, got %v", result.ImportID)
	}
	if got := canonicalRowCount(t, ctx); got != 2 {
		t.Errorf("expected 2 canonical rows, got %d", got)
	}
	if result.NextStep.Command != "driggsby db schema" {
		t.Errorf("unexpected next step command: %s", result.NextStep.Command)
	}

	var hasUndo bool
	for _, action := range result.OtherActions {
		if strings.HasPrefix(action.Command, "driggsby import undo ") {
			hasUndo = true
			if action.Risk == nil || *action.Risk != "destructive" {
				t.Errorf("undo action must be marked destructive")
			}
		}
	}
	if !hasUndo {
		t.Errorf("other_actions must always offer undo for a committed import")
	}
}

func TestCrossStatementExistingLedgerDedupe(t *testing.T) {
	ctx := setupLedger(t)
	first := runImport(t, ctx, scenarioOneBody, false)

	second := runImport(t, ctx, scenarioTwoBody, false)

	if second.Summary.Inserted != 1 {
		t.Errorf("expected 1 insert, got %d", second.Summary.Inserted)
	}
	expected := struct{ total, batch, existing int64 }{2, 1, 1}
	if second.DuplicateSummary.Total != expected.total ||
		second.DuplicateSummary.Batch != expected.batch ||
		second.DuplicateSummary.ExistingLedger != expected.existing {
		t.Errorf("unexpected duplicate summary: %+v", second.DuplicateSummary)
	}

	// The existing_ledger duplicate must point at the scenario-1 import.
	var existingDup *int
	for index, row := range second.DuplicatesPreview.Rows {
		if row.DedupeReason == "existing_ledger" {
			existingDup = &index
		}
	}
	if existingDup == nil {
		t.Fatal("expected an existing_ledger duplicate in the preview")
	}
	row := second.DuplicatesPreview.Rows[*existingDup]
	if row.MatchedImportID == nil || *row.MatchedImportID != *first.ImportID {
		t.Errorf("existing_ledger match must point at the first import, got %v", row.MatchedImportID)
	}
	if row.MatchedTxnID == nil || !strings.HasPrefix(*row.MatchedTxnID, "txn_") {
		t.Errorf("existing_ledger match must carry the matched txn id, got %v", row.MatchedTxnID)
	}

	if got := canonicalRowCount(t, ctx); got != 3 {
		t.Errorf("expected 3 canonical rows after both imports, got %d", got)
	}
}

func TestUndoWithPromotion(t *testing.T) {
	ctx := setupLedger(t)
	first := runImport(t, ctx, scenarioOneBody, false)
	second := runImport(t, ctx, scenarioTwoBody, false)

	preUndoCount := canonicalRowCount(t, ctx)

	db, lock, err := store.OpenReadWrite(ctx.DBPath)
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}
	defer store.ReleaseLock(lock)
	defer db.Close()

	undone, err := UndoImport(db, ctx.DBPath, *first.ImportID)
	if err != nil {
		t.Fatalf("UndoImport: %v", err)
	}

	if undone.RowsReverted != 2 {
		t.Errorf("expected 2 reverted rows, got %d", undone.RowsReverted)
	}
	if undone.RowsPromoted != 1 {
		t.Errorf("expected 1 promoted row, got %d", undone.RowsPromoted)
	}
	if got := canonicalRowCount(t, ctx); got != preUndoCount-1 {
		t.Errorf("expected net count %d, got %d", preUndoCount-1, got)
	}

	// The promoted candidate keeps its owning (scenario-2) import and
	// gains a fresh txn id.
	var promotedTxnID, owningImportID string
	err = db.QueryRow(
		`SELECT promoted_txn_id, import_id
		 FROM internal_transaction_dedupe_candidates
		 WHERE dedupe_reason = 'existing_ledger' AND promoted_txn_id IS NOT NULL`,
	).Scan(&promotedTxnID, &owningImportID)
	if err != nil {
		t.Fatalf("reading promoted candidate: %v", err)
	}
	if !strings.HasPrefix(promotedTxnID, "txn_") {
		t.Errorf("promoted_txn_id must be a fresh txn id, got %s", promotedTxnID)
	}
	if owningImportID != *second.ImportID {
		t.Errorf("promoted candidate must keep its owning import, got %s", owningImportID)
	}

	// The promoted canonical row's lineage points at its original import.
	var lineageImportID string
	err = db.QueryRow(
		"SELECT import_id FROM internal_transactions WHERE txn_id = ?", promotedTxnID,
	).Scan(&lineageImportID)
	if err != nil {
		t.Fatalf("reading promoted canonical row: %v", err)
	}
	if lineageImportID != *second.ImportID {
		t.Errorf("promoted row lineage must be the scenario-2 import, got %s", lineageImportID)
	}

	// The batch duplicate stays pending: its peer is live again.
	var pendingBatch int64
	err = db.QueryRow(
		`SELECT COUNT(*)
		 FROM internal_transaction_dedupe_candidates
		 WHERE dedupe_reason = 'batch' AND promoted_txn_id IS NULL`,
	).Scan(&pendingBatch)
	if err != nil {
		t.Fatalf("counting pending candidates: %v", err)
	}
	if pendingBatch != 1 {
		t.Errorf("expected the batch duplicate to stay pending, got %d", pendingBatch)
	}

	// Import run survives as reverted.
	var status string
	err = db.QueryRow(
		"SELECT status FROM internal_import_runs WHERE import_id = ?", *first.ImportID,
	).Scan(&status)
	if err != nil {
		t.Fatalf("reading reverted import run: %v", err)
	}
	if status != "reverted" {
		t.Errorf("expected status reverted, got %s", status)
	}
}

func TestUndoErrors(t *testing.T) {
	ctx := setupLedger(t)
	first := runImport(t, ctx, scenarioOneBody, false)

	db, lock, err := store.OpenReadWrite(ctx.DBPath)
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}
	defer store.ReleaseLock(lock)
	defer db.Close()

	if _, err := UndoImport(db, ctx.DBPath, "imp_does_not_exist"); err == nil {
		t.Fatal("expected import_id_not_found")
	} else {
		assertErrorCode(t, err, "import_id_not_found")
	}

	if _, err := UndoImport(db, ctx.DBPath, *first.ImportID); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	_, err = UndoImport(db, ctx.DBPath, *first.ImportID)
	assertErrorCode(t, err, "import_already_reverted")
}

func TestDryRunDoesNotMutateAndReportsSignDrift(t *testing.T) {
	ctx := setupLedger(t)

	// Baseline: 25 committed rows on account A, 24 debits and 1 credit.
	var baselineRows []string
	for index := 0; index < 24; index++ {
		baselineRows = append(baselineRows, fmt.Sprintf(
			`{"account_key":"A","posted_at":"2026-01-%02d","amount":-%d.25,"currency":"USD","description":"debit %d"}`,
			(index%28)+1, index+1, index,
		))
	}
	baselineRows = append(baselineRows,
		`{"account_key":"A","posted_at":"2026-01-15","amount":100,"currency":"USD","description":"payroll"}`,
	)
	runImport(t, ctx, "["+strings.Join(baselineRows, ",")+"]", false)

	preDryRunCount := canonicalRowCount(t, ctx)

	var incomingRows []string
	for index := 0; index < 5; index++ {
		incomingRows = append(incomingRows, fmt.Sprintf(
			`{"account_key":"A","posted_at":"2026-02-%02d","amount":%d.50,"currency":"USD","description":"refund %d"}`,
			index+1, index+10, index,
		))
	}
	result := runImport(t, ctx, "["+strings.Join(incomingRows, ",")+"]", true)

	if !result.DryRun || result.ImportID != nil {
		t.Errorf("dry-run must not mint an import id")
	}
	if got := canonicalRowCount(t, ctx); got != preDryRunCount {
		t.Errorf("dry-run mutated the ledger: %d != %d", got, preDryRunCount)
	}

	if result.DriftWarnings == nil {
		t.Fatal("dry-run must carry drift warnings")
	}
	var foundSignAnomaly bool
	for _, warning := range *result.DriftWarnings {
		if warning.Code == "account_sign_profile_anomaly" {
			foundSignAnomaly = true
		}
	}
	if !foundSignAnomaly {
		t.Errorf("expected account_sign_profile_anomaly, warnings: %+v", *result.DriftWarnings)
	}
	if result.SignProfiles == nil || len(*result.SignProfiles) == 0 {
		t.Errorf("dry-run must carry the existing sign profiles")
	}
	if result.KeyInventory == nil {
		t.Errorf("dry-run must carry the key inventory")
	}
}

func TestStatementIDReuseIsRejected(t *testing.T) {
	ctx := setupLedger(t)
	runImport(t, ctx, scenarioOneBody, false)

	reuseBody := `[
		{"statement_id":"A_2026-01-31","account_key":"A","posted_at":"2026-03-01","amount":-9.99,"currency":"USD","description":"Z"}
	]`
	_, err := Execute(ctx, ExecuteOptions{StdinOverride: &reuseBody})
	assertIssueCode(t, err, "statement_id_reused")
}

func TestSourceResolutionErrors(t *testing.T) {
	ctx := setupLedger(t)
	empty := ""
	dash := "-"

	cases := []struct {
		name string
		opts ExecuteOptions
	}{
		{"no source", ExecuteOptions{StdinOverride: &empty}},
		{"dash with empty stdin", ExecuteOptions{Path: &dash, StdinOverride: &empty}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Execute(ctx, tc.opts)
			assertErrorCode(t, err, "invalid_argument")
		})
	}
}

func TestBothSourcesConflict(t *testing.T) {
	ctx := setupLedger(t)
	body := scenarioOneBody
	// The file must exist so resolution reaches the conflict check rather
	// than failing on the read.
	path := filepath.Join(t.TempDir(), "some-file.json")
	if err := os.WriteFile(path, []byte(scenarioOneBody), 0o600); err != nil {
		t.Fatalf("writing import file: %v", err)
	}
	_, err := Execute(ctx, ExecuteOptions{Path: &path, StdinOverride: &body})
	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		t.Fatalf("expected an error, got %v", err)
	}
	if driggsbyErr.Code != "invalid_argument" {
		t.Errorf("expected invalid_argument, got %s", driggsbyErr.Code)
	}
}
