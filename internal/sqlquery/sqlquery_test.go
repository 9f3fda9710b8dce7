package sqlquery

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
	"github.com/mzxrai/driggsby/internal/importer"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()

	body := `[
		{"account_key":"acct_1","posted_at":"2026-01-01","amount":-42.15,"currency":"USD","description":"X"},
		{"account_key":"acct_1","posted_at":"2026-01-02","amount":-17.89,"currency":"USD","description":"Y"}
	]`
	if _, err := importer.Run(importer.RunOptions{
		HomeOverride:  home,
		StdinOverride: &body,
	}); err != nil {
		t.Fatalf("seeding import: %v", err)
	}
	return home
}

func runQuery(t *testing.T, home, query string) *contracts.SQLQueryData {
	t.Helper()
	envelope, err := Run(QueryOptions{Query: &query, HomeOverride: home})
	if err != nil {
		t.Fatalf("Run(%q): %v", query, err)
	}
	var data contracts.SQLQueryData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	return &data
}

func TestRunSelectsFromPublicView(t *testing.T) {
	home := setupHome(t)
	data := runQuery(t, home, "SELECT account_key, description FROM v1_transactions ORDER BY posted_at")
	if data.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", data.RowCount)
	}
	if len(data.Columns) != 2 || data.Columns[0].Name != "account_key" {
		t.Errorf("unexpected columns: %+v", data.Columns)
	}
	if data.Truncated {
		t.Errorf("two rows must not truncate")
	}
}

func TestRunRejectsInternalTables(t *testing.T) {
	home := setupHome(t)
	query := "SELECT * FROM internal_transactions"
	_, err := Run(QueryOptions{Query: &query, HomeOverride: home})
	assertCode(t, err, "invalid_argument")
}

func TestRunRejectsWrites(t *testing.T) {
	home := setupHome(t)
	query := "DELETE FROM v1_transactions"
	if _, err := Run(QueryOptions{Query: &query, HomeOverride: home}); err == nil {
		t.Fatal("expected write to be rejected")
	}
}

func TestRunRejectsEmptyAndOversizedSQL(t *testing.T) {
	home := setupHome(t)

	empty := "   "
	_, err := Run(QueryOptions{Query: &empty, HomeOverride: home})
	assertCode(t, err, "invalid_argument")

	oversized := make([]byte, maxSQLLength+1)
	for index := range oversized {
		oversized[index] = 'x'
	}
	tooLong := string(oversized)
	_, err = Run(QueryOptions{Query: &tooLong, HomeOverride: home})
	assertCode(t, err, "invalid_argument")
}

func TestRunRequiresExactlyOneSource(t *testing.T) {
	home := setupHome(t)

	_, err := Run(QueryOptions{HomeOverride: home})
	assertCode(t, err, "invalid_argument")

	query := "SELECT 1"
	file := "query.sql"
	_, err = Run(QueryOptions{Query: &query, File: &file, HomeOverride: home})
	assertCode(t, err, "invalid_argument")
}

func TestRunEnforcesMaxRows(t *testing.T) {
	home := setupHome(t)
	query := "SELECT account_key FROM v1_transactions"
	maxRows := int64(1)
	envelope, err := Run(QueryOptions{Query: &query, HomeOverride: home, MaxRows: &maxRows})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var data contracts.SQLQueryData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if data.RowCount != 1 || !data.Truncated {
		t.Errorf("expected truncation at 1 row, got %+v", data)
	}

	invalid := int64(0)
	_, err = Run(QueryOptions{Query: &query, HomeOverride: home, MaxRows: &invalid})
	assertCode(t, err, "invalid_argument")
}

func TestSchemaSummaryAndView(t *testing.T) {
	home := setupHome(t)

	envelope, err := SchemaSummary(home)
	if err != nil {
		t.Fatalf("SchemaSummary: %v", err)
	}
	var summary contracts.SchemaSummaryData
	if err := json.Unmarshal(envelope.Data, &summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if len(summary.PublicViews) != 5 {
		t.Errorf("expected 5 public views, got %d", len(summary.PublicViews))
	}

	viewEnvelope, err := SchemaView("v1_transactions", home)
	if err != nil {
		t.Fatalf("SchemaView: %v", err)
	}
	var view contracts.SchemaViewData
	if err := json.Unmarshal(viewEnvelope.Data, &view); err != nil {
		t.Fatalf("decoding view: %v", err)
	}
	if view.ViewName != "v1_transactions" || len(view.Columns) == 0 {
		t.Errorf("unexpected view payload: %+v", view)
	}

	_, err = SchemaView("v1_nope", home)
	assertCode(t, err, "unknown_view")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		t.Fatalf("expected *driggerr.Error, got %T", err)
	}
	if driggsbyErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, driggsbyErr.Code)
	}
}
