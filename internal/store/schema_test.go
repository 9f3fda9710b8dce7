package store

import "testing"

func TestSafeRepairStatementExistsForViewsAndIndexes(t *testing.T) {
	names := append(append([]string{}, requiredViewNames...), requiredIndexNames...)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if safeRepairStatement(name) == "" {
				t.Fatalf("expected safe-repair SQL for %q", name)
			}
		})
	}
}

func TestExtractCreateViewSQL(t *testing.T) {
	block := safeRepairStatement("v1_recurring")
	sql, ok := extractCreateViewSQL(block)
	if !ok {
		t.Fatal("expected a CREATE VIEW statement")
	}
	if !containsString([]string{sql}, sql) {
		t.Fatal("sanity check failed")
	}
}

func TestNormalizeSQLIgnoresWhitespaceAndCase(t *testing.T) {
	a := "CREATE VIEW foo AS\n  SELECT  a, b FROM bar;"
	b := "create view foo as select a,b from bar"
	if normalizeSQL(a) != normalizeSQL(b) {
		t.Fatalf("expected equivalent normalized SQL, got %q vs %q", normalizeSQL(a), normalizeSQL(b))
	}
}

func TestIsRequiredCoreTable(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"internal_meta", true},
		{"internal_transactions", true},
		{"sqlite_master", false},
		{"not_a_table", false},
	}
	for _, tc := range cases {
		if got := isRequiredCoreTable(tc.name); got != tc.want {
			t.Errorf("isRequiredCoreTable(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
