package store

import (
	"strings"
	"testing"

	"github.com/ncruces/go-sqlite3"
)

func publicViewNames() []string {
	return append([]string{}, requiredViewNames...)
}

func openPublicSurface(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	if _, err := EnsureInitialized(home); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	return LedgerDBPath(home)
}

func TestPublicSurfaceAllowsViewQueries(t *testing.T) {
	dbPath := openPublicSurface(t)
	db, err := OpenPublicReadOnly(dbPath, publicViewNames())
	if err != nil {
		t.Fatalf("OpenPublicReadOnly: %v", err)
	}
	defer db.Close()

	// A view query traverses its underlying internal table through the
	// view accessor; the authorizer must permit that path.
	queries := []string{
		"SELECT COUNT(*) FROM v1_transactions",
		"SELECT lower(account_key) FROM v1_accounts",
		"SELECT sum(amount), min(posted_at) FROM v1_transactions",
		"SELECT * FROM v1_recurring",
	}
	for _, query := range queries {
		rows, err := db.Query(query)
		if err != nil {
			t.Errorf("expected %q to be allowed, got %v", query, err)
			continue
		}
		rows.Close()
	}
}

func TestPublicSurfaceDeniesInternalAccess(t *testing.T) {
	dbPath := openPublicSurface(t)
	db, err := OpenPublicReadOnly(dbPath, publicViewNames())
	if err != nil {
		t.Fatalf("OpenPublicReadOnly: %v", err)
	}
	defer db.Close()

	queries := []string{
		"SELECT * FROM internal_transactions",
		"SELECT * FROM internal_meta",
		"SELECT * FROM sqlite_master",
		"SELECT upper(account_key) FROM v1_accounts",
		"SELECT load_extension('x') FROM v1_accounts",
		"DELETE FROM internal_meta",
		"PRAGMA user_version = 9",
	}
	for _, query := range queries {
		rows, err := db.Query(query)
		if err == nil {
			rows.Close()
			t.Errorf("expected %q to be denied", query)
		}
	}
}

func TestAuthorizeFunctionAllowlist(t *testing.T) {
	allowed := map[string]struct{}{"v1_transactions": {}}
	for name := range allowedReadFunctions {
		if !authorize(sqlite3.AUTH_FUNCTION, "", name, "", allowed) {
			t.Errorf("function %s must be allowed", name)
		}
	}
	for _, denied := range []string{"upper", "load_extension", "random", "changes"} {
		if authorize(sqlite3.AUTH_FUNCTION, "", denied, "", allowed) {
			t.Errorf("function %s must be denied", denied)
		}
	}
	if len(allowedReadFunctions) != 17 {
		t.Errorf("function allowlist is frozen at 17 entries, got %d", len(allowedReadFunctions))
	}
}

func TestIsAllowedReadAccess(t *testing.T) {
	allowed := map[string]struct{}{"v1_transactions": {}, "v1_accounts": {}}

	cases := []struct {
		table    string
		accessor string
		want     bool
	}{
		{"v1_transactions", "", true},
		{"internal_transactions", "v1_transactions", true},
		{"internal_transactions", "", false},
		{"sqlite_master", "", false},
		{"sqlite_master", "v1_transactions", false},
		{"V1_ACCOUNTS", "", true},
	}
	for _, tc := range cases {
		if got := isAllowedReadAccess(tc.table, tc.accessor, allowed); got != tc.want {
			t.Errorf("isAllowedReadAccess(%q, %q) = %v, want %v", tc.table, tc.accessor, got, tc.want)
		}
	}

	if !strings.HasPrefix("sqlite_master", "sqlite_") {
		t.Fatal("sanity check")
	}
}
