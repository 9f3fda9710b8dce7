package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ncruces/go-sqlite3"
)

// allowedReadFunctions is the scalar/aggregate function allowlist the
// public read-only surface may call. Kept intentionally small: enough for
// ad hoc reporting queries against the public views, nothing that reaches
// outside SQL (no `load_extension`, no custom functions registered
// elsewhere).
var allowedReadFunctions = map[string]struct{}{
	"abs": {}, "avg": {}, "coalesce": {}, "count": {}, "date": {},
	"datetime": {}, "ifnull": {}, "length": {}, "lower": {}, "max": {},
	"min": {}, "nullif": {}, "printf": {}, "round": {}, "strftime": {},
	"substr": {}, "sum": {},
}

// installAuthorizer pins the connection pool to a single physical
// connection and installs the read-only authorizer on it. The authorizer
// restricts reads to the public `v1_*` views (an internal table is readable
// only when the planner reaches it through an allowlisted view) and denies
// every write, DDL, pragma, and non-allowlisted function call before
// execution.
func installAuthorizer(db *sql.DB, allowedViews []string) error {
	db.SetMaxOpenConns(1)

	allowed := make(map[string]struct{}, len(allowedViews))
	for _, name := range allowedViews {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	conn, err := db.Conn(context.Background())
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		sqliteConn, ok := driverConn.(*sqlite3.Conn)
		if !ok {
			return nil
		}
		return sqliteConn.SetAuthorizer(func(action sqlite3.AuthorizerActionCode, name3rd, name4th, schema, inner string) sqlite3.AuthorizerReturnCode {
			if authorize(action, name3rd, name4th, inner, allowed) {
				return sqlite3.AUTH_OK
			}
			return sqlite3.AUTH_DENY
		})
	})
}

func authorize(action sqlite3.AuthorizerActionCode, name3rd, name4th, inner string, allowedViews map[string]struct{}) bool {
	switch action {
	case sqlite3.AUTH_SELECT:
		return true
	case sqlite3.AUTH_READ:
		return isAllowedReadAccess(name3rd, inner, allowedViews)
	case sqlite3.AUTH_FUNCTION:
		_, ok := allowedReadFunctions[strings.ToLower(name4th)]
		return ok
	default:
		// Every other action (writes, DDL, ATTACH, PRAGMA, transactions,
		// sqlite_* administration) is denied on the public surface.
		return false
	}
}

// isAllowedReadAccess reports whether a table/view read is permitted:
// either the name itself is an allowlisted public view, or the access was
// initiated by the planner expanding an allowlisted view (the accessor).
// sqlite_* tables are never readable, accessor or not.
func isAllowedReadAccess(tableName, accessor string, allowedViews map[string]struct{}) bool {
	lowered := strings.ToLower(tableName)
	if strings.HasPrefix(lowered, "sqlite_") {
		return false
	}
	if _, ok := allowedViews[lowered]; ok {
		return true
	}
	if accessor != "" {
		if _, ok := allowedViews[strings.ToLower(accessor)]; ok {
			return true
		}
	}
	return false
}
