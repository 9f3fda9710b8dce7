// Package store owns the ledger's SQLite-backed persistence: schema
// bootstrap/self-heal, connection management, and the read-only authorizer
// that enforces the public SQL view contract.
package store

import (
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

// Context carries everything a caller needs after a successful
// initialization: the resolved paths, the schema version, the public view
// contract, and the ledger's overall date range.
type Context struct {
	DBPath        string
	ReadonlyURI   string
	SchemaVersion string
	PublicViews   []contracts.PublicView
	DataRange     contracts.DataRange
}

// EnsureInitialized resolves the ledger home, creates it if needed, opens
// (creating if needed) the database, runs pending migrations, verifies the
// canonical shape, self-heals any missing view/index/meta object, and
// returns the resulting Context. Idempotent: a second call against a healthy
// ledger changes nothing.
func EnsureInitialized(homeOverride string) (*Context, error) {
	home, err := ResolveLedgerHome(homeOverride)
	if err != nil {
		return nil, err
	}
	if err := EnsureLedgerDirectory(home); err != nil {
		return nil, err
	}

	dbPath := LedgerDBPath(home)
	db, lock, err := OpenReadWrite(dbPath)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		return nil, driggerr.MigrationFailed(dbPath, err.Error())
	}

	if err := verifyCoreTables(db, dbPath); err != nil {
		return nil, err
	}
	if err := repairSafeObjects(db, dbPath); err != nil {
		return nil, err
	}
	if err := verifyPostRepairObjects(db, dbPath); err != nil {
		return nil, err
	}

	schemaVersion, err := readMetaValue(db, dbPath, "schema_version", "v1")
	if err != nil {
		return nil, err
	}
	dataRange, err := readDataRange(db, dbPath)
	if err != nil {
		return nil, err
	}

	return &Context{
		DBPath:        dbPath,
		ReadonlyURI:   fmt.Sprintf("file:%s?mode=ro", dbPath),
		SchemaVersion: schemaVersion,
		PublicViews:   PublicViewContracts(),
		DataRange:     dataRange,
	}, nil
}

func releaseLock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// ReleaseLock releases the advisory lock returned by OpenReadWrite. Safe
// with a nil lock.
func ReleaseLock(lock *flock.Flock) {
	releaseLock(lock)
}

// PublicViewContracts describes the five public views' column shapes, used
// both for `db schema` rendering and for the QueryContext envelope.
func PublicViewContracts() []contracts.PublicView {
	return []contracts.PublicView{
		{Name: "v1_transactions", Columns: []contracts.ViewColumn{
			{Name: "txn_id", Type: "TEXT", Nullable: false},
			{Name: "import_id", Type: "TEXT", Nullable: false},
			{Name: "statement_id", Type: "TEXT", Nullable: true},
			{Name: "account_key", Type: "TEXT", Nullable: false},
			{Name: "posted_at", Type: "TEXT", Nullable: false},
			{Name: "amount", Type: "TEXT", Nullable: false},
			{Name: "currency", Type: "TEXT", Nullable: false},
			{Name: "description", Type: "TEXT", Nullable: false},
			{Name: "external_id", Type: "TEXT", Nullable: true},
			{Name: "merchant", Type: "TEXT", Nullable: true},
			{Name: "category", Type: "TEXT", Nullable: true},
		}},
		{Name: "v1_accounts", Columns: []contracts.ViewColumn{
			{Name: "account_key", Type: "TEXT", Nullable: false},
			{Name: "account_type", Type: "TEXT", Nullable: true},
			{Name: "created_at", Type: "TEXT", Nullable: false},
			{Name: "updated_at", Type: "TEXT", Nullable: false},
		}},
		{Name: "v1_imports", Columns: []contracts.ViewColumn{
			{Name: "import_id", Type: "TEXT", Nullable: false},
			{Name: "status", Type: "TEXT", Nullable: false},
			{Name: "created_at", Type: "TEXT", Nullable: false},
			{Name: "committed_at", Type: "TEXT", Nullable: true},
			{Name: "reverted_at", Type: "TEXT", Nullable: true},
			{Name: "rows_read", Type: "INTEGER", Nullable: false},
			{Name: "rows_valid", Type: "INTEGER", Nullable: false},
			{Name: "rows_invalid", Type: "INTEGER", Nullable: false},
			{Name: "inserted", Type: "INTEGER", Nullable: false},
			{Name: "deduped", Type: "INTEGER", Nullable: false},
			{Name: "source_kind", Type: "TEXT", Nullable: true},
			{Name: "source_ref", Type: "TEXT", Nullable: true},
		}},
		{Name: "v1_recurring", Columns: []contracts.ViewColumn{
			{Name: "merchant", Type: "TEXT", Nullable: false},
			{Name: "typical_amount", Type: "REAL", Nullable: false},
			{Name: "cadence", Type: "TEXT", Nullable: false},
		}},
		{Name: "v1_anomalies", Columns: []contracts.ViewColumn{
			{Name: "posted_at", Type: "TEXT", Nullable: false},
			{Name: "amount", Type: "REAL", Nullable: false},
			{Name: "reason", Type: "TEXT", Nullable: false},
		}},
	}
}

func verifyCoreTables(db *sql.DB, dbPath string) error {
	for _, table := range requiredCoreTables {
		exists, err := sqliteObjectExists(db, dbPath, "table", table.Name)
		if err != nil {
			return err
		}
		if !exists {
			return driggerr.LedgerCorrupt(dbPath)
		}

		columns, err := tableColumns(db, dbPath, table.Name)
		if err != nil {
			return err
		}
		for _, required := range table.Columns {
			if !containsString(columns, required) {
				return driggerr.LedgerCorrupt(dbPath)
			}
		}
	}
	return nil
}

// repairSafeObjects restores any missing required meta row, view, or index.
// Meta repair is insert-only: a missing key gets its default value restored,
// while a present-but-wrong value is treated as drift and rejected during
// verification, never silently overwritten.
func repairSafeObjects(db *sql.DB, dbPath string) error {
	for _, meta := range requiredMetaKeys {
		if _, err := db.Exec(
			"INSERT OR IGNORE INTO internal_meta (key, value) VALUES (?, ?)",
			meta.Key, meta.Value,
		); err != nil {
			return mapEngineError(dbPath, err)
		}
	}

	for _, viewName := range requiredViewNames {
		exists, err := sqliteObjectExists(db, dbPath, "view", viewName)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		block := safeRepairStatement(viewName)
		if block == "" {
			return driggerr.LedgerInitFailed(dbPath, "missing canonical SQL for view repair")
		}
		if _, err := db.Exec(block); err != nil {
			return mapEngineError(dbPath, err)
		}
	}

	for _, indexName := range requiredIndexNames {
		exists, err := sqliteObjectExists(db, dbPath, "index", indexName)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		block := safeRepairStatement(indexName)
		if block == "" {
			return driggerr.LedgerInitFailed(dbPath, "missing canonical SQL for index repair")
		}
		if _, err := db.Exec(block); err != nil {
			return mapEngineError(dbPath, err)
		}
	}

	return nil
}

func verifyPostRepairObjects(db *sql.DB, dbPath string) error {
	var userVersion int64
	if err := db.QueryRow("PRAGMA user_version").Scan(&userVersion); err != nil {
		return mapEngineError(dbPath, err)
	}
	if userVersion != expectedUserVersion {
		return driggerr.LedgerCorrupt(dbPath)
	}

	for _, meta := range requiredMetaKeys {
		var value string
		err := db.QueryRow("SELECT value FROM internal_meta WHERE key = ? LIMIT 1", meta.Key).Scan(&value)
		if err == sql.ErrNoRows {
			return driggerr.LedgerCorrupt(dbPath)
		}
		if err != nil {
			return mapEngineError(dbPath, err)
		}
		if value != meta.Value {
			return driggerr.LedgerCorrupt(dbPath)
		}
	}

	for _, viewName := range requiredViewNames {
		exists, err := sqliteObjectExists(db, dbPath, "view", viewName)
		if err != nil {
			return err
		}
		if !exists {
			return driggerr.LedgerCorrupt(dbPath)
		}
	}
	if err := verifyCanonicalViewSQL(db, dbPath); err != nil {
		return err
	}

	for _, indexName := range requiredIndexNames {
		exists, err := sqliteObjectExists(db, dbPath, "index", indexName)
		if err != nil {
			return err
		}
		if !exists {
			return driggerr.LedgerCorrupt(dbPath)
		}
	}

	return nil
}

func verifyCanonicalViewSQL(db *sql.DB, dbPath string) error {
	for _, viewName := range requiredViewNames {
		var actualSQL string
		err := db.QueryRow(
			"SELECT sql FROM sqlite_master WHERE type = 'view' AND name = ? LIMIT 1",
			viewName,
		).Scan(&actualSQL)
		if err == sql.ErrNoRows {
			return driggerr.LedgerCorrupt(dbPath)
		}
		if err != nil {
			return mapEngineError(dbPath, err)
		}

		block := safeRepairStatement(viewName)
		if block == "" {
			return driggerr.LedgerInitFailed(dbPath, "missing canonical SQL for view verification")
		}
		expected, ok := extractCreateViewSQL(block)
		if !ok {
			return driggerr.LedgerInitFailed(dbPath, "missing canonical CREATE VIEW SQL for verification")
		}

		if normalizeSQL(actualSQL) != normalizeSQL(expected) {
			return driggerr.LedgerCorrupt(dbPath)
		}
	}
	return nil
}

func sqliteObjectExists(db *sql.DB, dbPath, objectType, name string) (bool, error) {
	var exists int
	err := db.QueryRow(
		"SELECT 1 FROM sqlite_master WHERE type = ? AND name = ? LIMIT 1",
		objectType, name,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapEngineError(dbPath, err)
	}
	return true, nil
}

// tableColumns runs PRAGMA table_info restricted to the compile-time core
// table allowlist, so the interpolated identifier never originates from
// anything other than a constant.
func tableColumns(db *sql.DB, dbPath, tableName string) ([]string, error) {
	if !isRequiredCoreTable(tableName) {
		return nil, driggerr.LedgerInitFailed(dbPath, "refused PRAGMA table inspection for non-core table")
	}

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, mapEngineError(dbPath, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, mapEngineError(dbPath, err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func containsString(haystack []string, needle string) bool {
	for _, value := range haystack {
		if value == needle {
			return true
		}
	}
	return false
}

func readMetaValue(db *sql.DB, dbPath, key, fallback string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM internal_meta WHERE key = ? LIMIT 1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", mapEngineError(dbPath, err)
	}
	return value, nil
}

func readDataRange(db *sql.DB, dbPath string) (contracts.DataRange, error) {
	var earliest, latest sql.NullString
	err := db.QueryRow("SELECT MIN(posted_at), MAX(posted_at) FROM internal_transactions").Scan(&earliest, &latest)
	if err != nil {
		return contracts.DataRange{}, mapEngineError(dbPath, err)
	}
	result := contracts.DataRange{}
	if earliest.Valid {
		result.Earliest = &earliest.String
	}
	if latest.Valid {
		result.Latest = &latest.String
	}
	return result, nil
}
