package store

import "strings"

// schema is the canonical, idempotent bootstrap for the ledger database. It
// is applied in full on every `EnsureInitialized` call; every CREATE is
// `IF NOT EXISTS` and every seed row is `INSERT OR IGNORE`, so re-running it
// against an already-initialized ledger is a no-op. Views and indexes are wrapped in
// `-- driggsby:safe_repair:start:<name>` / `:end:<name>` comment blocks so a
// ledger that lost a view or index (but kept its tables and data) can be
// repaired in place without a destructive rebuild.
const schema = `
CREATE TABLE IF NOT EXISTS internal_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS internal_import_runs (
    import_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    committed_at TEXT,
    reverted_at TEXT,
    rows_read INTEGER NOT NULL DEFAULT 0,
    rows_valid INTEGER NOT NULL DEFAULT 0,
    rows_invalid INTEGER NOT NULL DEFAULT 0,
    inserted INTEGER NOT NULL DEFAULT 0,
    deduped INTEGER NOT NULL DEFAULT 0,
    source_kind TEXT,
    source_ref TEXT
);

CREATE TABLE IF NOT EXISTS internal_accounts (
    account_key TEXT PRIMARY KEY,
    account_type TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS internal_transactions (
    txn_id TEXT PRIMARY KEY,
    import_id TEXT NOT NULL REFERENCES internal_import_runs(import_id),
    statement_id TEXT,
    dedupe_scope_id TEXT NOT NULL,
    account_key TEXT NOT NULL,
    posted_at TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    description TEXT NOT NULL,
    external_id TEXT,
    merchant TEXT,
    category TEXT
);

CREATE TABLE IF NOT EXISTS internal_import_account_stats (
    import_id TEXT NOT NULL REFERENCES internal_import_runs(import_id),
    account_key TEXT NOT NULL,
    rows_read INTEGER NOT NULL DEFAULT 0,
    inserted INTEGER NOT NULL DEFAULT 0,
    deduped INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (import_id, account_key)
);

CREATE TABLE IF NOT EXISTS internal_transaction_dedupe_candidates (
    candidate_id TEXT PRIMARY KEY,
    import_id TEXT NOT NULL REFERENCES internal_import_runs(import_id),
    dedupe_key TEXT NOT NULL,
    statement_id TEXT,
    dedupe_scope_id TEXT NOT NULL,
    account_key TEXT NOT NULL,
    posted_at TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    description TEXT NOT NULL,
    external_id TEXT,
    merchant TEXT,
    category TEXT,
    source_row_index INTEGER NOT NULL,
    dedupe_reason TEXT NOT NULL,
    matched_txn_id TEXT,
    matched_import_id TEXT,
    matched_batch_row_index INTEGER,
    created_at TEXT NOT NULL,
    promoted_txn_id TEXT
);

CREATE TABLE IF NOT EXISTS internal_recurring_materialized (
    group_key TEXT PRIMARY KEY,
    account_key TEXT NOT NULL,
    merchant TEXT NOT NULL,
    cadence TEXT NOT NULL,
    typical_amount REAL NOT NULL,
    currency TEXT NOT NULL,
    last_seen_at TEXT NOT NULL,
    next_expected_at TEXT,
    occurrence_count INTEGER NOT NULL,
    score REAL NOT NULL,
    is_active INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS internal_anomalies_materialized (
    txn_id TEXT PRIMARY KEY,
    account_key TEXT NOT NULL,
    posted_at TEXT NOT NULL,
    merchant TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    reason_code TEXT NOT NULL,
    reason TEXT NOT NULL,
    score REAL NOT NULL,
    severity TEXT NOT NULL
);

INSERT OR IGNORE INTO internal_meta (key, value) VALUES ('schema_version', 'v1');
INSERT OR IGNORE INTO internal_meta (key, value) VALUES ('public_views_version', 'v1');
INSERT OR IGNORE INTO internal_meta (key, value) VALUES ('import_contract_version', 'v1');

-- driggsby:safe_repair:start:idx_internal_transactions_import_id
CREATE INDEX IF NOT EXISTS idx_internal_transactions_import_id
    ON internal_transactions(import_id);
-- driggsby:safe_repair:end:idx_internal_transactions_import_id

-- driggsby:safe_repair:start:idx_internal_transactions_account_posted_at
CREATE INDEX IF NOT EXISTS idx_internal_transactions_account_posted_at
    ON internal_transactions(account_key, posted_at);
-- driggsby:safe_repair:end:idx_internal_transactions_account_posted_at

-- driggsby:safe_repair:start:idx_internal_transactions_account_external_id
CREATE INDEX IF NOT EXISTS idx_internal_transactions_account_external_id
    ON internal_transactions(account_key, external_id);
-- driggsby:safe_repair:end:idx_internal_transactions_account_external_id

-- driggsby:safe_repair:start:idx_internal_transactions_fallback_dedupe
CREATE INDEX IF NOT EXISTS idx_internal_transactions_fallback_dedupe
    ON internal_transactions(dedupe_scope_id, posted_at, amount, currency, description);
-- driggsby:safe_repair:end:idx_internal_transactions_fallback_dedupe

-- driggsby:safe_repair:start:idx_internal_import_runs_created_at_desc
CREATE INDEX IF NOT EXISTS idx_internal_import_runs_created_at_desc
    ON internal_import_runs(created_at DESC);
-- driggsby:safe_repair:end:idx_internal_import_runs_created_at_desc

-- driggsby:safe_repair:start:idx_internal_transaction_dedupe_candidates_dedupe_key
CREATE INDEX IF NOT EXISTS idx_internal_transaction_dedupe_candidates_dedupe_key
    ON internal_transaction_dedupe_candidates(dedupe_key);
-- driggsby:safe_repair:end:idx_internal_transaction_dedupe_candidates_dedupe_key

-- driggsby:safe_repair:start:idx_internal_transaction_dedupe_candidates_import_id
CREATE INDEX IF NOT EXISTS idx_internal_transaction_dedupe_candidates_import_id
    ON internal_transaction_dedupe_candidates(import_id);
-- driggsby:safe_repair:end:idx_internal_transaction_dedupe_candidates_import_id

-- driggsby:safe_repair:start:v1_transactions
CREATE VIEW IF NOT EXISTS v1_transactions AS
SELECT
    txn_id,
    import_id,
    statement_id,
    account_key,
    posted_at,
    amount,
    currency,
    description,
    external_id,
    merchant,
    category
FROM internal_transactions;
-- driggsby:safe_repair:end:v1_transactions

-- driggsby:safe_repair:start:v1_accounts
CREATE VIEW IF NOT EXISTS v1_accounts AS
SELECT
    account_key,
    account_type,
    created_at,
    updated_at
FROM internal_accounts;
-- driggsby:safe_repair:end:v1_accounts

-- driggsby:safe_repair:start:v1_imports
CREATE VIEW IF NOT EXISTS v1_imports AS
SELECT
    import_id,
    status,
    created_at,
    committed_at,
    reverted_at,
    rows_read,
    rows_valid,
    rows_invalid,
    inserted,
    deduped,
    source_kind,
    source_ref
FROM internal_import_runs;
-- driggsby:safe_repair:end:v1_imports

-- driggsby:safe_repair:start:v1_recurring
CREATE VIEW IF NOT EXISTS v1_recurring AS
SELECT
    merchant,
    typical_amount,
    cadence
FROM internal_recurring_materialized;
-- driggsby:safe_repair:end:v1_recurring

-- driggsby:safe_repair:start:v1_anomalies
CREATE VIEW IF NOT EXISTS v1_anomalies AS
SELECT
    posted_at,
    amount,
    reason
FROM internal_anomalies_materialized;
-- driggsby:safe_repair:end:v1_anomalies
`

// requiredCoreTables maps every core table to the columns that must exist on
// it. Table inspection via PRAGMA table_info is restricted to this allowlist
// so the identifier is never interpolated from anything but a compile-time
// constant.
var requiredCoreTables = []struct {
	Name    string
	Columns []string
}{
	{"internal_meta", []string{"key", "value"}},
	{"internal_import_runs", []string{
		"import_id", "status", "created_at", "committed_at", "reverted_at",
		"rows_read", "rows_valid", "rows_invalid", "inserted", "deduped",
		"source_kind", "source_ref",
	}},
	{"internal_transactions", []string{
		"txn_id", "import_id", "statement_id", "dedupe_scope_id", "account_key",
		"posted_at", "amount", "currency", "description", "external_id",
		"merchant", "category",
	}},
	{"internal_accounts", []string{"account_key", "account_type", "created_at", "updated_at"}},
	{"internal_import_account_stats", []string{
		"import_id", "account_key", "rows_read", "inserted", "deduped",
	}},
	{"internal_transaction_dedupe_candidates", []string{
		"candidate_id", "import_id", "dedupe_key", "statement_id", "dedupe_scope_id",
		"account_key", "posted_at", "amount", "currency", "description",
		"external_id", "merchant", "category", "source_row_index", "dedupe_reason",
		"matched_txn_id", "matched_import_id", "matched_batch_row_index",
		"created_at", "promoted_txn_id",
	}},
	{"internal_recurring_materialized", []string{"merchant", "typical_amount", "cadence"}},
	{"internal_anomalies_materialized", []string{"posted_at", "amount", "reason"}},
}

const expectedUserVersion = 5

// requiredViewNames is the public SQL view contract.
var requiredViewNames = []string{
	"v1_transactions",
	"v1_accounts",
	"v1_imports",
	"v1_recurring",
	"v1_anomalies",
}

var requiredIndexNames = []string{
	"idx_internal_transactions_import_id",
	"idx_internal_transactions_account_posted_at",
	"idx_internal_transactions_account_external_id",
	"idx_internal_transactions_fallback_dedupe",
	"idx_internal_import_runs_created_at_desc",
	"idx_internal_transaction_dedupe_candidates_dedupe_key",
	"idx_internal_transaction_dedupe_candidates_import_id",
}

type metaDefault struct {
	Key   string
	Value string
}

var requiredMetaKeys = []metaDefault{
	{"schema_version", "v1"},
	{"public_views_version", "v1"},
	{"import_contract_version", "v1"},
}

func isRequiredCoreTable(name string) bool {
	for _, table := range requiredCoreTables {
		if table.Name == name {
			return true
		}
	}
	return false
}

// safeRepairStatement returns the repair SQL block for the given view or
// index name, or "" if no block exists.
func safeRepairStatement(name string) string {
	return parseSafeRepairStatements()[name]
}

// parseSafeRepairStatements extracts every
// `-- driggsby:safe_repair:start:<name>` ... `:end:<name>` block from the
// embedded schema. Keeping the repair SQL inside the schema string means the
// self-heal source can never drift from the bootstrap source.
func parseSafeRepairStatements() map[string]string {
	blocks := make(map[string]string)
	var activeName string
	var activeSQL strings.Builder
	active := false

	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)

		if name, ok := strings.CutPrefix(trimmed, "-- driggsby:safe_repair:start:"); ok {
			activeName = name
			activeSQL.Reset()
			active = true
			continue
		}

		if name, ok := strings.CutPrefix(trimmed, "-- driggsby:safe_repair:end:"); ok {
			if active && activeName == name {
				blocks[name] = strings.TrimSpace(activeSQL.String())
			}
			active = false
			activeName = ""
			activeSQL.Reset()
			continue
		}

		if active {
			activeSQL.WriteString(line)
			activeSQL.WriteString("\n")
		}
	}

	return blocks
}

// extractCreateViewSQL pulls the single `CREATE VIEW ...` statement out of a
// safe-repair block (which may also carry trailing comments/whitespace).
func extractCreateViewSQL(block string) (string, bool) {
	for _, statement := range strings.Split(block, ";") {
		trimmed := strings.TrimSpace(statement)
		if strings.HasPrefix(strings.ToLower(trimmed), "create view ") {
			return trimmed, true
		}
	}
	return "", false
}

// normalizeSQL strips whitespace and trailing semicolons, lowercases the
// remainder, and drops a leading `IF NOT EXISTS` clause (SQLite leaves it out
// of the SQL it stores in sqlite_master), so two functionally identical
// CREATE VIEW statements compare equal regardless of formatting.
func normalizeSQL(sql string) string {
	var builder strings.Builder
	for _, r := range sql {
		if r == ';' || r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		builder.WriteRune(r)
	}
	normalized := strings.ToLower(builder.String())
	if rest, ok := strings.CutPrefix(normalized, "createviewifnotexists"); ok {
		return "createview" + rest
	}
	return normalized
}
