// Package contracts holds the wire-level response shapes returned by every
// Driggsby operation. They are plain JSON-tagged structs: the boundary
// between the internal engine and any renderer (CLI, embedding host) is
// encoding/json and nothing richer.
package contracts

type ViewColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type PublicView struct {
	Name    string       `json:"name"`
	Columns []ViewColumn `json:"columns"`
}

type DataRange struct {
	Earliest *string `json:"earliest"`
	Latest   *string `json:"latest"`
}

type DataRangeHint struct {
	Earliest *string `json:"earliest"`
	Latest   *string `json:"latest"`
}

type SchemaSummaryData struct {
	DBPath      string       `json:"db_path"`
	ReadonlyURI string       `json:"readonly_uri"`
	PublicViews []PublicView `json:"public_views"`
}

type SchemaViewData struct {
	ViewName string       `json:"view_name"`
	Columns  []ViewColumn `json:"columns"`
}

type SQLColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type SQLQueryData struct {
	Columns   []SQLColumn `json:"columns"`
	Rows      [][]any     `json:"rows"`
	RowCount  int64       `json:"row_count"`
	Truncated bool        `json:"truncated"`
	MaxRows   int64       `json:"max_rows"`
	Source    string      `json:"source"`
	SourceRef *string     `json:"source_ref,omitempty"`
}

type QueryContext struct {
	ReadonlyURI   string       `json:"readonly_uri"`
	DBPath        string       `json:"db_path"`
	SchemaVersion string       `json:"schema_version"`
	DataRange     DataRange    `json:"data_range"`
	PublicViews   []PublicView `json:"public_views"`
}

type ImportNextStep struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

type ImportAction struct {
	Label   string  `json:"label"`
	Command string  `json:"command"`
	Risk    *string `json:"risk,omitempty"`
}

type ImportCreateSummary struct {
	RowsRead    int64 `json:"rows_read"`
	RowsValid   int64 `json:"rows_valid"`
	RowsInvalid int64 `json:"rows_invalid"`
	Inserted    int64 `json:"inserted"`
}

type ImportSummary struct {
	RowsRead    int64 `json:"rows_read"`
	RowsValid   int64 `json:"rows_valid"`
	RowsInvalid int64 `json:"rows_invalid"`
	Inserted    int64 `json:"inserted"`
	Deduped     int64 `json:"deduped"`
}

type ImportDuplicateSummary struct {
	Total          int64 `json:"total"`
	Batch          int64 `json:"batch"`
	ExistingLedger int64 `json:"existing_ledger"`
}

type ImportDuplicateRow struct {
	SourceRowIndex          int64   `json:"source_row_index"`
	DedupeReason            string  `json:"dedupe_reason"`
	StatementID             *string `json:"statement_id"`
	AccountKey              string  `json:"account_key"`
	PostedAt                string  `json:"posted_at"`
	Amount                  float64 `json:"amount"`
	Currency                string  `json:"currency"`
	Description             string  `json:"description"`
	ExternalID              *string `json:"external_id"`
	MatchedBatchRowIndex    *int64  `json:"matched_batch_row_index"`
	MatchedTxnID            *string `json:"matched_txn_id"`
	MatchedImportID         *string `json:"matched_import_id"`
	MatchedTxnIDAtDedupe    *string `json:"matched_txn_id_at_dedupe,omitempty"`
	MatchedImportIDAtDedupe *string `json:"matched_import_id_at_dedupe,omitempty"`
}

type ImportDuplicatesPreview struct {
	Returned  int64                `json:"returned"`
	Truncated bool                 `json:"truncated"`
	Rows      []ImportDuplicateRow `json:"rows"`
}

type ImportIssue struct {
	Row         int64   `json:"row"`
	Field       string  `json:"field"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Expected    *string `json:"expected,omitempty"`
	Received    *string `json:"received,omitempty"`
}

type ImportWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ImportDuplicatesData struct {
	ImportID string               `json:"import_id"`
	Total    int64                `json:"total"`
	Rows     []ImportDuplicateRow `json:"rows"`
}

type ImportValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type ImportPropertyInventory struct {
	Property       string             `json:"property"`
	ExistingValues []string           `json:"existing_values"`
	ValueCounts    []ImportValueCount `json:"value_counts"`
	UniqueCount    int64              `json:"unique_count"`
	NullCount      int64              `json:"null_count"`
	TotalRows      int64              `json:"total_rows"`
}

type ImportKeyInventory struct {
	AccountKey  ImportPropertyInventory `json:"account_key"`
	AccountType ImportPropertyInventory `json:"account_type"`
	Currency    ImportPropertyInventory `json:"currency"`
	Merchant    ImportPropertyInventory `json:"merchant"`
	Category    ImportPropertyInventory `json:"category"`
}

type ImportSignProfile struct {
	AccountKey    string  `json:"account_key"`
	NegativeCount int64   `json:"negative_count"`
	PositiveCount int64   `json:"positive_count"`
	NegativeRatio float64 `json:"negative_ratio"`
	PositiveRatio float64 `json:"positive_ratio"`
	TotalCount    int64   `json:"total_count"`
}

type ImportDriftWarning struct {
	Code          string   `json:"code"`
	Severity      string   `json:"severity"`
	Property      string   `json:"property"`
	IncomingValue string   `json:"incoming_value"`
	Message       string   `json:"message"`
	Suggestions   []string `json:"suggestions"`
}

type ImportKeysUniqData struct {
	Property    *string                   `json:"property,omitempty"`
	Inventories []ImportPropertyInventory `json:"inventories"`
}

type ImportListAccountStat struct {
	AccountKey  string  `json:"account_key"`
	AccountType *string `json:"account_type,omitempty"`
	RowsRead    int64   `json:"rows_read"`
	Inserted    int64   `json:"inserted"`
	Deduped     int64   `json:"deduped"`
}

type ImportListItem struct {
	ImportID    string                  `json:"import_id"`
	Status      string                  `json:"status"`
	CreatedAt   string                  `json:"created_at"`
	CommittedAt *string                 `json:"committed_at,omitempty"`
	RevertedAt  *string                 `json:"reverted_at,omitempty"`
	RowsRead    int64                   `json:"rows_read"`
	RowsValid   int64                   `json:"rows_valid"`
	RowsInvalid int64                   `json:"rows_invalid"`
	Inserted    int64                   `json:"inserted"`
	Deduped     int64                   `json:"deduped"`
	SourceKind  *string                 `json:"source_kind,omitempty"`
	SourceRef   *string                 `json:"source_ref,omitempty"`
	Accounts    []ImportListAccountStat `json:"accounts"`
}

type AccountsSummary struct {
	AccountCount        int64   `json:"account_count"`
	TransactionCount    int64   `json:"transaction_count"`
	EarliestPostedAt    *string `json:"earliest_posted_at,omitempty"`
	LatestPostedAt      *string `json:"latest_posted_at,omitempty"`
	TypedAccountCount   int64   `json:"typed_account_count"`
	UntypedAccountCount int64   `json:"untyped_account_count"`
	NetAmount           float64 `json:"net_amount"`
}

type AccountRow struct {
	AccountKey    string  `json:"account_key"`
	AccountType   *string `json:"account_type,omitempty"`
	Currency      string  `json:"currency"`
	TxnCount      int64   `json:"txn_count"`
	FirstPostedAt *string `json:"first_posted_at,omitempty"`
	LastPostedAt  *string `json:"last_posted_at,omitempty"`
	NetAmount     float64 `json:"net_amount"`
}

type AccountsData struct {
	Summary AccountsSummary `json:"summary"`
	Rows    []AccountRow    `json:"rows"`
}

type ImportUndoSummary struct {
	RowsReverted int64 `json:"rows_reverted"`
	RowsPromoted int64 `json:"rows_promoted"`
}

type ImportUndoData struct {
	ImportID              string            `json:"import_id"`
	Message               string            `json:"message"`
	Summary               ImportUndoSummary `json:"summary"`
	IntelligenceRefreshed bool              `json:"intelligence_refreshed"`
}

type AnomalyRow struct {
	TxnID      string  `json:"txn_id"`
	AccountKey string  `json:"account_key"`
	PostedAt   string  `json:"posted_at"`
	Merchant   string  `json:"merchant"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	ReasonCode string  `json:"reason_code"`
	Reason     string  `json:"reason"`
	Score      float64 `json:"score"`
	Severity   string  `json:"severity"`
}

type AnomaliesData struct {
	PolicyVersion string        `json:"policy_version"`
	From          *string       `json:"from"`
	To            *string       `json:"to"`
	Rows          []AnomalyRow  `json:"rows"`
	DataRangeHint DataRangeHint `json:"data_range_hint"`
}

type RecurringRow struct {
	GroupKey        string  `json:"group_key"`
	AccountKey      string  `json:"account_key"`
	Merchant        string  `json:"merchant"`
	Cadence         string  `json:"cadence"`
	TypicalAmount   float64 `json:"typical_amount"`
	Currency        string  `json:"currency"`
	LastSeenAt      string  `json:"last_seen_at"`
	NextExpectedAt  *string `json:"next_expected_at,omitempty"`
	OccurrenceCount int64   `json:"occurrence_count"`
	Score           float64 `json:"score"`
	IsActive        bool    `json:"is_active"`
}

type RecurringData struct {
	PolicyVersion string         `json:"policy_version"`
	From          *string        `json:"from"`
	To            *string        `json:"to"`
	Rows          []RecurringRow `json:"rows"`
	DataRangeHint DataRangeHint  `json:"data_range_hint"`
}

type IntelligenceRefreshData struct {
	RecurringRows int64  `json:"recurring_rows"`
	AnomalyRows   int64  `json:"anomaly_rows"`
	CompletedAt   string `json:"completed_at"`
}

type ImportData struct {
	DryRun            bool                     `json:"dry_run"`
	Path              *string                  `json:"path"`
	ImportID          *string                  `json:"import_id,omitempty"`
	Message           string                   `json:"message"`
	Summary           ImportCreateSummary      `json:"summary"`
	DuplicateSummary  ImportDuplicateSummary   `json:"duplicate_summary"`
	DuplicatesPreview ImportDuplicatesPreview  `json:"duplicates_preview"`
	NextStep          ImportNextStep           `json:"next_step"`
	OtherActions      []ImportAction           `json:"other_actions"`
	Issues            []ImportIssue            `json:"issues"`
	SourceUsed        *string                  `json:"source_used"`
	SourceIgnored     *string                  `json:"source_ignored"`
	SourceConflict    bool                     `json:"source_conflict"`
	Warnings          []ImportWarning          `json:"warnings"`
	KeyInventory      *ImportKeyInventory      `json:"key_inventory,omitempty"`
	SignProfiles      *[]ImportSignProfile     `json:"sign_profiles,omitempty"`
	DriftWarnings     *[]ImportDriftWarning    `json:"drift_warnings,omitempty"`
	LedgerAccounts    *AccountsData            `json:"ledger_accounts,omitempty"`
	QueryContext      QueryContext             `json:"query_context"`
}
