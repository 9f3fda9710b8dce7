package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

// ValidatedRows is the validator's output: the canonical rows, the batch
// summary, and an index of which rows carried which (account, statement)
// pair, used by the statement-reuse check.
type ValidatedRows struct {
	Rows            []CanonicalTransaction
	Summary         contracts.ImportSummary
	StatementIDRows map[statementKey][]int64
}

type statementKey struct {
	AccountKey  string
	StatementID string
}

// ValidateRows applies every per-row rule from the import contract and
// either returns the canonical rows or fails with the full issue list. The
// batch is all-or-nothing: one bad row invalidates the whole import.
func ValidateRows(parsedRows []ParsedRow, statementScopeID string) (*ValidatedRows, error) {
	totalRows := len(parsedRows)
	var rows []CanonicalTransaction
	var issues []contracts.ImportIssue
	statementIDRows := make(map[statementKey][]int64)

	for _, raw := range parsedRows {
		var rowIssues []contracts.ImportIssue

		accountKey := validateRequiredString(
			raw.Row, "account_key", raw.AccountKey, &rowIssues,
			"account_key must be present and non-empty.",
		)
		statementID := normalizeOptional(raw.StatementID)
		accountType := normalizeOptional(raw.AccountType)
		postedAt := validatePostedAt(raw.Row, raw.PostedAt, &rowIssues)
		amount := validateAmount(raw.Row, raw.Amount, &rowIssues)
		currency := validateCurrency(raw.Row, raw.Currency, &rowIssues)
		description := validateRequiredString(
			raw.Row, "description", raw.Description, &rowIssues,
			"description must be present and non-empty.",
		)
		externalID := normalizeOptional(raw.ExternalID)
		merchant := normalizeOptional(raw.Merchant)
		category := normalizeOptional(raw.Category)

		if len(rowIssues) > 0 {
			issues = append(issues, rowIssues...)
			continue
		}

		if statementID != nil {
			key := statementKey{AccountKey: *accountKey, StatementID: *statementID}
			statementIDRows[key] = append(statementIDRows[key], raw.Row)
		}
		rows = append(rows, CanonicalTransaction{
			StatementID:   statementID,
			DedupeScopeID: resolveDedupeScopeID(*accountKey, statementID, statementScopeID),
			AccountKey:    *accountKey,
			AccountType:   accountType,
			PostedAt:      *postedAt,
			Amount:        *amount,
			Currency:      *currency,
			Description:   *description,
			ExternalID:    externalID,
			Merchant:      merchant,
			Category:      category,
		})
	}

	invalidRows := make(map[int64]struct{})
	for _, issue := range issues {
		invalidRows[issue.Row] = struct{}{}
	}

	summary := contracts.ImportSummary{
		RowsRead:    int64(totalRows),
		RowsValid:   int64(len(rows)),
		RowsInvalid: int64(len(invalidRows)),
	}

	if len(issues) > 0 {
		return nil, driggerr.ImportValidationFailed(summary.RowsInvalid, summary, issues)
	}

	return &ValidatedRows{
		Rows:            rows,
		Summary:         summary,
		StatementIDRows: statementIDRows,
	}, nil
}

// resolveDedupeScopeID tags a row with its duplicate-detection scope: rows
// from the same bank statement share a `stmt|` scope, rows without a
// statement share a per-import-call `gen|` scope. Equal rows inside one
// scope are intentional repeats, not duplicates.
func resolveDedupeScopeID(accountKey string, statementID *string, statementScopeID string) string {
	if statementID != nil {
		return fmt.Sprintf("stmt|%s|%s", accountKey, *statementID)
	}
	return fmt.Sprintf("gen|%s|%s", statementScopeID, accountKey)
}

func validateRequiredString(row int64, field string, value *string, issues *[]contracts.ImportIssue, description string) *string {
	normalized := normalizeOptional(value)
	if normalized == nil {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       field,
			Code:        "missing_required_field",
			Description: description,
			Expected:    stringPtr("non-empty string"),
			Received:    stringPtr(""),
		})
	}
	return normalized
}

func validatePostedAt(row int64, value *string, issues *[]contracts.ImportIssue) *string {
	normalized := normalizeOptional(value)
	if normalized == nil {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "posted_at",
			Code:        "missing_required_field",
			Description: "posted_at must be present and non-empty.",
			Expected:    stringPtr("YYYY-MM-DD"),
			Received:    stringPtr(""),
		})
		return nil
	}

	if !isRealCalendarDate(*normalized) {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "posted_at",
			Code:        "invalid_date",
			Description: fmt.Sprintf("posted_at must be YYYY-MM-DD; got %q", *normalized),
			Expected:    stringPtr("YYYY-MM-DD"),
			Received:    normalized,
		})
		return nil
	}

	return normalized
}

// isRealCalendarDate accepts exactly `YYYY-MM-DD` where the value is a real
// Gregorian calendar date, leap years included. time.Parse rejects
// out-of-range days like 2026-02-30; the round-trip re-format is a second
// check that the parsed date reproduces the input exactly.
func isRealCalendarDate(value string) bool {
	if len(value) != 10 || value[4] != '-' || value[7] != '-' {
		return false
	}
	for _, index := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if value[index] < '0' || value[index] > '9' {
			return false
		}
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return false
	}
	return parsed.Format("2006-01-02") == value
}

func validateAmount(row int64, value *string, issues *[]contracts.ImportIssue) *decimal.Decimal {
	normalized := normalizeOptional(value)
	if normalized == nil {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "amount",
			Code:        "missing_required_field",
			Description: "amount must be present and non-empty.",
			Expected:    stringPtr("number (e.g. -42.15)"),
			Received:    stringPtr(""),
		})
		return nil
	}

	parsed, err := decimal.NewFromString(*normalized)
	if err != nil {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "amount",
			Code:        "invalid_number",
			Description: fmt.Sprintf("amount must be numeric; got %q", *normalized),
			Expected:    stringPtr("number (e.g. -42.15)"),
			Received:    normalized,
		})
		return nil
	}

	if scale := fractionalDigits(parsed); scale > 2 {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "amount",
			Code:        "invalid_amount_scale",
			Description: fmt.Sprintf("amount must use at most 2 decimal places; got %d decimal places.", scale),
			Expected:    stringPtr("number with <= 2 decimal places (e.g. -42.15)"),
			Received:    normalized,
		})
		return nil
	}

	return &parsed
}

// fractionalDigits counts base-10 fractional digits after exponent
// normalization, so `1e-3` counts as 3 and `1.20e1` (which is 12) counts
// as 0. The
// decimal parser has already folded any scientific-notation exponent into
// its base-10 exponent; trailing zeros in the mantissa still count until a
// normalization pass strips them, which is what the reduction below does.
func fractionalDigits(value decimal.Decimal) int32 {
	reduced, err := decimal.NewFromString(value.String())
	if err != nil {
		return -value.Exponent()
	}
	if reduced.Exponent() >= 0 {
		return 0
	}
	return -reduced.Exponent()
}

func validateCurrency(row int64, value *string, issues *[]contracts.ImportIssue) *string {
	normalized := normalizeOptional(value)
	if normalized == nil {
		*issues = append(*issues, contracts.ImportIssue{
			Row:         row,
			Field:       "currency",
			Code:        "missing_required_field",
			Description: "currency must be present and non-empty.",
			Expected:    stringPtr("non-empty string"),
			Received:    stringPtr(""),
		})
		return nil
	}
	uppercased := strings.ToUpper(*normalized)
	return &uppercased
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringPtr(value string) *string {
	return &value
}
