package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

func parsedRow(fields map[string]string) ParsedRow {
	row := ParsedRow{Row: 1}
	assign := func(key string, target **string) {
		if value, ok := fields[key]; ok {
			copied := value
			*target = &copied
		}
	}
	assign("statement_id", &row.StatementID)
	assign("account_key", &row.AccountKey)
	assign("account_type", &row.AccountType)
	assign("posted_at", &row.PostedAt)
	assign("amount", &row.Amount)
	assign("currency", &row.Currency)
	assign("description", &row.Description)
	assign("external_id", &row.ExternalID)
	assign("merchant", &row.Merchant)
	assign("category", &row.Category)
	return row
}

func validRowFields() map[string]string {
	return map[string]string{
		"account_key": "acct_1",
		"posted_at":   "2026-01-01",
		"amount":      "-42.15",
		"currency":    "usd",
		"description": "coffee",
	}
}

func TestValidateRowsAcceptsValidRow(t *testing.T) {
	validated, err := ValidateRows([]ParsedRow{parsedRow(validRowFields())}, "scope_1")
	if err != nil {
		t.Fatalf("ValidateRows: %v", err)
	}
	if validated.Summary.RowsValid != 1 || validated.Summary.RowsInvalid != 0 {
		t.Fatalf("unexpected summary: %+v", validated.Summary)
	}
	row := validated.Rows[0]
	if row.Currency != "USD" {
		t.Errorf("currency must be uppercased, got %s", row.Currency)
	}
	if row.Amount.String() != "-42.15" {
		t.Errorf("amount text not preserved, got %s", row.Amount.String())
	}
	if row.DedupeScopeID != "gen|scope_1|acct_1" {
		t.Errorf("unexpected generated scope id: %s", row.DedupeScopeID)
	}
}

func TestValidateRowsStatementScope(t *testing.T) {
	fields := validRowFields()
	fields["statement_id"] = "A_2026-01-31"
	validated, err := ValidateRows([]ParsedRow{parsedRow(fields)}, "scope_1")
	if err != nil {
		t.Fatalf("ValidateRows: %v", err)
	}
	if validated.Rows[0].DedupeScopeID != "stmt|acct_1|A_2026-01-31" {
		t.Errorf("unexpected statement scope id: %s", validated.Rows[0].DedupeScopeID)
	}
}

func TestValidateRowsAmountScale(t *testing.T) {
	cases := []struct {
		amount string
		code   string
	}{
		{"-12.34", ""},
		{"-12.345", "invalid_amount_scale"},
		{"1e-3", "invalid_amount_scale"},
		{"1.20e1", ""},
		{".1234", "invalid_amount_scale"},
		{"100", ""},
		{"not-a-number", "invalid_number"},
	}

	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			fields := validRowFields()
			fields["amount"] = tc.amount
			_, err := ValidateRows([]ParsedRow{parsedRow(fields)}, "scope_1")
			if tc.code == "" {
				if err != nil {
					t.Fatalf("expected %q to validate, got %v", tc.amount, err)
				}
				return
			}
			assertIssueCode(t, err, tc.code)
		})
	}
}

func TestValidateRowsPostedAt(t *testing.T) {
	cases := []struct {
		date  string
		valid bool
	}{
		{"2026-01-31", true},
		{"2024-02-29", true},  // leap year
		{"2026-02-29", false}, // not a leap year
		{"2026-02-30", false},
		{"2026-13-01", false},
		{"2026-00-10", false},
		{"2026-1-01", false},
		{"26-01-01", false},
		{"2026/01/01", false},
	}

	for _, tc := range cases {
		t.Run(tc.date, func(t *testing.T) {
			fields := validRowFields()
			fields["posted_at"] = tc.date
			_, err := ValidateRows([]ParsedRow{parsedRow(fields)}, "scope_1")
			if tc.valid && err != nil {
				t.Fatalf("expected %q to validate, got %v", tc.date, err)
			}
			if !tc.valid {
				assertIssueCode(t, err, "invalid_date")
			}
		})
	}
}

func TestValidateRowsMissingRequiredFields(t *testing.T) {
	for _, field := range []string{"account_key", "posted_at", "amount", "currency", "description"} {
		t.Run(field, func(t *testing.T) {
			fields := validRowFields()
			delete(fields, field)
			_, err := ValidateRows([]ParsedRow{parsedRow(fields)}, "scope_1")
			assertIssueCode(t, err, "missing_required_field")
		})
	}
}

func TestValidateRowsWhitespaceOnlyIsMissing(t *testing.T) {
	fields := validRowFields()
	fields["description"] = "   "
	_, err := ValidateRows([]ParsedRow{parsedRow(fields)}, "scope_1")
	assertIssueCode(t, err, "missing_required_field")
}

func TestValidateRowsCountsDistinctInvalidRows(t *testing.T) {
	bad := parsedRow(map[string]string{"posted_at": "nope", "amount": "xyz"})
	good := parsedRow(validRowFields())
	good.Row = 2
	_, err := ValidateRows([]ParsedRow{bad, good}, "scope_1")

	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// One row with several issues still counts once.
	if !strings.Contains(driggsbyErr.Message, "1 rows need fixes") {
		t.Errorf("unexpected message: %s", driggsbyErr.Message)
	}
}

func assertIssueCode(t *testing.T, err error, code string) {
	t.Helper()
	for _, issue := range validationIssues(t, err) {
		if issue.Code == code {
			return
		}
	}
	t.Fatalf("expected issue code %s, not found", code)
}

func validationIssues(t *testing.T, err error) []contracts.ImportIssue {
	t.Helper()
	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if driggsbyErr.Code != "import_validation_failed" {
		t.Fatalf("expected import_validation_failed, got %s", driggsbyErr.Code)
	}
	data, ok := driggsbyErr.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected structured error data, got %T", driggsbyErr.Data)
	}
	issues, ok := data["issues"].([]contracts.ImportIssue)
	if !ok {
		t.Fatalf("expected issue list in error data, got %T", data["issues"])
	}
	return issues
}
