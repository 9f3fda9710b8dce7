package importer

import (
	"errors"
	"testing"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

func TestParseSourceAcceptsJSONArray(t *testing.T) {
	rows, err := ParseSource(`[
		{"account_key":"acct_1","posted_at":"2026-01-01","amount":-42.15,"currency":"USD","description":"X","external_id":"e1","unknown_key":"ignored"},
		{"account_key":"acct_1","posted_at":"2026-01-02","amount":"-17.89","currency":"usd","description":"Y"}
	]`)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Row != 1 || rows[1].Row != 2 {
		t.Errorf("rows must be 1-indexed in source order")
	}
	if rows[0].Amount == nil || *rows[0].Amount != "-42.15" {
		t.Errorf("numeric amount should pass through as its literal text, got %v", rows[0].Amount)
	}
	if rows[1].Amount == nil || *rows[1].Amount != "-17.89" {
		t.Errorf("string amount should pass through unchanged, got %v", rows[1].Amount)
	}
	if rows[0].ExternalID == nil || *rows[0].ExternalID != "e1" {
		t.Errorf("external_id lost in parsing")
	}
}

func TestParseSourceRejectsNDJSON(t *testing.T) {
	input := `{"account_key":"a","amount":1}
{"account_key":"b","amount":2}`
	_, err := ParseSource(input)
	assertErrorCode(t, err, "invalid_import_format")
}

func TestParseSourceRejectsTopLevelObject(t *testing.T) {
	_, err := ParseSource(`{"account_key":"a"}`)
	assertErrorCode(t, err, "invalid_import_format")
}

func TestParseSourceRejectsNonObjectArrayEntries(t *testing.T) {
	_, err := ParseSource(`[1, 2, 3]`)
	assertErrorCode(t, err, "invalid_argument")
}

func TestParseSourceRejectsUnknownFormat(t *testing.T) {
	_, err := ParseSource("just some text without commas")
	assertErrorCode(t, err, "invalid_import_format")
}

func TestParseSourceAcceptsCSVWithOptionalHeaders(t *testing.T) {
	rows, err := ParseSource("account_key,posted_at,amount,currency,description,merchant\nacct_1,2026-01-01,-5.00,USD,coffee,Blue Bottle\n")
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Merchant == nil || *rows[0].Merchant != "Blue Bottle" {
		t.Errorf("merchant column lost")
	}
	if rows[0].StatementID != nil {
		t.Errorf("absent optional column should be nil")
	}
}

func TestParseSourceRejectsCSVHeaderMismatch(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing required", "account_key,posted_at,amount,currency"},
		{"unknown header", "account_key,posted_at,amount,currency,description,wat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSource(tc.header + "\nacct,2026-01-01,-1,USD,x,y\n")
			assertErrorCode(t, err, "import_schema_mismatch")
		})
	}
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		t.Fatalf("expected *driggerr.Error, got %T: %v", err, err)
	}
	if driggsbyErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, driggsbyErr.Code, driggsbyErr.Message)
	}
}
