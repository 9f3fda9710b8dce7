package importer

import (
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

// ParsedRow is one raw input row before validation. Every field is a
// pointer because both input formats allow any field to be absent; the
// validator decides what absence means.
type ParsedRow struct {
	Row         int64
	StatementID *string
	AccountKey  *string
	AccountType *string
	PostedAt    *string
	Amount      *string
	Currency    *string
	Description *string
	ExternalID  *string
	Merchant    *string
	Category    *string
}

var requiredImportFields = []string{
	"account_key", "posted_at", "amount", "currency", "description",
}

var optionalImportFields = []string{
	"statement_id", "external_id", "merchant", "category", "account_type",
}

// RequiredImportFieldNames returns the field names every import row must
// carry.
func RequiredImportFieldNames() []string {
	return append([]string{}, requiredImportFields...)
}

// OptionalImportFieldNames returns the field names an import row may carry.
func OptionalImportFieldNames() []string {
	return append([]string{}, optionalImportFields...)
}

// ParseSource sniffs the input format and parses it into raw rows. Exactly
// two shapes are accepted: a JSON array of objects, and delimited text with
// a header row. NDJSON is probed for and rejected explicitly so the error
// names the format the caller actually sent.
func ParseSource(content string) ([]ParsedRow, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, invalidInputError("Import source is empty.")
	}

	if looksLikeNDJSON(trimmed) {
		return nil, driggerr.InvalidImportFormat(
			"NDJSON is not supported in this phase. Provide a JSON array or CSV.",
			"ndjson",
		)
	}

	if strings.HasPrefix(trimmed, "[") {
		return parseJSONArray(trimmed)
	}

	if looksLikeCSV(trimmed) {
		return parseCSV(trimmed)
	}

	if json.Valid([]byte(trimmed)) {
		return nil, driggerr.InvalidImportFormat(
			"JSON input must be a top-level array of transaction objects.",
			"json_non_array",
		)
	}

	return nil, driggerr.InvalidImportFormat(
		"Unsupported import format. Provide a JSON array or CSV with headers.",
		"unknown",
	)
}

func parseJSONArray(content string) ([]ParsedRow, error) {
	var items []json.RawMessage
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&items); err != nil {
		return nil, invalidInputError("Invalid JSON input. Provide a valid JSON array.")
	}

	rows := make([]ParsedRow, 0, len(items))
	for index, item := range items {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(item, &object); err != nil {
			return nil, invalidInputError(
				"JSON array entries must all be objects with transaction fields.",
			)
		}

		rows = append(rows, ParsedRow{
			Row:         int64(index) + 1,
			StatementID: readOptionalString(object["statement_id"]),
			AccountKey:  readOptionalString(object["account_key"]),
			AccountType: readOptionalString(object["account_type"]),
			PostedAt:    readOptionalString(object["posted_at"]),
			Amount:      readOptionalString(object["amount"]),
			Currency:    readOptionalString(object["currency"]),
			Description: readOptionalString(object["description"]),
			ExternalID:  readOptionalString(object["external_id"]),
			Merchant:    readOptionalString(object["merchant"]),
			Category:    readOptionalString(object["category"]),
		})
	}

	return rows, nil
}

func parseCSV(content string) ([]ParsedRow, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, invalidInputError("CSV rows are malformed or not UTF-8.")
	}
	if len(records) == 0 {
		return nil, invalidInputError("CSV header row is missing or unreadable.")
	}

	headers := make([]string, 0, len(records[0]))
	for _, value := range records[0] {
		headers = append(headers, strings.TrimSpace(value))
	}

	if !headersAreValid(headers) {
		return nil, driggerr.ImportSchemaMismatch(
			RequiredImportFieldNames(), OptionalImportFieldNames(), headers,
		)
	}

	indexByName := make(map[string]int, len(headers))
	for index, name := range headers {
		indexByName[name] = index
	}

	rows := make([]ParsedRow, 0, len(records)-1)
	for rowIndex, record := range records[1:] {
		rows = append(rows, ParsedRow{
			Row:         int64(rowIndex) + 1,
			StatementID: csvValueFor(record, indexByName, "statement_id"),
			AccountKey:  csvValueFor(record, indexByName, "account_key"),
			AccountType: csvValueFor(record, indexByName, "account_type"),
			PostedAt:    csvValueFor(record, indexByName, "posted_at"),
			Amount:      csvValueFor(record, indexByName, "amount"),
			Currency:    csvValueFor(record, indexByName, "currency"),
			Description: csvValueFor(record, indexByName, "description"),
			ExternalID:  csvValueFor(record, indexByName, "external_id"),
			Merchant:    csvValueFor(record, indexByName, "merchant"),
			Category:    csvValueFor(record, indexByName, "category"),
		})
	}

	return rows, nil
}

func csvValueFor(record []string, indexByName map[string]int, fieldName string) *string {
	index, ok := indexByName[fieldName]
	if !ok || index >= len(record) {
		return nil
	}
	value := record[index]
	return &value
}

// readOptionalString accepts a string, number, bool, or null JSON value and
// renders it as an optional string. Numbers come through json.Number, so
// the decimal text survives exactly as written in the source.
func readOptionalString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return nil
	}

	var stringValue string
	if err := json.Unmarshal(raw, &stringValue); err == nil {
		return &stringValue
	}

	// Non-string scalar (number, bool): keep its literal JSON text.
	value := trimmed
	return &value
}

// looksLikeNDJSON reports whether the content is at least two non-empty
// lines that each parse as a standalone JSON object.
func looksLikeNDJSON(content string) bool {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) < 2 {
		return false
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "{") {
			return false
		}
		var object map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &object); err != nil {
			return false
		}
	}
	return true
}

func looksLikeCSV(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.Contains(line, ",")
	}
	return false
}

func headersAreValid(actualHeaders []string) bool {
	for _, required := range requiredImportFields {
		found := false
		for _, header := range actualHeaders {
			if header == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, header := range actualHeaders {
		if !isKnownImportField(header) {
			return false
		}
	}
	return true
}

func isKnownImportField(name string) bool {
	for _, field := range requiredImportFields {
		if field == name {
			return true
		}
	}
	for _, field := range optionalImportFields {
		if field == name {
			return true
		}
	}
	return false
}
