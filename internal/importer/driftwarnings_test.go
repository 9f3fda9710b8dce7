package importer

import (
	"testing"

	"github.com/mzxrai/driggsby/internal/contracts"
)

func propertyInventory(property string, values []string, totalRows int64) contracts.ImportPropertyInventory {
	return contracts.ImportPropertyInventory{
		Property:       property,
		ExistingValues: values,
		ValueCounts:    []contracts.ImportValueCount{},
		UniqueCount:    int64(len(values)),
		TotalRows:      totalRows,
	}
}

func baselineInventory() *contracts.ImportKeyInventory {
	return &contracts.ImportKeyInventory{
		AccountKey:  propertyInventory("account_key", []string{"chase_checking_1234"}, 25),
		AccountType: propertyInventory("account_type", []string{"checking"}, 25),
		Currency:    propertyInventory("currency", []string{"USD"}, 25),
		Merchant:    propertyInventory("merchant", []string{"Existing Merchant"}, 25),
		Category:    propertyInventory("category", []string{"Groceries"}, 25),
	}
}

func TestDriftWarningsCaptureUnseenTypoAndSignDrift(t *testing.T) {
	incoming := IncomingUniqueValues{
		AccountKey:  []string{"chase_checking_1234", "chase_checkng_1234"},
		AccountType: []string{"checking"},
		Currency:    []string{"EUR", "USD"},
		Merchant:    []string{"Existing Merchant", "New Merchant"},
		Category:    []string{"Groceries", "Travel"},
	}
	existingSigns := map[string]SignCounts{
		"chase_checking_1234": {NegativeCount: 24, PositiveCount: 1},
	}
	incomingSigns := map[string]SignCounts{
		"chase_checking_1234": {NegativeCount: 0, PositiveCount: 5},
	}

	warnings := BuildDriftWarnings(baselineInventory(), incoming, existingSigns, incomingSigns)

	codes := make(map[string]bool)
	for _, warning := range warnings {
		codes[warning.Code] = true
	}
	for _, expected := range []string{
		"account_key_unseen", "account_key_possible_typo", "currency_unseen",
		"merchant_unseen", "category_unseen", "account_sign_profile_anomaly",
	} {
		if !codes[expected] {
			t.Errorf("missing expected warning code %s", expected)
		}
	}

	for _, warning := range warnings {
		if warning.Code == "account_key_possible_typo" {
			if len(warning.Suggestions) != 1 || warning.Suggestions[0] != "chase_checking_1234" {
				t.Errorf("unexpected typo suggestions: %v", warning.Suggestions)
			}
		}
	}

	// High severity sorts before medium.
	lastRank := -1
	for _, warning := range warnings {
		rank := severityRank(warning.Severity)
		if rank < lastRank {
			t.Errorf("warnings out of severity order: %+v", warnings)
			break
		}
		lastRank = rank
	}
}

func TestDriftWarningsSignThresholdAndSampleGates(t *testing.T) {
	inventory := &contracts.ImportKeyInventory{
		AccountKey:  propertyInventory("account_key", []string{"acct_1"}, 20),
		AccountType: propertyInventory("account_type", []string{"checking"}, 20),
		Currency:    propertyInventory("currency", []string{"USD"}, 20),
		Merchant:    propertyInventory("merchant", []string{"Shop"}, 20),
		Category:    propertyInventory("category", []string{"Groceries"}, 20),
	}
	incoming := IncomingUniqueValues{
		AccountKey:  []string{"acct_1"},
		AccountType: []string{"checking"},
		Currency:    []string{"USD"},
		Merchant:    []string{"Shop"},
		Category:    []string{"Groceries"},
	}
	existingSigns := map[string]SignCounts{
		"acct_1": {NegativeCount: 16, PositiveCount: 4},
	}

	hasSignAnomaly := func(incomingSigns map[string]SignCounts) bool {
		warnings := BuildDriftWarnings(inventory, incoming, existingSigns, incomingSigns)
		for _, warning := range warnings {
			if warning.Code == "account_sign_profile_anomaly" {
				return true
			}
		}
		return false
	}

	belowThreshold := map[string]SignCounts{"acct_1": {NegativeCount: 3, PositiveCount: 2}}
	if hasSignAnomaly(belowThreshold) {
		t.Errorf("drift below 0.40 must not fire")
	}

	boundaryThreshold := map[string]SignCounts{"acct_1": {NegativeCount: 2, PositiveCount: 3}}
	if !hasSignAnomaly(boundaryThreshold) {
		t.Errorf("drift of exactly 0.40 must fire")
	}

	tooFewIncoming := map[string]SignCounts{"acct_1": {NegativeCount: 2, PositiveCount: 2}}
	if hasSignAnomaly(tooFewIncoming) {
		t.Errorf("incoming sample below 5 must not fire")
	}
}

func TestDriftWarningsSuppressedWithoutBaseline(t *testing.T) {
	empty := &contracts.ImportKeyInventory{
		AccountKey:  propertyInventory("account_key", nil, 0),
		AccountType: propertyInventory("account_type", nil, 0),
		Currency:    propertyInventory("currency", nil, 0),
		Merchant:    propertyInventory("merchant", nil, 0),
		Category:    propertyInventory("category", nil, 0),
	}
	incoming := IncomingUniqueValues{
		AccountKey: []string{"acct_new"},
		Currency:   []string{"USD"},
		Merchant:   []string{"New Merchant"},
		Category:   []string{"New Category"},
	}

	warnings := BuildDriftWarnings(empty, incoming, map[string]SignCounts{}, map[string]SignCounts{})
	if len(warnings) != 0 {
		t.Errorf("empty ledger must produce no warnings, got %+v", warnings)
	}
}
