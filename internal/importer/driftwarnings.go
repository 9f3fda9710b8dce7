package importer

import (
	"fmt"
	"sort"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/utils"
)

const (
	severityHigh   = "high"
	severityMedium = "medium"

	signDriftThreshold     = 0.40
	minExistingSignSample  = 20
	minIncomingSignSample  = 5
	typoSuggestionDistance = 3
	typoSuggestionLimit    = 3
)

// BuildDriftWarnings compares a batch's incoming value sets and sign
// profile against committed history. Every unseen-value check is gated on
// that property having any history at all, so a fresh ledger produces no
// noise.
func BuildDriftWarnings(
	keyInventory *contracts.ImportKeyInventory,
	incomingValues IncomingUniqueValues,
	existingSignCounts map[string]SignCounts,
	incomingSignCounts map[string]SignCounts,
) []contracts.ImportDriftWarning {
	warnings := []contracts.ImportDriftWarning{}

	if keyInventory.AccountKey.UniqueCount > 0 {
		warnings = append(warnings, accountKeyWarnings(
			keyInventory.AccountKey.ExistingValues, incomingValues.AccountKey,
		)...)
	}
	if keyInventory.Currency.UniqueCount > 0 {
		warnings = append(warnings, unseenValueWarnings(
			"currency", "currency_unseen",
			"Incoming currency was not found in existing ledger history.",
			severityMedium, keyInventory.Currency.ExistingValues, incomingValues.Currency,
		)...)
	}
	if keyInventory.Merchant.UniqueCount > 0 {
		warnings = append(warnings, unseenValueWarnings(
			"merchant", "merchant_unseen",
			"Incoming merchant was not found in existing ledger history.",
			severityMedium, keyInventory.Merchant.ExistingValues, incomingValues.Merchant,
		)...)
	}
	if keyInventory.Category.UniqueCount > 0 {
		warnings = append(warnings, unseenValueWarnings(
			"category", "category_unseen",
			"Incoming category was not found in existing ledger history.",
			severityMedium, keyInventory.Category.ExistingValues, incomingValues.Category,
		)...)
	}

	warnings = append(warnings, signProfileAnomalyWarnings(existingSignCounts, incomingSignCounts)...)

	sort.SliceStable(warnings, func(i, j int) bool {
		return compareWarnings(warnings[i], warnings[j]) < 0
	})
	return warnings
}

func accountKeyWarnings(existingValues, incomingValues []string) []contracts.ImportDriftWarning {
	existingSet := make(map[string]struct{}, len(existingValues))
	for _, value := range existingValues {
		existingSet[value] = struct{}{}
	}

	var warnings []contracts.ImportDriftWarning
	for _, incomingValue := range incomingValues {
		if _, ok := existingSet[incomingValue]; ok {
			continue
		}

		warnings = append(warnings, contracts.ImportDriftWarning{
			Code:          "account_key_unseen",
			Severity:      severityHigh,
			Property:      "account_key",
			IncomingValue: incomingValue,
			Message:       "Incoming account_key was not found in existing ledger history.",
			Suggestions:   []string{},
		})

		suggestions := nearestAccountKeySuggestions(incomingValue, existingValues)
		if len(suggestions) > 0 {
			warnings = append(warnings, contracts.ImportDriftWarning{
				Code:          "account_key_possible_typo",
				Severity:      severityHigh,
				Property:      "account_key",
				IncomingValue: incomingValue,
				Message:       fmt.Sprintf("Incoming account_key `%s` is close to an existing account key.", incomingValue),
				Suggestions:   suggestions,
			})
		}
	}
	return warnings
}

func unseenValueWarnings(property, code, message, severity string, existingValues, incomingValues []string) []contracts.ImportDriftWarning {
	existingSet := make(map[string]struct{}, len(existingValues))
	for _, value := range existingValues {
		existingSet[value] = struct{}{}
	}

	var warnings []contracts.ImportDriftWarning
	for _, incomingValue := range incomingValues {
		if _, ok := existingSet[incomingValue]; ok {
			continue
		}
		warnings = append(warnings, contracts.ImportDriftWarning{
			Code:          code,
			Severity:      severity,
			Property:      property,
			IncomingValue: incomingValue,
			Message:       message,
			Suggestions:   []string{},
		})
	}
	return warnings
}

func signProfileAnomalyWarnings(existingSignCounts, incomingSignCounts map[string]SignCounts) []contracts.ImportDriftWarning {
	accountKeys := make([]string, 0, len(incomingSignCounts))
	for accountKey := range incomingSignCounts {
		accountKeys = append(accountKeys, accountKey)
	}
	sort.Strings(accountKeys)

	var warnings []contracts.ImportDriftWarning
	for _, accountKey := range accountKeys {
		incomingCounts := incomingSignCounts[accountKey]
		existingCounts, ok := existingSignCounts[accountKey]
		if !ok {
			continue
		}
		if existingCounts.TotalCount() < minExistingSignSample ||
			incomingCounts.TotalCount() < minIncomingSignSample {
			continue
		}

		historicalRatio := existingCounts.NegativeRatio()
		incomingRatio := incomingCounts.NegativeRatio()
		diff := historicalRatio - incomingRatio
		if diff < 0 {
			diff = -diff
		}
		if diff < signDriftThreshold {
			continue
		}

		warnings = append(warnings, contracts.ImportDriftWarning{
			Code:          "account_sign_profile_anomaly",
			Severity:      severityHigh,
			Property:      "account_key",
			IncomingValue: accountKey,
			Message: fmt.Sprintf(
				"Incoming amount sign profile for `%s` differs from history by %.2f percentage points (historical %.2f, incoming %.2f).",
				accountKey, diff*100, historicalRatio*100, incomingRatio*100,
			),
			Suggestions: []string{},
		})
	}
	return warnings
}

// nearestAccountKeySuggestions ranks existing keys within edit distance 3
// of the incoming key, closest first, capped at 3.
func nearestAccountKeySuggestions(incomingValue string, existingValues []string) []string {
	type ranked struct {
		distance int
		value    string
	}
	var matches []ranked
	for _, candidate := range existingValues {
		distance := utils.ComputeDistance(incomingValue, candidate)
		if distance <= typoSuggestionDistance {
			matches = append(matches, ranked{distance: distance, value: candidate})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	limit := len(matches)
	if limit > typoSuggestionLimit {
		limit = typoSuggestionLimit
	}
	suggestions := make([]string, 0, limit)
	for _, match := range matches[:limit] {
		suggestions = append(suggestions, match.value)
	}
	return suggestions
}

func compareWarnings(left, right contracts.ImportDriftWarning) int {
	if rank := severityRank(left.Severity) - severityRank(right.Severity); rank != 0 {
		return rank
	}
	if left.Property != right.Property {
		if left.Property < right.Property {
			return -1
		}
		return 1
	}
	if left.IncomingValue != right.IncomingValue {
		if left.IncomingValue < right.IncomingValue {
			return -1
		}
		return 1
	}
	if left.Code != right.Code {
		if left.Code < right.Code {
			return -1
		}
		return 1
	}
	return 0
}

func severityRank(severity string) int {
	switch severity {
	case severityHigh:
		return 0
	case severityMedium:
		return 1
	default:
		return 2
	}
}
