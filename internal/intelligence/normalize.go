package intelligence

import "strings"

// CounterpartySource records which field the counterparty identity came
// from.
type CounterpartySource string

const (
	CounterpartySourceMerchant    CounterpartySource = "merchant"
	CounterpartySourceDescription CounterpartySource = "description"
)

// CounterpartyIdentity is the normalized entity used for grouping: the
// merchant name when present, otherwise a fingerprint of the description.
type CounterpartyIdentity struct {
	Key              string
	Label            string
	Source           CounterpartySource
	QualityScore     float64
	FallbackEligible bool
	QualityFlags     []string
}

// noiseTokens are payment-rail words that carry no counterparty identity.
// The set is frozen; extending it changes historical groupings.
var noiseTokens = map[string]struct{}{
	"POS": {}, "DEBIT": {}, "CARD": {}, "PURCHASE": {}, "ACH": {},
	"ONLINE": {}, "PAYMENT": {}, "TRANSFER": {}, "WITHDRAWAL": {},
	"CHECK": {}, "ATM": {}, "AUTH": {}, "PENDING": {}, "VISA": {},
	"MC": {}, "TRX": {}, "TXN": {},
}

// CounterpartyFromTransaction derives a row's counterparty identity, or
// nil when neither field yields one (the row is then invisible to
// analytics).
func CounterpartyFromTransaction(merchant *string, description string) *CounterpartyIdentity {
	if merchant != nil {
		if merchantKey, ok := NormalizeMerchant(*merchant); ok {
			return &CounterpartyIdentity{
				Key:              merchantKey,
				Label:            merchantKey,
				Source:           CounterpartySourceMerchant,
				QualityScore:     1.0,
				FallbackEligible: true,
				QualityFlags: []string{
					"counterparty_source:merchant",
					"counterparty_quality:strong",
				},
			}
		}
	}

	fingerprint, ok := DescriptionFingerprint(description)
	if !ok {
		return nil
	}
	tokenCount := len(strings.Fields(fingerprint))
	fallbackEligible := tokenCount >= 2
	var qualityScore float64
	switch tokenCount {
	case 0, 1:
		qualityScore = 0.55
	case 2:
		qualityScore = 0.80
	case 3:
		qualityScore = 0.85
	default:
		qualityScore = 0.90
	}

	qualityFlags := []string{"counterparty_source:description"}
	if fallbackEligible {
		qualityFlags = append(qualityFlags, "counterparty_quality:description_fallback")
	} else {
		qualityFlags = append(qualityFlags, "counterparty_quality:weak_description")
	}

	return &CounterpartyIdentity{
		Key:              fingerprint,
		Label:            fingerprint,
		Source:           CounterpartySourceDescription,
		QualityScore:     qualityScore,
		FallbackEligible: fallbackEligible,
		QualityFlags:     qualityFlags,
	}
}

// NormalizeMerchant uppercases and collapses a merchant name to its
// alphanumeric token form.
func NormalizeMerchant(value string) (string, bool) {
	return normalizeText(value)
}

// DescriptionFingerprint reduces a free-text description to at most four
// stable tokens: uppercased, noise and purely-numeric tokens dropped.
func DescriptionFingerprint(value string) (string, bool) {
	normalized, ok := normalizeText(value)
	if !ok {
		return "", false
	}

	var stableTokens []string
	for _, token := range strings.Fields(normalized) {
		if isNoiseToken(token) || isNumericToken(token) {
			continue
		}
		stableTokens = append(stableTokens, token)
		if len(stableTokens) == 4 {
			break
		}
	}

	if len(stableTokens) == 0 {
		return "", false
	}
	return strings.Join(stableTokens, " "), true
}

// normalizeText uppercases ASCII alphanumerics and collapses every other
// run of characters to a single space.
func normalizeText(value string) (string, bool) {
	var output strings.Builder
	previousSpace := false
	for _, character := range strings.TrimSpace(value) {
		switch {
		case character >= 'a' && character <= 'z':
			output.WriteRune(character - ('a' - 'A'))
			previousSpace = false
		case (character >= 'A' && character <= 'Z') || (character >= '0' && character <= '9'):
			output.WriteRune(character)
			previousSpace = false
		default:
			if !previousSpace {
				output.WriteRune(' ')
				previousSpace = true
			}
		}
	}

	normalized := strings.TrimSpace(output.String())
	if normalized == "" {
		return "", false
	}
	return normalized, true
}

func isNumericToken(token string) bool {
	for _, character := range token {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}

func isNoiseToken(token string) bool {
	_, ok := noiseTokens[token]
	return ok
}
