package intelligence

import (
	"fmt"
	"math"
	"sort"
)

// AnomalyDetection is one flagged amount spike.
type AnomalyDetection struct {
	TxnID      string
	AccountKey string
	PostedAt   string
	Merchant   string
	Amount     float64
	Currency   string
	ReasonCode string
	Reason     string
	Score      float64
	Severity   string
}

type anomalyGroup struct {
	merchant     string
	qualityScore float64
	rows         []NormalizedTransaction
}

// DetectAnomalies flags amount spikes under the frozen v1 policy.
func DetectAnomalies(transactions []NormalizedTransaction) []AnomalyDetection {
	return detectAnomaliesWithPolicy(transactions, AnomaliesPolicyV1)
}

func detectAnomaliesWithPolicy(transactions []NormalizedTransaction, policy AnomaliesPolicy) []AnomalyDetection {
	groups := make(map[string]*anomalyGroup)
	var groupKeys []string
	for _, transaction := range transactions {
		counterparty := CounterpartyFromTransaction(transaction.Merchant, transaction.Description)
		if counterparty == nil {
			continue
		}

		key := fmt.Sprintf(
			"%s|%s|%s|%s",
			transaction.AccountKey, transaction.Currency,
			transaction.AmountSignKey(), counterparty.Key,
		)
		group, ok := groups[key]
		if !ok {
			group = &anomalyGroup{
				merchant:     counterparty.Label,
				qualityScore: counterparty.QualityScore,
			}
			groups[key] = group
			groupKeys = append(groupKeys, key)
		}
		group.rows = append(group.rows, transaction)
	}
	sort.Strings(groupKeys)

	var anomalies []AnomalyDetection
	for _, key := range groupKeys {
		group := groups[key]
		sort.SliceStable(group.rows, func(i, j int) bool {
			left, right := group.rows[i], group.rows[j]
			if !left.PostedAt.Equal(right.PostedAt) {
				return left.PostedAt.Before(right.PostedAt)
			}
			if left.Amount != right.Amount {
				return left.Amount < right.Amount
			}
			return left.TxnID < right.TxnID
		})

		if len(group.rows) < policy.MinHistoryPoints {
			continue
		}

		absAmounts := sortedAbsAmounts(group.rows)
		medianAbs, _ := medianFloat64(absAmounts)
		if medianAbs <= math.SmallestNonzeroFloat64 {
			continue
		}

		mad := medianAbsoluteDeviation(absAmounts, medianAbs)
		tolerance := math.Max(policy.AbsoluteFloor, math.Max(medianAbs*policy.RelativeFloor, mad*policy.MadMultiplier))

		for _, row := range group.rows {
			absoluteAmount := row.AbsAmount()
			delta := absoluteAmount - medianAbs
			if delta <= tolerance {
				continue
			}

			spikeRatio := absoluteAmount / medianAbs
			if spikeRatio < policy.MinSpikeRatio {
				continue
			}

			deltaScore := math.Min(delta/(tolerance*2.5), 1.0)
			ratioScore := math.Min((spikeRatio-policy.MinSpikeRatio)/2.0, 1.0)
			score := roundTo(0.6*deltaScore+0.3*ratioScore+0.1*group.qualityScore, 4)
			if score < policy.MinScore {
				continue
			}

			anomalies = append(anomalies, AnomalyDetection{
				TxnID:      row.TxnID,
				AccountKey: row.AccountKey,
				PostedAt:   FormatISODate(row.PostedAt),
				Merchant:   group.merchant,
				Amount:     roundTo(row.Amount, 2),
				Currency:   row.Currency,
				ReasonCode: "amount_spike",
				Reason: fmt.Sprintf(
					"Amount is unusually high for this merchant (%.2fx typical).",
					roundTo(spikeRatio, 2),
				),
				Score:    score,
				Severity: severityForScore(score),
			})
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		left, right := anomalies[i], anomalies[j]
		if left.PostedAt != right.PostedAt {
			return left.PostedAt < right.PostedAt
		}
		if left.Merchant != right.Merchant {
			return left.Merchant < right.Merchant
		}
		return left.TxnID < right.TxnID
	})
	return anomalies
}

func sortedAbsAmounts(rows []NormalizedTransaction) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.AbsAmount())
	}
	sort.Float64s(values)
	return values
}

func medianAbsoluteDeviation(sortedAbsAmounts []float64, medianAbs float64) float64 {
	deviations := make([]float64, 0, len(sortedAbsAmounts))
	for _, value := range sortedAbsAmounts {
		deviations = append(deviations, math.Abs(value-medianAbs))
	}
	sort.Float64s(deviations)
	deviation, _ := medianFloat64(deviations)
	return deviation
}

func severityForScore(score float64) string {
	if score >= 0.92 {
		return "high"
	}
	if score >= 0.86 {
		return "medium"
	}
	return "low"
}
