package intelligence

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// RecurringDetection is one classified recurring pattern.
type RecurringDetection struct {
	GroupKey           string
	AccountKey         string
	Counterparty       string
	CounterpartySource CounterpartySource
	Cadence            CadenceKind
	TypicalAmount      float64
	Currency           string
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
	NextExpectedAt     *time.Time
	OccurrenceCount    int64
	CadenceFit         float64
	AmountFit          float64
	Score              float64
	AmountMin          float64
	AmountMax          float64
	SampleDescription  string
	QualityFlags       []string
	IsActive           bool
}

type recurringGroup struct {
	groupKey     string
	accountKey   string
	currency     string
	counterparty CounterpartyIdentity
	rows         []NormalizedTransaction
}

type candidateScore struct {
	cadence             CadenceKind
	cadenceFit          float64
	medianIntervalError int64
	occurrenceCount     int
	amountFit           float64
	score               float64
}

type amountStats struct {
	fit           float64
	typicalAmount float64
	amountMin     float64
	amountMax     float64
}

// DetectRecurring classifies recurring patterns under the frozen v1
// policy.
func DetectRecurring(transactions []NormalizedTransaction) []RecurringDetection {
	return detectRecurringWithPolicy(transactions, RecurringPolicyV1)
}

func detectRecurringWithPolicy(transactions []NormalizedTransaction, policy RecurringPolicy) []RecurringDetection {
	groups := make(map[string]*recurringGroup)
	var groupKeys []string
	for _, transaction := range transactions {
		counterparty := CounterpartyFromTransaction(transaction.Merchant, transaction.Description)
		if counterparty == nil {
			continue
		}

		groupKey := fmt.Sprintf(
			"%s|%s|%s|%s",
			transaction.AccountKey, transaction.Currency,
			transaction.AmountSignKey(), counterparty.Key,
		)

		group, ok := groups[groupKey]
		if !ok {
			group = &recurringGroup{
				groupKey:     groupKey,
				accountKey:   transaction.AccountKey,
				currency:     transaction.Currency,
				counterparty: *counterparty,
			}
			groups[groupKey] = group
			groupKeys = append(groupKeys, groupKey)
		}
		group.rows = append(group.rows, transaction)
	}
	sort.Strings(groupKeys)

	var globalLatest *time.Time
	for _, transaction := range transactions {
		if globalLatest == nil || transaction.PostedAt.After(*globalLatest) {
			latest := transaction.PostedAt
			globalLatest = &latest
		}
	}

	var detections []RecurringDetection
	for _, groupKey := range groupKeys {
		group := groups[groupKey]
		sort.SliceStable(group.rows, func(i, j int) bool {
			left, right := group.rows[i], group.rows[j]
			if !left.PostedAt.Equal(right.PostedAt) {
				return left.PostedAt.Before(right.PostedAt)
			}
			if left.Amount != right.Amount {
				return left.Amount < right.Amount
			}
			return left.Description < right.Description
		})

		if len(group.rows) == 0 {
			continue
		}
		if group.counterparty.Source == CounterpartySourceDescription &&
			!group.counterparty.FallbackEligible {
			continue
		}

		stats := computeAmountStats(group.rows, policy)
		var candidates []candidateScore
		for _, cadence := range []CadenceKind{CadenceWeekly, CadenceBiweekly, CadenceMonthly} {
			candidate, ok := scoreCandidate(cadence, group, stats, policy)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate)
		}

		best, ok := selectBestCandidate(candidates)
		if !ok {
			continue
		}

		firstSeen := group.rows[0].PostedAt
		lastSeen := group.rows[len(group.rows)-1].PostedAt
		nextExpected := best.cadence.Advance(lastSeen)

		qualityFlags := append([]string{}, group.counterparty.QualityFlags...)
		if best.cadenceFit < 1.0 {
			qualityFlags = append(qualityFlags, "cadence_variance")
		}
		if best.amountFit < 1.0 {
			qualityFlags = append(qualityFlags, "amount_variance")
		}
		qualityFlags = uniqueSorted(qualityFlags)

		isActive := true
		if globalLatest != nil {
			ageDays := int64(globalLatest.Sub(lastSeen).Hours() / 24)
			isActive = ageDays <= policy.CadenceActiveWindowDays(best.cadence)*2
		}

		detections = append(detections, RecurringDetection{
			GroupKey:           group.groupKey,
			AccountKey:         group.accountKey,
			Counterparty:       group.counterparty.Label,
			CounterpartySource: group.counterparty.Source,
			Cadence:            best.cadence,
			TypicalAmount:      roundTo(stats.typicalAmount, 2),
			Currency:           group.currency,
			FirstSeenAt:        firstSeen,
			LastSeenAt:         lastSeen,
			NextExpectedAt:     &nextExpected,
			OccurrenceCount:    int64(best.occurrenceCount),
			CadenceFit:         roundTo(best.cadenceFit, 4),
			AmountFit:          roundTo(best.amountFit, 4),
			Score:              roundTo(best.score, 4),
			AmountMin:          roundTo(stats.amountMin, 2),
			AmountMax:          roundTo(stats.amountMax, 2),
			SampleDescription:  group.rows[0].Description,
			QualityFlags:       qualityFlags,
			IsActive:           isActive,
		})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return compareDetections(detections[i], detections[j]) < 0
	})
	return detections
}

func scoreCandidate(cadence CadenceKind, group *recurringGroup, stats amountStats, policy RecurringPolicy) (candidateScore, bool) {
	if len(group.rows) < policy.CadenceMinOccurrences(cadence) {
		return candidateScore{}, false
	}

	cadenceFit, medianIntervalError := computeCadenceFit(group, cadence, policy)
	score := policy.Score(cadenceFit, stats.fit, group.counterparty.QualityScore)
	if !policy.PassesHardGates(cadenceFit, stats.fit, score) {
		return candidateScore{}, false
	}

	return candidateScore{
		cadence:             cadence,
		cadenceFit:          cadenceFit,
		medianIntervalError: medianIntervalError,
		occurrenceCount:     len(group.rows),
		amountFit:           stats.fit,
		score:               score,
	}, true
}

func selectBestCandidate(candidates []candidateScore) (candidateScore, bool) {
	if len(candidates) == 0 {
		return candidateScore{}, false
	}
	sorted := append([]candidateScore{}, candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareCandidateScores(sorted[i], sorted[j]) < 0
	})
	return sorted[0], true
}

func compareCandidateScores(left, right candidateScore) int {
	if left.cadenceFit != right.cadenceFit {
		if left.cadenceFit > right.cadenceFit {
			return -1
		}
		return 1
	}
	if left.medianIntervalError != right.medianIntervalError {
		if left.medianIntervalError < right.medianIntervalError {
			return -1
		}
		return 1
	}
	if left.occurrenceCount != right.occurrenceCount {
		if left.occurrenceCount > right.occurrenceCount {
			return -1
		}
		return 1
	}
	leftPriority := RecurringPolicyV1.CadencePriority(left.cadence)
	rightPriority := RecurringPolicyV1.CadencePriority(right.cadence)
	if leftPriority != rightPriority {
		if leftPriority > rightPriority {
			return -1
		}
		return 1
	}
	return 0
}

func compareDetections(left, right RecurringDetection) int {
	if cmp := compareOptionalDates(left.NextExpectedAt, right.NextExpectedAt); cmp != 0 {
		return cmp
	}
	if left.Score != right.Score {
		if left.Score > right.Score {
			return -1
		}
		return 1
	}
	if left.Counterparty != right.Counterparty {
		if left.Counterparty < right.Counterparty {
			return -1
		}
		return 1
	}
	if left.GroupKey != right.GroupKey {
		if left.GroupKey < right.GroupKey {
			return -1
		}
		return 1
	}
	return 0
}

func compareOptionalDates(left, right *time.Time) int {
	switch {
	case left != nil && right != nil:
		if left.Before(*right) {
			return -1
		}
		if left.After(*right) {
			return 1
		}
		return 0
	case left != nil:
		return -1
	case right != nil:
		return 1
	default:
		return 0
	}
}

// computeCadenceFit scores how well the group's gaps match a cadence: the
// fraction of intervals whose expected-vs-actual error is inside the
// cadence's tolerance, plus the median error for tie-breaking.
func computeCadenceFit(group *recurringGroup, cadence CadenceKind, policy RecurringPolicy) (float64, int64) {
	if len(group.rows) < 2 {
		return 0, math.MaxInt64
	}

	var matches int
	errors := make([]int64, 0, len(group.rows)-1)
	for index := 1; index < len(group.rows); index++ {
		previous := group.rows[index-1].PostedAt
		current := group.rows[index].PostedAt
		intervalError := cadenceIntervalError(previous, current, cadence)
		if intervalError <= policy.CadenceToleranceDays(cadence) {
			matches++
		}
		errors = append(errors, intervalError)
	}

	totalIntervals := len(group.rows) - 1
	fit := float64(matches) / float64(totalIntervals)
	medianError, ok := medianInt64(errors)
	if !ok {
		medianError = math.MaxInt64
	}
	return fit, medianError
}

// cadenceIntervalError is days of error for one interval. Monthly compares
// against the clamped calendar advance; week-based cadences compare raw
// gaps.
func cadenceIntervalError(previous, current time.Time, cadence CadenceKind) int64 {
	if cadence == CadenceMonthly {
		expected := cadence.Advance(previous)
		return absInt64(daysBetween(expected, current))
	}
	actual := absInt64(daysBetween(previous, current))
	return absInt64(actual - cadence.ExpectedIntervalDays())
}

func daysBetween(from, to time.Time) int64 {
	return int64(to.Sub(from).Hours() / 24)
}

func computeAmountStats(rows []NormalizedTransaction, policy RecurringPolicy) amountStats {
	absoluteAmounts := make([]float64, 0, len(rows))
	for _, row := range rows {
		absoluteAmounts = append(absoluteAmounts, row.AbsAmount())
	}
	sort.Float64s(absoluteAmounts)
	medianAbs, _ := medianFloat64(absoluteAmounts)
	tolerance := policy.AmountTolerance(medianAbs)

	var inTolerance int
	for _, row := range rows {
		if math.Abs(row.AbsAmount()-medianAbs) <= tolerance {
			inTolerance++
		}
	}

	signedAmounts := make([]float64, 0, len(rows))
	for _, row := range rows {
		signedAmounts = append(signedAmounts, row.Amount)
	}
	sort.Float64s(signedAmounts)
	typicalAmount, _ := medianFloat64(signedAmounts)

	stats := amountStats{
		fit:           float64(inTolerance) / float64(len(rows)),
		typicalAmount: typicalAmount,
	}
	if len(signedAmounts) > 0 {
		stats.amountMin = signedAmounts[0]
		stats.amountMax = signedAmounts[len(signedAmounts)-1]
	}
	return stats
}

func medianFloat64(sorted []float64) (float64, bool) {
	if len(sorted) == 0 {
		return 0, false
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

func medianInt64(values []int64) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]int64{}, values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

func absInt64(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow10(decimals)
	return math.Round(value*factor) / factor
}

func uniqueSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	unique := make([]string, 0, len(set))
	for value := range set {
		unique = append(unique, value)
	}
	sort.Strings(unique)
	return unique
}
