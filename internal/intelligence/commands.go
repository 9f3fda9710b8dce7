package intelligence

import (
	"strconv"
	"time"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/store"
)

// Recurring runs the recurring classifier over committed history within
// the optional date range and returns the full result payload. The rows
// are computed live from the classifier, not read back from the narrow
// materialized view, so the payload carries the complete detection shape.
func Recurring(from, to *string, homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	filter, err := BuildFilter(from, to, "recurring")
	if err != nil {
		return nil, err
	}

	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	transactions, err := LoadTransactions(db, setup.DBPath, filter)
	if err != nil {
		return nil, err
	}
	detections := DetectRecurring(transactions)

	rows := make([]contracts.RecurringRow, 0, len(detections))
	for _, detection := range detections {
		var nextExpectedAt *string
		if detection.NextExpectedAt != nil {
			formatted := FormatISODate(*detection.NextExpectedAt)
			nextExpectedAt = &formatted
		}
		rows = append(rows, contracts.RecurringRow{
			GroupKey:        detection.GroupKey,
			AccountKey:      detection.AccountKey,
			Merchant:        detection.Counterparty,
			Cadence:         string(detection.Cadence),
			TypicalAmount:   detection.TypicalAmount,
			Currency:        detection.Currency,
			LastSeenAt:      FormatISODate(detection.LastSeenAt),
			NextExpectedAt:  nextExpectedAt,
			OccurrenceCount: detection.OccurrenceCount,
			Score:           detection.Score,
			IsActive:        detection.IsActive,
		})
	}

	return contracts.Success("recurring", contracts.RecurringData{
		PolicyVersion: RecurringPolicyVersion,
		From:          formatBound(filter.From),
		To:            formatBound(filter.To),
		Rows:          rows,
		DataRangeHint: contracts.DataRangeHint{
			Earliest: setup.DataRange.Earliest,
			Latest:   setup.DataRange.Latest,
		},
	})
}

// Anomalies runs the anomaly detector over committed history within the
// optional date range.
func Anomalies(from, to *string, homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}
	filter, err := BuildFilter(from, to, "anomalies")
	if err != nil {
		return nil, err
	}

	db, err := store.OpenReadOnly(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	transactions, err := LoadTransactions(db, setup.DBPath, filter)
	if err != nil {
		return nil, err
	}
	detections := DetectAnomalies(transactions)

	rows := make([]contracts.AnomalyRow, 0, len(detections))
	for _, detection := range detections {
		rows = append(rows, contracts.AnomalyRow{
			TxnID:      detection.TxnID,
			AccountKey: detection.AccountKey,
			PostedAt:   detection.PostedAt,
			Merchant:   detection.Merchant,
			Amount:     detection.Amount,
			Currency:   detection.Currency,
			ReasonCode: detection.ReasonCode,
			Reason:     detection.Reason,
			Score:      detection.Score,
			Severity:   detection.Severity,
		})
	}

	return contracts.Success("anomalies", contracts.AnomaliesData{
		PolicyVersion: AnomaliesPolicyVersion,
		From:          formatBound(filter.From),
		To:            formatBound(filter.To),
		Rows:          rows,
		DataRangeHint: contracts.DataRangeHint{
			Earliest: setup.DataRange.Earliest,
			Latest:   setup.DataRange.Latest,
		},
	})
}

// Refresh rebuilds both materializations and reports the row counts.
func Refresh(homeOverride string) (*contracts.SuccessEnvelope, error) {
	setup, err := store.EnsureInitialized(homeOverride)
	if err != nil {
		return nil, err
	}

	db, lock, err := store.OpenReadWrite(setup.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.ReleaseLock(lock)
	defer db.Close()

	summary, err := RefreshAll(db, setup.DBPath)
	if err != nil {
		return nil, err
	}

	return contracts.Success("intelligence refresh", contracts.IntelligenceRefreshData{
		RecurringRows: summary.RecurringRows,
		AnomalyRows:   summary.AnomalyRows,
		CompletedAt:   nowTimestamp(),
	})
}

func formatBound(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := FormatISODate(*value)
	return &formatted
}

func nowTimestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
