package intelligence

import (
	"fmt"
	"time"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

// CadenceKind enumerates the recurring cadences the classifier considers.
type CadenceKind string

const (
	CadenceWeekly   CadenceKind = "weekly"
	CadenceBiweekly CadenceKind = "biweekly"
	CadenceMonthly  CadenceKind = "monthly"
)

// ExpectedIntervalDays is the nominal gap for gap-based cadences; monthly
// uses calendar arithmetic instead, the 30 here is only its sort hint.
func (c CadenceKind) ExpectedIntervalDays() int64 {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceBiweekly:
		return 14
	default:
		return 30
	}
}

// Advance computes the next expected occurrence after date. Monthly uses
// day-clamped calendar math, so Jan 31 advances to Feb 28 (or 29), never
// into March.
func (c CadenceKind) Advance(date time.Time) time.Time {
	switch c {
	case CadenceWeekly:
		return date.AddDate(0, 0, 7)
	case CadenceBiweekly:
		return date.AddDate(0, 0, 14)
	default:
		return AddMonthsClamped(date, 1)
	}
}

// BuildFilter parses and validates an analytics date range.
func BuildFilter(from, to *string, command string) (*IntelligenceFilter, error) {
	var parsedFrom, parsedTo *time.Time
	if from != nil {
		value, err := parseISODateStrict(*from, "from", command)
		if err != nil {
			return nil, err
		}
		parsedFrom = &value
	}
	if to != nil {
		value, err := parseISODateStrict(*to, "to", command)
		if err != nil {
			return nil, err
		}
		parsedTo = &value
	}

	if parsedFrom != nil && parsedTo != nil && parsedFrom.After(*parsedTo) {
		return nil, driggerr.InvalidArgumentForCommand(
			"Invalid date range: `from` must be on or before `to`.", command,
		)
	}

	return &IntelligenceFilter{From: parsedFrom, To: parsedTo}, nil
}

// FormatISODate renders a date as YYYY-MM-DD.
func FormatISODate(date time.Time) string {
	return date.Format("2006-01-02")
}

// ParseTransactionDate parses a stored posted_at value; rows that fail are
// skipped by the loader rather than failing the whole query.
func ParseTransactionDate(value string) (time.Time, bool) {
	if !looksLikeISODate(value) {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// AddMonthsClamped adds calendar months, capping the day at the target
// month's last day. Unlike time.AddDate, Jan 31 + 1 month is Feb 28, not
// Mar 3.
func AddMonthsClamped(date time.Time, months int) time.Time {
	year := date.Year()
	month := int(date.Month()) + months
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}

	day := date.Day()
	if limit := daysInMonth(year, month); day > limit {
		day = limit
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func parseISODateStrict(value, fieldName, command string) (time.Time, error) {
	if !looksLikeISODate(value) {
		return time.Time{}, driggerr.InvalidArgumentForCommand(
			fmt.Sprintf("`%s` must use YYYY-MM-DD format with a real calendar date.", fieldName),
			command,
		)
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil || parsed.Format("2006-01-02") != value {
		return time.Time{}, driggerr.InvalidArgumentForCommand(
			fmt.Sprintf("`%s` must use YYYY-MM-DD format with valid calendar values.", fieldName),
			command,
		)
	}
	return parsed, nil
}

func looksLikeISODate(value string) bool {
	if len(value) != 10 || value[4] != '-' || value[7] != '-' {
		return false
	}
	for _, index := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if value[index] < '0' || value[index] > '9' {
			return false
		}
	}
	return true
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}
