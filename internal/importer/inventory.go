package importer

import (
	"fmt"
	"sort"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

// TrackedProperty enumerates the string properties whose committed value
// sets the drift analysis compares against.
type TrackedProperty string

const (
	TrackedPropertyAccountKey  TrackedProperty = "account_key"
	TrackedPropertyAccountType TrackedProperty = "account_type"
	TrackedPropertyCurrency    TrackedProperty = "currency"
	TrackedPropertyMerchant    TrackedProperty = "merchant"
	TrackedPropertyCategory    TrackedProperty = "category"
)

// ParseTrackedProperty accepts only supported property names.
func ParseTrackedProperty(value string) (TrackedProperty, bool) {
	switch TrackedProperty(value) {
	case TrackedPropertyAccountKey, TrackedPropertyAccountType,
		TrackedPropertyCurrency, TrackedPropertyMerchant, TrackedPropertyCategory:
		return TrackedProperty(value), true
	}
	return "", false
}

// IncomingUniqueValues collects each tracked property's distinct incoming
// values, sorted.
type IncomingUniqueValues struct {
	AccountKey  []string
	AccountType []string
	Currency    []string
	Merchant    []string
	Category    []string
}

// QueryKeyInventory summarizes the committed history's value sets for all
// tracked properties.
func QueryKeyInventory(q querier, dbPath string) (*contracts.ImportKeyInventory, error) {
	totalRows, err := queryTotalRows(q, dbPath)
	if err != nil {
		return nil, err
	}

	inventory := &contracts.ImportKeyInventory{}
	targets := []struct {
		property TrackedProperty
		dest     *contracts.ImportPropertyInventory
	}{
		{TrackedPropertyAccountKey, &inventory.AccountKey},
		{TrackedPropertyAccountType, &inventory.AccountType},
		{TrackedPropertyCurrency, &inventory.Currency},
		{TrackedPropertyMerchant, &inventory.Merchant},
		{TrackedPropertyCategory, &inventory.Category},
	}
	for _, target := range targets {
		propertyInventory, err := QueryPropertyInventory(q, dbPath, target.property, totalRows)
		if err != nil {
			return nil, err
		}
		*target.dest = *propertyInventory
	}
	return inventory, nil
}

// QueryPropertyInventory summarizes one property's committed values.
// account_type routes through the account-metadata table since the type is
// account-level, not transaction-level.
func QueryPropertyInventory(q querier, dbPath string, property TrackedProperty, totalRows int64) (*contracts.ImportPropertyInventory, error) {
	var nullSQL, valuesSQL string
	switch property {
	case TrackedPropertyAccountType:
		nullSQL = `SELECT COUNT(*)
			 FROM internal_transactions t
			 LEFT JOIN internal_accounts a ON a.account_key = t.account_key
			 WHERE a.account_type IS NULL OR TRIM(a.account_type) = ''`
		valuesSQL = `SELECT a.account_type, COUNT(*)
			 FROM internal_transactions t
			 LEFT JOIN internal_accounts a ON a.account_key = t.account_key
			 WHERE a.account_type IS NOT NULL AND TRIM(a.account_type) <> ''
			 GROUP BY a.account_type
			 ORDER BY a.account_type ASC`
	case TrackedPropertyAccountKey, TrackedPropertyCurrency,
		TrackedPropertyMerchant, TrackedPropertyCategory:
		column := string(property)
		nullSQL = fmt.Sprintf(
			"SELECT COUNT(*) FROM internal_transactions WHERE %s IS NULL OR TRIM(%s) = ''",
			column, column,
		)
		valuesSQL = fmt.Sprintf(
			`SELECT %s, COUNT(*)
			 FROM internal_transactions
			 WHERE %s IS NOT NULL AND TRIM(%s) <> ''
			 GROUP BY %s
			 ORDER BY %s ASC`,
			column, column, column, column, column,
		)
	default:
		return nil, driggerr.InvalidArgument(fmt.Sprintf("unsupported inventory property %q", property))
	}

	var nullCount int64
	if err := q.QueryRow(nullSQL).Scan(&nullCount); err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	rows, err := q.Query(valuesSQL)
	if err != nil {
		return nil, mapStoreError(dbPath, err)
	}
	defer rows.Close()

	existingValues := []string{}
	valueCounts := []contracts.ImportValueCount{}
	for rows.Next() {
		var valueCount contracts.ImportValueCount
		if err := rows.Scan(&valueCount.Value, &valueCount.Count); err != nil {
			return nil, mapStoreError(dbPath, err)
		}
		existingValues = append(existingValues, valueCount.Value)
		valueCounts = append(valueCounts, valueCount)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(dbPath, err)
	}

	return &contracts.ImportPropertyInventory{
		Property:       string(property),
		ExistingValues: existingValues,
		ValueCounts:    valueCounts,
		UniqueCount:    int64(len(existingValues)),
		NullCount:      nullCount,
		TotalRows:      totalRows,
	}, nil
}

// InventoryToList flattens the inventory struct in its fixed property
// order.
func InventoryToList(inventory *contracts.ImportKeyInventory) []contracts.ImportPropertyInventory {
	return []contracts.ImportPropertyInventory{
		inventory.AccountKey,
		inventory.AccountType,
		inventory.Currency,
		inventory.Merchant,
		inventory.Category,
	}
}

// IncomingUniqueValuesFrom collects the distinct tracked-property values
// present in a batch.
func IncomingUniqueValuesFrom(rows []BatchRow) IncomingUniqueValues {
	accountKey := make(map[string]struct{})
	accountType := make(map[string]struct{})
	currency := make(map[string]struct{})
	merchant := make(map[string]struct{})
	category := make(map[string]struct{})

	for _, batchRow := range rows {
		row := batchRow.Row
		accountKey[row.AccountKey] = struct{}{}
		currency[row.Currency] = struct{}{}
		if row.AccountType != nil {
			accountType[*row.AccountType] = struct{}{}
		}
		if row.Merchant != nil {
			merchant[*row.Merchant] = struct{}{}
		}
		if row.Category != nil {
			category[*row.Category] = struct{}{}
		}
	}

	return IncomingUniqueValues{
		AccountKey:  sortedKeys(accountKey),
		AccountType: sortedKeys(accountType),
		Currency:    sortedKeys(currency),
		Merchant:    sortedKeys(merchant),
		Category:    sortedKeys(category),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func queryTotalRows(q querier, dbPath string) (int64, error) {
	var total int64
	if err := q.QueryRow("SELECT COUNT(*) FROM internal_transactions").Scan(&total); err != nil {
		return 0, mapStoreError(dbPath, err)
	}
	return total, nil
}
