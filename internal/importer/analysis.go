package importer

import (
	"github.com/mzxrai/driggsby/internal/contracts"
)

// DryRunAnalysis is the drift report a dry-run returns: the ledger's value
// inventory, its per-account sign profiles, and the warnings produced by
// comparing the batch against both.
type DryRunAnalysis struct {
	KeyInventory  contracts.ImportKeyInventory
	SignProfiles  []contracts.ImportSignProfile
	DriftWarnings []contracts.ImportDriftWarning
}

// AnalyzeDryRun runs the full drift analysis against the would-be-inserted
// rows, inside the caller's (to-be-rolled-back) transaction so the numbers
// reflect the exact state a commit would see.
func AnalyzeDryRun(q querier, dbPath string, rows []BatchRow) (*DryRunAnalysis, error) {
	keyInventory, err := QueryKeyInventory(q, dbPath)
	if err != nil {
		return nil, err
	}
	existingSignCounts, err := ExistingSignCountMap(q, dbPath)
	if err != nil {
		return nil, err
	}

	incomingValues := IncomingUniqueValuesFrom(rows)
	incomingSignCounts := IncomingSignCountMap(rows)

	return &DryRunAnalysis{
		KeyInventory: *keyInventory,
		SignProfiles: ProfilesFromSignCounts(existingSignCounts),
		DriftWarnings: BuildDriftWarnings(
			keyInventory, incomingValues, existingSignCounts, incomingSignCounts,
		),
	}, nil
}
