// Package idgen generates monotonic, sortable identifiers for ledger
// entities. UUIDv7 values embed a millisecond timestamp in their high bits,
// so import and transaction ids sort by creation order without a secondary
// timestamp column.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed, monotonically sortable identifier: the UUID's 32
// lowercase hex digits with the dashes removed, e.g.
// New("txn") -> "txn_018f1f1e....".
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + strings.ReplaceAll(id.String(), "-", "")
}
