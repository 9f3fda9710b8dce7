package idgen

import (
	"sort"
	"strings"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	for _, prefix := range []string{"imp", "txn", "cand"} {
		id := New(prefix)
		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("expected %q prefix, got %s", prefix, id)
		}
	}
}

func TestNewNeverCollides(t *testing.T) {
	seen := make(map[string]struct{})
	for index := 0; index < 10000; index++ {
		id := New("txn")
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewSortsByCreationOrder(t *testing.T) {
	ids := make([]string, 0, 100)
	for index := 0; index < 100; index++ {
		ids = append(ids, New("imp"))
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids generated in sequence must sort lexicographically")
	}
}
