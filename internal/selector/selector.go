// Package selector picks one entry uniformly at random from the union of
// one or more collections. Reproducibility across runs is explicitly not
// wanted: a seeded source would email the same item every week.
package selector

import (
	"math/rand/v2"

	"shelfsync/internal/catalog"
	"shelfsync/internal/liberr"
)

// PickOne flattens the given pools and chooses one entry uniformly at
// random. An empty union is a configuration problem worth surfacing, not
// something to skip silently.
func PickOne(pools ...[]catalog.ResolvedEntry) (catalog.ResolvedEntry, error) {
	total := 0
	for _, p := range pools {
		total += len(p)
	}
	if total == 0 {
		return catalog.ResolvedEntry{}, liberr.EmptyPool("no entries in any collection")
	}

	n := rand.IntN(total)
	for _, p := range pools {
		if n < len(p) {
			return p[n], nil
		}
		n -= len(p)
	}
	// Unreachable: n < total and the pools sum to total.
	return catalog.ResolvedEntry{}, liberr.New(liberr.CategoryInternal, liberr.SeverityFatal, "selection index out of range")
}

// PickIndex returns a uniformly random index into a pool of size n. Callers
// that need to keep per-candidate bookkeeping (sent-log keys) pick by index
// instead of by value.
func PickIndex(n int) (int, error) {
	if n <= 0 {
		return 0, liberr.EmptyPool("no candidates")
	}
	return rand.IntN(n), nil
}
