// Package parcel splits an ordered job list into balanced, order-preserving
// partitions ("parcels") and maps them onto the scheduler's array-index space.
package parcel

import (
	"fmt"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

// ArrayIndexBase is the array index assigned to the first parcel.
//
// Log and script paths downstream depend on this offset; do not change it.
const ArrayIndexBase = 100

// Split divides ids into n contiguous parcels whose sizes differ by at most
// one. Earlier parcels receive the remainder. The returned parcels share the
// backing array of ids.
func Split[T any](ids []T, n int) ([][]T, error) {
	if len(ids) == 0 {
		return nil, errs.EmptyJobList("partition")
	}
	if n < 1 || n > len(ids) {
		return nil, &errs.InvalidPartitionCountError{Requested: n, Jobs: len(ids)}
	}

	base, rem := len(ids)/n, len(ids)%n
	parcels := make([][]T, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		parcels = append(parcels, ids[start:start+size:start+size])
		start += size
	}
	return parcels, nil
}

// Sizes returns the length of each parcel.
func Sizes[T any](parcels [][]T) []int {
	out := make([]int, len(parcels))
	for i, p := range parcels {
		out[i] = len(p)
	}
	return out
}

// ArrayIndex maps a 0-based parcel position to its array index.
func ArrayIndex(position int) int {
	return ArrayIndexBase + position
}

// ArrayRange renders the inclusive array index range covering n parcels, e.g. "100-102".
func ArrayRange(n int) string {
	return fmt.Sprintf("%d-%d", ArrayIndex(0), ArrayIndex(n-1))
}
