package migration

import "sort"

// Sort returns a new slice of units ordered by ascending Version.
// The sort is stable so equal versions keep their registration order.
func Sort(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version.Less(sorted[j].Version)
	})

	return sorted
}
