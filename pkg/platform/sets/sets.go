// Package sets provides small helpers for treating slices as sets.
package sets

import (
	"cmp"
	"slices"
)

// Dedupe removes duplicate elements from a slice. Order of first occurrence
// is preserved.
//
// Example:
//
//	Dedupe([]int{3, 1, 3, 2, 1})
//	// Returns: []int{3, 1, 2}
func Dedupe[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// Canonical returns the sorted, de-duplicated form of values so that two
// slices holding the same members compare equal. The input is not modified.
func Canonical[T cmp.Ordered](values []T) []T {
	out := Dedupe(slices.Clone(values))
	slices.Sort(out)
	return out
}

// Contains reports membership in a canonical (sorted) slice.
func Contains[T cmp.Ordered](sorted []T, v T) bool {
	_, found := slices.BinarySearch(sorted, v)
	return found
}
