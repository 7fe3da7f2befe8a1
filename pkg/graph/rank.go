package graph

import "slices"

// SortStable orders items by cmp, keeping input order between equal items
func SortStable[T any](items []T, cmp func(a, b T) int) {
	slices.SortStableFunc(items, cmp)
}

// TopN returns at most the first n items
func TopN[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n >= len(items) {
		return items
	}
	return items[:n]
}

// DedupeFirst keeps the first item seen for every key
func DedupeFirst[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// descending compares two scores so that larger values sort first
func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
