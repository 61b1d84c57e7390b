package utils

import (
	"cmp"
	"slices"
)

// Map applies a function to each element of a slice and returns a new slice
func Map[T, U any](slice []T, fn func(T) U) []U {
	result := make([]U, len(slice))
	for i, v := range slice {
		result[i] = fn(v)
	}
	return result
}

// Filter returns a new slice containing only elements that satisfy the predicate
func Filter[T any](slice []T, predicate func(T) bool) []T {
	var result []T
	for _, v := range slice {
		if predicate(v) {
			result = append(result, v)
		}
	}
	return result
}

// Partition splits a slice into the elements that satisfy the predicate and the rest,
// keeping the original order in both halves.
func Partition[T any](slice []T, predicate func(T) bool) ([]T, []T) {
	var matched, rest []T
	for _, v := range slice {
		if predicate(v) {
			matched = append(matched, v)
		} else {
			rest = append(rest, v)
		}
	}
	return matched, rest
}

// FlatMap applies a function that returns a slice to each element and flattens the result
func FlatMap[T, U any](slice []T, fn func(T) []U) []U {
	var result []U
	for _, v := range slice {
		result = append(result, fn(v)...)
	}
	return result
}

// Some returns true if at least one element satisfies the predicate
func Some[T any](slice []T, predicate func(T) bool) bool {
	for _, v := range slice {
		if predicate(v) {
			return true
		}
	}
	return false
}

// Reduce applies a function against an accumulator and each element in the slice to reduce it to a single value
func Reduce[T, U any](slice []T, fn func(U, T) U, initial U) U {
	result := initial
	for _, v := range slice {
		result = fn(result, v)
	}
	return result
}

// SortedBy returns a copy of the slice stably sorted by the key, largest first.
func SortedBy[T any, K cmp.Ordered](slice []T, key func(T) K) []T {
	result := slices.Clone(slice)
	slices.SortStableFunc(result, func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	})
	return result
}

// Median returns the lower-middle average of the values, truncated like an integer pixel store.
// E.g., [10, 20, 30, 40] -> 25
func Median(values []uint8) uint8 {
	if len(values) == 0 {
		return 0
	}
	var histogram [256]int
	for _, v := range values {
		histogram[v]++
	}
	lower, upper := (len(values)-1)/2, len(values)/2
	lowValue, highValue := -1, -1
	seen := 0
	for value, count := range histogram {
		seen += count
		if lowValue < 0 && seen > lower {
			lowValue = value
		}
		if seen > upper {
			highValue = value
			break
		}
	}
	return uint8((lowValue + highValue) / 2)
}
