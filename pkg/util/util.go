package util

import (
	"cmp"
	"slices"
)

// Map returns mapper applied to every element of coll, passing the index along.
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SortedUnique returns a sorted copy of coll with duplicates removed, using
// key to order and compare elements.
func SortedUnique[A any, K cmp.Ordered](coll []A, key func(A) K) []A {
	out := slices.Clone(coll)
	slices.SortFunc(out, func(a, b A) int {
		return cmp.Compare(key(a), key(b))
	})
	return slices.CompactFunc(out, func(a, b A) bool {
		return key(a) == key(b)
	})
}
