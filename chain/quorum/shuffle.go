package quorum

// shuffleRange applies Fisher-Yates to list[lo:hi] in place, using m
// for all random draws. Determinism depends on m's sequence, not on
// any property of list beyond its length.
func shuffleRange[T any](list []T, lo, hi int, m *mt19937_64) {
	for i := hi - 1; i > lo; i-- {
		j := lo + int(m.Intn(uint64(i-lo+1)))
		list[i], list[j] = list[j], list[i]
	}
}

// partialShuffle implements generate_shuffled_service_node_index_list's
// two-region shuffle: shuffle positions [0,n) with a fresh engine,
// then independently shuffle positions [k,len(list)) with a second
// fresh engine seeded identically to the first (both come from
// newEngine, a pure function of the same quorum seed), so the two
// regions are each reproducible independent of the other's draw
// count. n is the boundary beyond which a value is ineligible to
// appear in the first region (e.g. "must be an active node", not a
// decommissioned one); k is the number of leading slots actually
// wanted (e.g. the validator count). Falls back to one full-range
// shuffle when there is no genuinely distinct sublist to draw from —
// n or k sitting at the list's own boundary — matching the source's
// equivalent fallback.
func partialShuffle[T any](list []T, n, k int, newEngine func() *mt19937_64) {
	if n > len(list) {
		n = len(list)
	}
	if k > n {
		k = n
	}
	if n <= 0 || n >= len(list) || k <= 0 || k >= len(list) {
		shuffleRange(list, 0, len(list), newEngine())
		return
	}
	shuffleRange(list, 0, n, newEngine())
	shuffleRange(list, k, len(list), newEngine())
}
