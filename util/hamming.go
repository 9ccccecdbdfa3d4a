package util

// HammingDistance returns the number of positions at which a and b differ.
// It panics if the two byte slices have different lengths, matching
// Levenshtein's convention in this package. Used by the barcode resolver
// (mismatch-bounded sample lookup) and by the matcher's one-mismatch
// neighbor pass (spec §4.2).
func HammingDistance(a, b []byte) int {
	if len(a) != len(b) {
		panic("util: HammingDistance requires equal-length inputs")
	}
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// HammingDistanceAtMost reports whether HammingDistance(a, b) <= max,
// short-circuiting once the budget is exceeded. This matters for the
// matcher's neighbor pass, which runs over many candidate suffixes per
// seed and only cares whether distance <= 1.
func HammingDistanceAtMost(a, b []byte, max int) bool {
	if len(a) != len(b) {
		panic("util: HammingDistanceAtMost requires equal-length inputs")
	}
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
			if d > max {
				return false
			}
		}
	}
	return true
}
