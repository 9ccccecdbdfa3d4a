package binbuild

import "sort"

// SortRecords orders recs by fStrandPos, then by duplicate-rank
// descending within equal-position groups (spec §4.6 step 3). The sort
// is stable so that within a fully-tied group, original file order
// (arrival order, spec §8 property 6 "stable and total" combined with
// duplicate marking's tie-break) is preserved.
func SortRecords(recs []BinRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Mates[0].FStrandPos != b.Mates[0].FStrandPos {
			return a.Mates[0].FStrandPos < b.Mates[0].FStrandPos
		}
		return a.DuplicateRank.Compare(b.DuplicateRank) < 0
	})
}
