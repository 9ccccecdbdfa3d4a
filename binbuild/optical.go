package binbuild

// markOptical flags, within one duplicate set, which marked duplicates
// are also "optical" (physically close to the kept primary on the
// flowcell surface), purely for metrics: it never changes which record
// stays unmarked (SPEC_FULL.md §C.4),
// adapted from the teacher's TileOpticalDetector.Detect which does the
// same comparison against a chosen primary plus a pairwise sweep of the
// remaining duplicates (markduplicates/optical.go).
func markOptical(recs []BinRecord, members []int, best int, opticalDistance int) {
	for _, i := range members {
		if i == best || !recs[i].Duplicate {
			continue
		}
		if isOpticalDup(opticalDistance, &recs[best], &recs[i]) {
			recs[i].Optical = true
			continue
		}
		for _, j := range members {
			if j == i || j == best || !recs[j].Duplicate {
				continue
			}
			if isOpticalDup(opticalDistance, &recs[j], &recs[i]) {
				recs[i].Optical = true
				break
			}
		}
	}
}

func isOpticalDup(opticalDistance int, a, b *BinRecord) bool {
	return abs32(a.X-b.X) <= int32(opticalDistance) && abs32(a.Y-b.Y) <= int32(opticalDistance)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
