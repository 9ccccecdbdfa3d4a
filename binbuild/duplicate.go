package binbuild

// duplicateKey groups duplicate candidates the way the teacher's
// markduplicates.duplicateKey does (reference, position, orientation),
// widened with mate info and library scope per spec §4.6 step 4: "two
// fragments are duplicate candidates iff they share strand, fStrandPos,
// and mate info (storage bin + mate strand + mate anchor)". LibraryID is
// part of the key so that duplicate scope stays within a library unless
// SingleLibrarySamples widens it to the whole barcode. The mate's storage
// bin is not part of the key: mate info is the mate's strand and anchor
// only.
type duplicateKey struct {
	libraryID  int32 // zeroed when scope is barcode-wide
	barcode    int32
	contigID   int32
	fStrandPos int64
	reverse    bool
	mateStrand bool
	mateAnchor int64 // Mates[1].FStrandPos, or -1 for an unpaired record
}

func mateAnchorOf(r *BinRecord) int64 {
	if !r.Paired {
		return -1
	}
	return r.Mates[1].FStrandPos
}

func keyFor(r *BinRecord, singleLibrarySamples bool) duplicateKey {
	lib := r.LibraryID
	if singleLibrarySamples {
		lib = 0
	}
	return duplicateKey{
		libraryID:  lib,
		barcode:    r.Barcode,
		contigID:   r.Mates[0].ContigID,
		fStrandPos: r.Mates[0].FStrandPos,
		reverse:    r.Mates[0].Reverse,
		mateStrand: r.Mates[1].Reverse,
		mateAnchor: mateAnchorOf(r),
	}
}

// MarkOptions controls duplicate marking (spec §6 "keepDuplicates",
// "markDuplicates").
type MarkOptions struct {
	SingleLibrarySamples bool
	OpticalDistance      int // <=0 disables optical detection
}

// MarkDuplicates groups recs (already sorted by SortRecords) into
// duplicate-candidate sets keyed by keyFor, keeps the member with the
// highest duplicate-rank unmarked, and flags the rest (spec §4.6 step
// 4). It mutates recs in place and returns the number of fragments
// newly marked as duplicates.
func MarkDuplicates(recs []BinRecord, opts MarkOptions) int {
	groups := map[duplicateKey][]int{}
	for i := range recs {
		k := keyFor(&recs[i], opts.SingleLibrarySamples)
		groups[k] = append(groups[k], i)
	}

	marked := 0
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		best := members[0]
		for _, i := range members[1:] {
			if recs[i].DuplicateRank.Compare(recs[best].DuplicateRank) < 0 {
				best = i
			} else if recs[i].DuplicateRank.Compare(recs[best].DuplicateRank) == 0 && recs[i].FileIdx < recs[best].FileIdx {
				// Tie-break on arrival order, same as the teacher's
				// ChoosePrimary preferring the lower FileIdx.
				best = i
			}
		}
		for _, i := range members {
			if i == best {
				continue
			}
			recs[i].Duplicate = true
			marked++
		}
		if opts.OpticalDistance > 0 {
			markOptical(recs, members, best, opts.OpticalDistance)
		}
	}
	return marked
}
