package selector

import (
	"github.com/fenwick-bio/aligncore/alignpb"
)

// candidatePadding widens the reference window handed to the gapped
// aligner beyond the read length, so true indels still fit inside the
// window (spec §4.4 step 1).
const candidatePadding = 8

// BuildCandidate turns one match (reference_position, orientation) into a
// Fragment by first trying an ungapped alignment of the read against the
// reference window at pos, falling back to a gapped affine-gap alignment
// when the ungapped mismatch count exceeds opts.MaxUngappedMismatches
// (spec §4.4 step 1). readBases is already reverse-complemented by the
// caller when reverse is true, so this function only ever compares
// forward-oriented bytes.
func BuildCandidate(readIndex int, readBases, readQuals []byte, pos alignpb.ReferencePosition, reverse bool, ref ReferenceFetcher, opts AlignOptions) (Fragment, error) {
	contigID := pos.ContigId()
	start := pos.ContigOffset()
	end := start + int64(len(readBases))

	window, err := ref.Fetch(contigID, start, end)
	if err != nil {
		return Fragment{}, err
	}

	mismatches, cigar := alignUngapped(readBases, window)
	frag := Fragment{
		ReadIndex:      readIndex,
		Reverse:        reverse,
		ContigID:       contigID,
		FStrandPos:     start,
		Cigar:          cigar,
		EditDistance:   mismatches,
		Score:          (len(readBases)-mismatches)*opts.MatchScore + mismatches*opts.MismatchScore,
		QualitySumHash: alignpb.QualitySummaryHash(readQuals),
	}

	if mismatches <= opts.MaxUngappedMismatches {
		return frag, nil
	}

	padStart := start - candidatePadding
	if padStart < 0 {
		padStart = 0
	}
	padEnd := end + candidatePadding
	padded, err := ref.Fetch(contigID, padStart, padEnd)
	if err != nil {
		return frag, nil // keep the ungapped candidate if the wider window can't be fetched
	}
	score, editDistance, refStart, gcigar := alignGapped(readBases, padded, opts)
	if score <= frag.Score {
		return frag, nil
	}
	frag.Cigar = gcigar
	frag.EditDistance = editDistance
	frag.Score = score
	frag.FStrandPos = padStart + int64(refStart)
	return frag, nil
}

// SelectForRead builds every candidate fragment for one read's matches
// and retains the best, or the unmapped sentinel if readBases had no
// match records at all (spec §4.4 steps 1-2).
func SelectForRead(readIndex int, readBases, readQuals []byte, matches []alignpb.ReferencePosition, orientations []bool, tile, barcode, cluster int, repeatsScatter bool, ref ReferenceFetcher, opts AlignOptions) (Fragment, error) {
	if len(matches) == 0 {
		return unmappedFragment(readIndex, readQuals), nil
	}
	cands := make([]Fragment, 0, len(matches))
	for i, pos := range matches {
		bases := readBases
		if orientations[i] {
			bases = revcomp(readBases)
		}
		frag, err := BuildCandidate(readIndex, bases, readQuals, pos, orientations[i], ref, opts)
		if err != nil {
			return Fragment{}, err
		}
		cands = append(cands, frag)
	}
	best, _ := SelectBest(cands, tile, barcode, cluster, repeatsScatter)
	return best, nil
}

// SelectBest retains only the best-scoring candidate(s) from cands (spec
// §4.4 step 2 "retain only best-scoring candidates"). When multiple
// candidates tie for the top score, the pick is either deterministic
// (the first seen, same scan order as the match file) or, when
// repeatsScatter is enabled, chosen by cluster hash so that repeat
// regions don't all funnel reads to the same copy.
func SelectBest(cands []Fragment, tile, barcode, cluster int, repeatsScatter bool) (Fragment, bool) {
	if len(cands) == 0 {
		return Fragment{}, false
	}
	best := cands[0]
	var tied []int
	tied = append(tied, 0)
	for i := 1; i < len(cands); i++ {
		switch {
		case cands[i].Score > best.Score:
			best = cands[i]
			tied = tied[:0]
			tied = append(tied, i)
		case cands[i].Score == best.Score:
			tied = append(tied, i)
		}
	}
	if len(tied) == 1 || !repeatsScatter {
		return best, true
	}
	h := repeatScatterHash(tile, barcode, cluster)
	return cands[tied[int(h%uint64(len(tied)))]], true
}
