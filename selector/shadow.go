package selector

import "github.com/fenwick-bio/aligncore/alignpb"

// ShadowSearchWindow bounds the rescue search around an anchored mate by
// a multiple of the estimated template length, rather than a fixed
// constant, following the original implementation (SPEC_FULL.md §C.3)
// rather than spec.md's silence on the exact bound.
func ShadowSearchWindow(est *TemplateLengthEstimator, defaultWindow int64) int64 {
	median, stddev := est.Model()
	w := int64(median + 4*stddev)
	if w < defaultWindow {
		return defaultWindow
	}
	return w
}

// ShadowRescue searches the neighborhood of anchor (the confidently
// mapped mate) for a best-scoring placement of mateBases, when the mate
// itself produced no seed match (spec §4.4 step 3, §8 S5 "paired-end
// rescue"). It tries both orientations consistent with an FR pair and
// keeps the better-scoring placement; ref windows wider than mateBases by
// 2*window are fetched once and scanned with the ungapped aligner at
// every offset. The gapped aligner is not used, so a rescued mate always
// carries an all-M CIGAR.
func ShadowRescue(anchor Fragment, mateBases, mateQuals []byte, window int64, ref ReferenceFetcher, opts AlignOptions) (Fragment, bool) {
	anchorEnd := anchor.FStrandPos + int64(cigarRefSpan(anchor.Cigar))
	start := anchor.FStrandPos - window
	if start < 0 {
		start = 0
	}
	end := anchorEnd + window

	refWindow, err := ref.Fetch(anchor.ContigID, start, end)
	if err != nil || len(refWindow) < len(mateBases) {
		return Fragment{}, false
	}

	best := Fragment{}
	bestScore := -1 << 30
	found := false

	for _, reverse := range [2]bool{!anchor.Reverse, anchor.Reverse} {
		bases := mateBases
		if reverse {
			bases = revcomp(mateBases)
		}
		for offset := 0; offset+len(bases) <= len(refWindow); offset++ {
			mismatches, cigar := alignUngapped(bases, refWindow[offset:offset+len(bases)])
			score := (len(bases)-mismatches)*opts.MatchScore + mismatches*opts.MismatchScore
			if score > bestScore {
				bestScore = score
				best = Fragment{
					Reverse:        reverse,
					ContigID:       anchor.ContigID,
					FStrandPos:     start + int64(offset),
					Cigar:          cigar,
					EditDistance:   mismatches,
					Score:          score,
					Shadow:         true,
					QualitySumHash: alignpb.QualitySummaryHash(mateQuals),
				}
				found = true
			}
		}
	}
	return best, found
}

func revcomp(bases []byte) []byte {
	out := make([]byte, len(bases))
	for i, b := range bases {
		out[len(bases)-1-i] = complementBase(b)
	}
	return out
}

func complementBase(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	default:
		return b
	}
}
