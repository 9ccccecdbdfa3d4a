package selector

// AlignOptions carries the caller-supplied scoring parameters for
// candidate construction (spec §4.4 step 1).
type AlignOptions struct {
	MatchScore    int
	MismatchScore int // signed score added per mismatch (negative to penalize)
	GapOpenScore  int // signed score added to open a gap (negative to penalize)
	GapExtendScore int // signed score added per base to extend a gap (negative to penalize)

	// MaxUngappedMismatches bounds how many mismatches an ungapped
	// window alignment may have before the selector falls back to a
	// gapped local alignment for that candidate.
	MaxUngappedMismatches int
}

// ReferenceFetcher supplies reference bases for a contig window; the
// workflow controller wires this to a refindex.SequenceSource.
type ReferenceFetcher interface {
	Fetch(contigID int, start, end int64) ([]byte, error)
}

// alignUngapped performs a simple base-by-base comparison of readBases
// against refWindow from index 0 of each (refWindow is expected to be as
// long as readBases), matching spec §4.4 step 1's "ungapped alignment on a short
// window". It returns the mismatch count and a single all-M CigarOp list.
func alignUngapped(readBases, refWindow []byte) (mismatches int, cigar []CigarOp) {
	n := len(readBases)
	for i := 0; i < n && i < len(refWindow); i++ {
		if readBases[i] != refWindow[i] {
			mismatches++
		}
	}
	return mismatches, []CigarOp{{Op: 'M', Len: n}}
}

// alignGapped runs a full affine-gap (Gotoh) local alignment of readBases
// against refWindow, returning the best score, its CIGAR, and the edit
// distance along the traceback (spec §4.4 step 1's gapped fallback).
// refWindow is expected to be padded somewhat wider than readBases by the
// caller so true indels fit inside the window.
func alignGapped(readBases, refWindow []byte, opts AlignOptions) (score, editDistance, refStart int, cigar []CigarOp) {
	n, m := len(readBases), len(refWindow)
	if n == 0 || m == 0 {
		return 0, 0, 0, nil
	}

	const negInf = -1 << 30
	// match/mismatch (best), insertion-in-read (gap in ref), deletion (gap
	// in read) score matrices, Gotoh's three-matrix affine-gap recurrence.
	h := make2D(n+1, m+1)
	e := make2D(n+1, m+1) // gap in read (reference has extra base: deletion)
	f := make2D(n+1, m+1) // gap in reference (read has extra base: insertion)

	best := 0
	bestI, bestJ := 0, 0
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			e[i][j] = maxInt(h[i][j-1]+opts.GapOpenScore, e[i][j-1]+opts.GapExtendScore)
			f[i][j] = maxInt(h[i-1][j]+opts.GapOpenScore, f[i-1][j]+opts.GapExtendScore)

			sub := opts.MismatchScore
			if readBases[i-1] == refWindow[j-1] {
				sub = opts.MatchScore
			}
			diag := h[i-1][j-1] + sub

			h[i][j] = maxInt(0, maxInt(diag, maxInt(e[i][j], f[i][j])))
			if h[i][j] >= negInf && h[i][j] > best {
				best = h[i][j]
				bestI, bestJ = i, j
			}
		}
	}

	cigar, editDistance, endJ := traceback(readBases, refWindow, h, e, f, opts, bestI, bestJ)
	return best, editDistance, endJ, cigar
}

func make2D(rows, cols int) [][]int {
	out := make([][]int, rows)
	backing := make([]int, rows*cols)
	for i := range out {
		out[i] = backing[i*cols : (i+1)*cols]
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// traceback walks the Gotoh matrices backward from (i, j) to the first
// cell with score 0 (local alignment boundary), collapsing the walk into
// a run-length CIGAR and counting substitutions/indel bases as the edit
// distance.
func traceback(readBases, refWindow []byte, h, e, f [][]int, opts AlignOptions, i, j int) ([]CigarOp, int, int) {
	var ops []CigarOp
	editDistance := 0
	appendOp := func(op byte) {
		if len(ops) > 0 && ops[len(ops)-1].Op == op {
			ops[len(ops)-1].Len++
			return
		}
		ops = append(ops, CigarOp{Op: op, Len: 1})
	}

	for i > 0 && j > 0 && h[i][j] > 0 {
		sub := opts.MismatchScore
		if readBases[i-1] == refWindow[j-1] {
			sub = opts.MatchScore
		}
		switch {
		case h[i][j] == h[i-1][j-1]+sub:
			appendOp('M')
			if readBases[i-1] != refWindow[j-1] {
				editDistance++
			}
			i--
			j--
		case h[i][j] == e[i][j]:
			appendOp('D')
			editDistance++
			j--
		case h[i][j] == f[i][j]:
			appendOp('I')
			editDistance++
			i--
		default:
			// Numerical tie with no more score to explain; stop rather than
			// loop forever.
			i, j = 0, 0
		}
	}
	reverseCigar(ops)
	return ops, editDistance, j
}

func reverseCigar(ops []CigarOp) {
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
}
