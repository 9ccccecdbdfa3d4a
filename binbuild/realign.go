package binbuild

import (
	"github.com/fenwick-bio/aligncore/selector"
)

// Gap is one indel observed in a fragment's CIGAR, identified by the
// reference position it falls at (spec §4.6 step 2 "unique gaps observed
// in fragments of the bin").
type Gap struct {
	ContigID  int32
	RefOffset int64 // reference coordinate the gap starts at
	Length    int
	Insertion bool // true = insertion (read has extra bases), false = deletion
}

// CollectGaps walks every fragment's CIGAR in the bin and returns the
// distinct gaps observed, in first-seen order.
func CollectGaps(recs []BinRecord) []Gap {
	seen := map[Gap]bool{}
	var gaps []Gap
	for _, rec := range recs {
		for _, m := range rec.Mates {
			ref := m.FStrandPos
			for _, op := range m.Cigar {
				switch op.Op {
				case 'D':
					g := Gap{ContigID: m.ContigID, RefOffset: ref, Length: op.Len, Insertion: false}
					if !seen[g] {
						seen[g] = true
						gaps = append(gaps, g)
					}
				case 'I':
					g := Gap{ContigID: m.ContigID, RefOffset: ref, Length: op.Len, Insertion: true}
					if !seen[g] {
						seen[g] = true
						gaps = append(gaps, g)
					}
				}
				if op.Op == 'M' || op.Op == 'D' {
					ref += int64(op.Len)
				}
			}
		}
	}
	return gaps
}

// candidateGaps returns the gaps from all that fall within [start, end)
// on fragment's contig: only nearby gaps are worth trying against a
// given fragment.
func candidateGaps(all []Gap, contigID int32, start, end int64) []Gap {
	var out []Gap
	for _, g := range all {
		if g.ContigID == contigID && g.RefOffset >= start && g.RefOffset < end {
			out = append(out, g)
		}
	}
	return out
}

// combinations yields every subset of gaps with size 1..min(len(gaps),max).
func combinations(gaps []Gap, max int) [][]Gap {
	var out [][]Gap
	var rec func(start int, cur []Gap)
	rec = func(start int, cur []Gap) {
		if len(cur) > 0 {
			combo := append([]Gap(nil), cur...)
			out = append(out, combo)
		}
		if len(cur) >= max {
			return
		}
		for i := start; i < len(gaps); i++ {
			rec(i+1, append(cur, gaps[i]))
		}
	}
	rec(0, nil)
	return out
}

// applyGaps rewrites an all-match CIGAR of length readLen to insert the
// given gaps (sorted by RefOffset) at their corresponding positions and
// returns the new CIGAR.
func applyGaps(readLen int, start int64, gaps []Gap) []selector.CigarOp {
	sorted := append([]Gap(nil), gaps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].RefOffset > sorted[j].RefOffset; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var cigar []selector.CigarOp
	refCursor := start
	readRemaining := readLen
	for _, g := range sorted {
		if g.RefOffset < refCursor {
			continue // overlapping gap candidate, skip
		}
		matchLen := int(g.RefOffset - refCursor)
		if matchLen > readRemaining {
			break
		}
		if matchLen > 0 {
			cigar = append(cigar, selector.CigarOp{Op: 'M', Len: matchLen})
		}
		if g.Insertion {
			cigar = append(cigar, selector.CigarOp{Op: 'I', Len: g.Length})
			readRemaining -= matchLen + g.Length
		} else {
			cigar = append(cigar, selector.CigarOp{Op: 'D', Len: g.Length})
			readRemaining -= matchLen
		}
		refCursor = g.RefOffset
		if !g.Insertion {
			refCursor += int64(g.Length)
		}
	}
	if readRemaining > 0 {
		cigar = append(cigar, selector.CigarOp{Op: 'M', Len: readRemaining})
	}
	return cigar
}

// cigarEditDistance counts mismatches over the 'M' runs of cigar against
// ref, which is read from its index 0; insertions and deletions each count their
// full length as edits, matching the teacher's Levenshtein-style edit
// accounting in util/distance.go.
func cigarEditDistance(readBases, ref []byte, cigar []selector.CigarOp) int {
	edits := 0
	ri, qi := 0, 0
	for _, op := range cigar {
		switch op.Op {
		case 'M':
			for k := 0; k < op.Len; k++ {
				if ri+k >= len(ref) || qi+k >= len(readBases) || ref[ri+k] != readBases[qi+k] {
					edits++
				}
			}
			ri += op.Len
			qi += op.Len
		case 'D':
			edits += op.Len
			ri += op.Len
		case 'I':
			edits += op.Len
			qi += op.Len
		}
	}
	return edits
}

// RealignOptions bounds gap realignment (spec §4.6 step 2, §6 option
// "realignGaps").
type RealignOptions struct {
	MaxGapsPerFragment int
	ScoreThreshold     int // minimum edit-distance improvement required to accept a realignment
}

// Realign tries, for each fragment in recs, every combination of up to
// opts.MaxGapsPerFragment of the bin's unique gaps that fall within the
// fragment's reference span, and keeps whichever arrangement (including
// the original) minimizes edit distance (spec §4.6 step 2). It mutates
// recs in place and returns the count of fragments actually rewritten.
func Realign(recs []BinRecord, ref selector.ReferenceFetcher, readBasesByFileIdx map[uint64][2][]byte, opts RealignOptions) (int, error) {
	allGaps := CollectGaps(recs)
	if len(allGaps) == 0 || opts.MaxGapsPerFragment <= 0 {
		return 0, nil
	}

	changed := 0
	for ri := range recs {
		rec := &recs[ri]
		readPair, ok := readBasesByFileIdx[rec.FileIdx]
		if !ok {
			continue
		}
		for mi := range rec.Mates {
			m := &rec.Mates[mi]
			readBases := readPair[mi]
			if len(readBases) == 0 {
				continue
			}
			span := int64(len(readBases)) + int64(opts.MaxGapsPerFragment)*32
			nearby := candidateGaps(allGaps, m.ContigID, m.FStrandPos-span, m.FStrandPos+span)
			if len(nearby) == 0 {
				continue
			}
			window, err := ref.Fetch(int(m.ContigID), m.FStrandPos, m.FStrandPos+span)
			if err != nil {
				continue
			}
			bestCigar := m.Cigar
			bestEdits := cigarEditDistance(readBases, window, m.Cigar)
			rewrote := false
			for _, combo := range combinations(nearby, opts.MaxGapsPerFragment) {
				cand := applyGaps(len(readBases), m.FStrandPos, combo)
				edits := cigarEditDistance(readBases, window, cand)
				if bestEdits-edits >= opts.ScoreThreshold && edits < bestEdits {
					bestEdits = edits
					bestCigar = cand
					rewrote = true
				}
			}
			if rewrote {
				m.Cigar = bestCigar
				m.EditDistance = bestEdits
				changed++
			}
		}
	}
	return changed, nil
}
