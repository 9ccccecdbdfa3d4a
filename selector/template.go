package selector

// DodgyPolicy controls the mapping-quality floor behavior (spec §4.4 step
// 4, §6 option "dodgyAlignmentScore").
type DodgyPolicy int

const (
	DodgyZero DodgyPolicy = iota
	DodgyUnaligned
	DodgyPassthrough
)

// Template is either a single fragment (single-ended) or a pair (spec
// §3 "Template").
type Template struct {
	Fragments   [2]Fragment // Fragments[1] is zero-valued for single-ended
	Paired      bool
	Orientation Orientation
	Length      int // observed template length, 0 if unpaired or unmapped
	Score       int // joint alignment score
	DuplicateRank DuplicateRank
}

// DuplicateRank packs the three fields spec §3 says a duplicate-rank
// comparison must order lexicographically: quality-sum, then
// length-minus-edit-distance, then alignment score. Higher sorts first
// ("the higher duplicate-rank [is] kept unmarked", spec §8 S6).
type DuplicateRank struct {
	QualitySum       int64
	LengthMinusEdits int
	AlignmentScore   int
}

// Compare returns <0, 0, >0 as r sorts before, equal to, or after o,
// implementing the total, transitive order spec §3 and §8 property 6
// require.
func (r DuplicateRank) Compare(o DuplicateRank) int {
	if r.QualitySum != o.QualitySum {
		if r.QualitySum > o.QualitySum {
			return -1
		}
		return 1
	}
	if r.LengthMinusEdits != o.LengthMinusEdits {
		if r.LengthMinusEdits > o.LengthMinusEdits {
			return -1
		}
		return 1
	}
	if r.AlignmentScore != o.AlignmentScore {
		if r.AlignmentScore > o.AlignmentScore {
			return -1
		}
		return 1
	}
	return 0
}

// qualitySum sums Phred quality values, used for DuplicateRank.
func qualitySum(quals []byte) int64 {
	var s int64
	for _, q := range quals {
		s += int64(q)
	}
	return s
}

// BuildDuplicateRank computes the duplicate-rank fields for a template
// from its fragment(s) and their original read qualities.
func BuildDuplicateRank(frags []Fragment, quals [][]byte) DuplicateRank {
	var r DuplicateRank
	readLen := 0
	for i, f := range frags {
		if f.Unmapped() {
			continue
		}
		r.QualitySum += qualitySum(quals[i])
		r.AlignmentScore += f.Score
		readLen += len(quals[i]) - f.EditDistance
	}
	r.LengthMinusEdits = readLen
	return r
}

// PairTemplate pairs the best candidate of each read into a Template (spec
// §4.4 step 3). It does not consult an insert-size model: the pairing is
// not checked against observed template lengths, and the template score is
// the sum of the two mates' scores.
// When both mates have confident positions, their orientation and
// observed length are computed directly. A fragment with Unmapped() true
// signals the caller should instead attempt the shadow search (see
// shadow.go) before calling PairTemplate with a rescued fragment in its
// place.
func PairTemplate(mate0, mate1 Fragment, quals [2][]byte, opts AlignOptions) Template {
	t := Template{Fragments: [2]Fragment{mate0, mate1}, Paired: true}

	if mate0.Unmapped() || mate1.Unmapped() {
		t.Score = mate0.Score + mate1.Score
		t.DuplicateRank = BuildDuplicateRank(t.Fragments[:], quals[:])
		return t
	}

	t.Orientation = pairOrientation(mate0, mate1)
	t.Length = pairLength(mate0, mate1)
	t.Score = mate0.Score + mate1.Score
	t.DuplicateRank = BuildDuplicateRank(t.Fragments[:], quals[:])
	return t
}

func pairOrientation(a, b Fragment) Orientation {
	switch {
	case a.Reverse == b.Reverse:
		return OrientationFF
	case !a.Reverse && a.FStrandPos <= b.FStrandPos:
		return OrientationFR
	default:
		return OrientationRF
	}
}

func pairLength(a, b Fragment) int {
	aEnd := a.FStrandPos + int64(cigarRefSpan(a.Cigar))
	bEnd := b.FStrandPos + int64(cigarRefSpan(b.Cigar))
	lo, hi := a.FStrandPos, aEnd
	if b.FStrandPos < lo {
		lo = b.FStrandPos
	}
	if bEnd > hi {
		hi = bEnd
	}
	return int(hi - lo)
}

func cigarRefSpan(cigar []CigarOp) int {
	span := 0
	for _, op := range cigar {
		if op.Op == 'M' || op.Op == 'D' {
			span += op.Len
		}
	}
	return span
}

// MappingQuality computes a Phred-scaled mapping quality from the number
// of equally-good candidates and the score margin to the next-best
// candidate (spec §4.4 step 4). A unique best candidate with no runner-up
// gets maxMapQ; otherwise quality degrades with a shrinking margin and a
// growing candidate count.
func MappingQuality(best Fragment, candidateCount int, margin int, maxMapQ int) int {
	if candidateCount <= 1 {
		return maxMapQ
	}
	if margin <= 0 {
		return 0
	}
	q := margin
	if q > maxMapQ {
		q = maxMapQ
	}
	// Each additional tied-or-close candidate halves the effective
	// confidence, mirroring how repeat copies erode mapping quality.
	for i := 1; i < candidateCount && q > 0; i++ {
		q /= 2
	}
	return q
}

// ApplyDodgyPolicy adjusts frag in place when its mapping quality falls
// below floor, per the configured policy (spec §4.4 step 4, §6
// "dodgyAlignmentScore").
func ApplyDodgyPolicy(frag *Fragment, floor int, policy DodgyPolicy) {
	if frag.MapQ >= floor {
		return
	}
	frag.Dodgy = true
	switch policy {
	case DodgyZero:
		frag.Score = 0
	case DodgyUnaligned:
		frag.ContigID = -1
	case DodgyPassthrough:
		// leave score and position as computed
	}
}
