package selector

import (
	"github.com/fenwick-bio/aligncore/alignpb"
)

// CigarOp is one run of a CIGAR-like alignment operation.
type CigarOp struct {
	Op  byte // 'M' (match/mismatch), 'I' (insertion), 'D' (deletion), 'S' (soft clip)
	Len int
}

// Fragment is a candidate alignment of one read to a reference position
// (spec §3 "Fragment").
type Fragment struct {
	ReadIndex     int
	Reverse       bool
	ContigID      int
	FStrandPos    int64 // leftmost forward-strand reference coordinate
	Cigar         []CigarOp
	EditDistance  int
	Score         int
	MapQ          int
	Dodgy         bool
	ClipFront     int
	ClipBack      int
	QualitySumHash uint64
	// Shadow is true when this fragment was produced by the shadow-rescue
	// search (spec §4.4 step 3, §8 S5) rather than from a seed match.
	Shadow bool
}

// Unmapped reports whether f represents "no confident position" (spec §3
// Bin's "unaligned bin... fragments with no position").
func (f Fragment) Unmapped() bool { return f.ContigID < 0 }

// unmappedFragment builds the sentinel Fragment for a read with no
// confident candidate.
func unmappedFragment(readIndex int, quals []byte) Fragment {
	return Fragment{
		ReadIndex:      readIndex,
		ContigID:       int(alignpb.UnmappedRefId),
		QualitySumHash: alignpb.QualitySummaryHash(quals),
	}
}
