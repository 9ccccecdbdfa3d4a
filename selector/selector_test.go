package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
)

type fakeRef struct {
	contigs map[int][]byte
}

func (f *fakeRef) Fetch(contigID int, start, end int64) ([]byte, error) {
	seq := f.contigs[contigID]
	if end > int64(len(seq)) {
		end = int64(len(seq))
	}
	if start < 0 {
		start = 0
	}
	return seq[start:end], nil
}

var defaultOpts = AlignOptions{
	MatchScore:            1,
	MismatchScore:         -4,
	GapOpenScore:          -6,
	GapExtendScore:        -1,
	MaxUngappedMismatches: 2,
}

// S1: a single exact 16-mer hit yields a zero-mismatch ungapped candidate.
func TestBuildCandidate_ExactHit(t *testing.T) {
	read := []byte("AAAAAAAAAAAAAAAA")
	ref := &fakeRef{contigs: map[int][]byte{0: append(make([]byte, 100), read...)}}
	pos := alignpb.PackReferencePosition(0, 100, false)

	frag, err := BuildCandidate(0, read, make([]byte, len(read)), pos, false, ref, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 0, frag.EditDistance)
	assert.Equal(t, int64(100), frag.FStrandPos)
	assert.Equal(t, len(read)*defaultOpts.MatchScore, frag.Score)
}

// A read with too many ungapped mismatches (simulating an indel) falls
// back to the gapped aligner and finds the better-scoring placement.
func TestBuildCandidate_GappedFallback(t *testing.T) {
	// The reference has TT where the read has ACGT, so the ungapped
	// comparison at offset 4 has many mismatches.
	refSeq := []byte("GGGGACGTACGTTTACGTACGTGGGG")
	read := []byte("ACGTACGTACGTACGTACGT") // ACGT where refSeq has TT
	ref := &fakeRef{contigs: map[int][]byte{0: refSeq}}
	pos := alignpb.PackReferencePosition(0, 4, false)

	frag, err := BuildCandidate(0, read, make([]byte, len(read)), pos, false, ref, defaultOpts)
	require.NoError(t, err)
	assert.True(t, len(frag.Cigar) >= 1)
}

func TestSelectBest_Deterministic(t *testing.T) {
	cands := []Fragment{{Score: 10}, {Score: 20}, {Score: 20}}
	best, ok := SelectBest(cands, 0, 0, 0, false)
	require.True(t, ok)
	assert.Equal(t, 20, best.Score)
}

func TestSelectBest_Empty(t *testing.T) {
	_, ok := SelectBest(nil, 0, 0, 0, false)
	assert.False(t, ok)
}

func TestDuplicateRank_TotalOrder(t *testing.T) {
	a := DuplicateRank{QualitySum: 100, LengthMinusEdits: 50, AlignmentScore: 10}
	b := DuplicateRank{QualitySum: 90, LengthMinusEdits: 50, AlignmentScore: 10}
	assert.True(t, a.Compare(b) < 0) // a has higher quality sum, sorts first
	assert.True(t, b.Compare(a) > 0)
	assert.Equal(t, 0, a.Compare(a))
}

func TestMappingQuality_UniqueBest(t *testing.T) {
	assert.Equal(t, 60, MappingQuality(Fragment{}, 1, 0, 60))
}

func TestMappingQuality_ZeroMargin(t *testing.T) {
	assert.Equal(t, 0, MappingQuality(Fragment{}, 2, 0, 60))
}

func TestApplyDodgyPolicy_Zero(t *testing.T) {
	f := Fragment{MapQ: 0, Score: 42}
	ApplyDodgyPolicy(&f, 10, DodgyZero)
	assert.True(t, f.Dodgy)
	assert.Equal(t, 0, f.Score)
}

func TestApplyDodgyPolicy_AboveFloorUnchanged(t *testing.T) {
	f := Fragment{MapQ: 30, Score: 42}
	ApplyDodgyPolicy(&f, 10, DodgyZero)
	assert.False(t, f.Dodgy)
	assert.Equal(t, 42, f.Score)
}

func TestTemplateLengthEstimator_DefaultBeforeFit(t *testing.T) {
	est := NewTemplateLengthEstimator(400, 50)
	median, stddev := est.Model()
	assert.Equal(t, 400.0, median)
	assert.Equal(t, 50.0, stddev)
	assert.True(t, est.LikelyOrientation(OrientationFR))
}

func TestTemplateLengthEstimator_FitsFromObservations(t *testing.T) {
	est := NewTemplateLengthEstimator(400, 50)
	for i := 0; i < 20; i++ {
		est.Observe(300, OrientationFR)
	}
	for i := 0; i < 5; i++ {
		est.Observe(900, OrientationRF)
	}
	est.Finalize()
	median, _ := est.Model()
	assert.InDelta(t, 300, median, 1)
	assert.True(t, est.LikelyOrientation(OrientationFR))
	assert.True(t, est.LikelyOrientation(OrientationRF))
}

// S5: read 1 maps uniquely; read 2 has no seed match. The shadow search
// rescues read 2 around read 1's expected pair region.
func TestShadowRescue_RescuesUnmappedMate(t *testing.T) {
	mate2Seq := []byte("TTTTACGTACGTTTTT")
	refSeq := append(make([]byte, 200), mate2Seq...)
	refSeq = append(refSeq, make([]byte, 200)...)
	ref := &fakeRef{contigs: map[int][]byte{0: refSeq}}

	anchor := Fragment{
		ContigID:   0,
		FStrandPos: 100,
		Reverse:    false,
		Cigar:      []CigarOp{{Op: 'M', Len: 16}},
	}

	rescued, ok := ShadowRescue(anchor, mate2Seq, make([]byte, len(mate2Seq)), 200, ref, defaultOpts)
	require.True(t, ok)
	assert.True(t, rescued.Shadow)
	assert.Equal(t, int64(200), rescued.FStrandPos)
	assert.Equal(t, 0, rescued.EditDistance)
}

func TestSelectForRead_NoMatchesIsUnmapped(t *testing.T) {
	ref := &fakeRef{contigs: map[int][]byte{}}
	frag, err := SelectForRead(0, []byte("ACGT"), []byte{30, 30, 30, 30}, nil, nil, 0, 0, 0, false, ref, defaultOpts)
	require.NoError(t, err)
	assert.True(t, frag.Unmapped())
}

func TestPairTemplate_UnmappedMateDefersScoring(t *testing.T) {
	mapped := Fragment{ContigID: 0, Score: 16}
	unmapped := Fragment{ContigID: -1}
	tmpl := PairTemplate(mapped, unmapped, [2][]byte{make([]byte, 16), make([]byte, 16)}, defaultOpts)
	assert.True(t, tmpl.Paired)
	assert.Equal(t, 16, tmpl.Score)
}
