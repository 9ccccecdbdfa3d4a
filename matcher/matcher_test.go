package matcher

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/seed"
)

// sliceMask adapts a sorted slice of (kmer, pos) pairs to MaskRecordSource.
type sliceMask struct {
	kmers []uint64
	pos   []alignpb.ReferencePosition
	i     int
}

func (s *sliceMask) Next() (uint64, alignpb.ReferencePosition, error) {
	if s.i >= len(s.kmers) {
		return 0, 0, io.EOF
	}
	k, p := s.kmers[s.i], s.pos[s.i]
	s.i++
	return k, p, nil
}

func seedID(idx, orient int, sentinel bool) alignpb.SeedId {
	return alignpb.PackSeedId(0, 0, 1, idx, orient != 0, sentinel)
}

type recorder struct {
	writes []struct {
		id  alignpb.SeedId
		pos alignpb.ReferencePosition
	}
	closed map[alignpb.SeedId]bool
}

func newRecorder() *recorder {
	return &recorder{closed: map[alignpb.SeedId]bool{}}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Write: func(id alignpb.SeedId, pos alignpb.ReferencePosition) error {
			r.writes = append(r.writes, struct {
				id  alignpb.SeedId
				pos alignpb.ReferencePosition
			}{id, pos})
			return nil
		},
		CloseRead: func(id alignpb.SeedId) { r.closed[id] = true },
	}
}

// S1: a single seed with a unique exact k-mer match is written once and
// closes its read.
func TestRunExactPass_SingleExactHit(t *testing.T) {
	sid := seedID(0, 0, false)
	seeds := []seed.Seed{{Kmer: 42, Id: sid}}
	pos := alignpb.PackReferencePosition(3, 1000, false)
	mf := &sliceMask{kmers: []uint64{42}, pos: []alignpb.ReferencePosition{pos}}

	r := newRecorder()
	require.NoError(t, RunExactPass(seeds, mf, Options{RepeatThreshold: 10}, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, sid, r.writes[0].id)
	assert.Equal(t, pos, r.writes[0].pos)
	assert.True(t, r.closed[sid])
}

// S2: an ambiguous cluster produces exactly one no-match record across
// both sentinel seeds, and only the lowest-indexed one closes the read.
func TestRunExactPass_AmbiguousCluster(t *testing.T) {
	low := seedID(alignpb.MaxSeedIndex, 0, true)
	high := seedID(alignpb.MaxSeedIndex, 0, false)
	seeds := []seed.Seed{
		{Kmer: seed.AmbiguousKmer, Id: low},
		{Kmer: seed.AmbiguousKmer, Id: high},
	}
	mf := &sliceMask{}

	r := newRecorder()
	require.NoError(t, RunExactPass(seeds, mf, Options{RepeatThreshold: 10}, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, low, r.writes[0].id)
	assert.Equal(t, alignpb.NoMatch, r.writes[0].pos)
	assert.True(t, r.closed[low])
	assert.False(t, r.closed[high])
}

// S3: a k-mer with >= RepeatThreshold reference occurrences yields
// TOO_MANY_MATCH for every seed sharing it, and closes their reads.
func TestRunExactPass_TooManyMatch(t *testing.T) {
	sid := seedID(0, 0, false)
	seeds := []seed.Seed{{Kmer: 7, Id: sid}}
	kmers := []uint64{7, 7, 7}
	positions := []alignpb.ReferencePosition{
		alignpb.PackReferencePosition(0, 1, false),
		alignpb.PackReferencePosition(0, 2, false),
		alignpb.PackReferencePosition(0, 3, false),
	}
	mf := &sliceMask{kmers: kmers, pos: positions}

	r := newRecorder()
	require.NoError(t, RunExactPass(seeds, mf, Options{RepeatThreshold: 2}, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, alignpb.TooManyMatch, r.writes[0].pos)
	assert.True(t, r.closed[sid])
}

// A k-mer with no reference entry at all (seed k-mer sorts before the
// next ref k-mer, or mask is exhausted) gets an immediate no-match and
// does not close the read, since a later iteration's seed may still
// match.
func TestRunExactPass_NoMatchDoesNotClose(t *testing.T) {
	sid := seedID(0, 0, false)
	seeds := []seed.Seed{{Kmer: 5, Id: sid}}
	mf := &sliceMask{kmers: []uint64{9}, pos: []alignpb.ReferencePosition{alignpb.PackReferencePosition(0, 1, false)}}

	r := newRecorder()
	require.NoError(t, RunExactPass(seeds, mf, Options{RepeatThreshold: 10}, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, alignpb.NoMatch, r.writes[0].pos)
	assert.False(t, r.closed[sid])
}

type fakeNeighborSource struct {
	records map[uint32][]PrefixRecord
}

func (f *fakeNeighborSource) Records(prefix uint32) []PrefixRecord {
	return f.records[prefix]
}

// S4: a seed with one mismatched base in its suffix is rescued by the
// neighbor pass, with the neighbors flag forced on.
func TestRunNeighborPass_OneMismatchMatch(t *testing.T) {
	// Use a tiny kmer so the math stays legible: suffixBits = 8 (4 bases),
	// so kmer 0xAB01 has prefix kmer>>8 = 0xAB and suffix 0x01.
	const suffixBits = 8
	prefix := uint32(0x000000AB)
	kmer := uint64(prefix)<<suffixBits | 0x1 // suffix bases: [0,0,0,1]

	sid := seedID(0, 0, false)
	seeds := []seed.Seed{{Kmer: kmer, Id: sid}}

	refPos := alignpb.PackReferencePosition(1, 77, false)
	src := &fakeNeighborSource{records: map[uint32][]PrefixRecord{
		prefix: {{SuffixBases: []byte{0, 0, 0, 2}, Pos: refPos}},
	}}

	r := newRecorder()
	opts := Options{NeighborhoodSizeThreshold: 10}
	require.NoError(t, RunNeighborPass(seeds, suffixBits, src, opts, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, sid, r.writes[0].id)
	assert.True(t, r.writes[0].pos.HasNeighbors())
	assert.Equal(t, refPos.ContigId(), r.writes[0].pos.ContigId())
	assert.Equal(t, refPos.ContigOffset(), r.writes[0].pos.ContigOffset())
	assert.False(t, r.closed[sid])
}

// When a prefix bucket exceeds NeighborhoodSizeThreshold, every seed
// sharing it gets a NoMatch instead of a partial search.
func TestRunNeighborPass_BucketOverflowIsNoMatch(t *testing.T) {
	const suffixBits = 8
	prefix := uint32(0x1)
	kmer := uint64(prefix) << suffixBits

	sid := seedID(0, 0, false)
	seeds := []seed.Seed{{Kmer: kmer, Id: sid}}

	src := &fakeNeighborSource{records: map[uint32][]PrefixRecord{
		prefix: {
			{SuffixBases: []byte{0, 0, 0, 0}, Pos: alignpb.PackReferencePosition(0, 1, false)},
			{SuffixBases: []byte{0, 0, 0, 1}, Pos: alignpb.PackReferencePosition(0, 2, false)},
		},
	}}

	r := newRecorder()
	opts := Options{NeighborhoodSizeThreshold: 1}
	require.NoError(t, RunNeighborPass(seeds, suffixBits, src, opts, r.callbacks()))

	require.Len(t, r.writes, 1)
	assert.Equal(t, alignpb.NoMatch, r.writes[0].pos)
}
