package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/cluster"
)

func makeBatch(seqs ...string) *cluster.Batch {
	n := len(seqs)
	cycLen := len(seqs[0])
	b := &cluster.Batch{
		Layout: cluster.FlowcellLayout{
			CycleCount: cycLen,
			Reads:      []cluster.ReadLayout{{Index: 0, Offset: 0, Length: cycLen}},
		},
		Bases:      make([]byte, 0, n*cycLen),
		Quals:      make([]byte, n*cycLen),
		PassFilter: make([]bool, n),
		Info:       make([]alignpb.ClusterInfo, n),
	}
	for i, s := range seqs {
		b.Bases = append(b.Bases, []byte(s)...)
		b.PassFilter[i] = true
		b.Info[i] = alignpb.NewClusterInfo(0, 0, true)
	}
	return b
}

func refIndexZero(int) int { return 0 }

func TestGenerateDeterministic(t *testing.T) {
	b := makeBatch("ACGTACGTACGTACGT")
	descs := []Descriptor{{ReadIndex: 0, Offset: 0, Length: 16, SeedIndex: 0}}

	s1 := Generate(b, descs, refIndexZero)[0]
	s2 := Generate(b, descs, refIndexZero)[0]
	SortByKmer(s1)
	SortByKmer(s2)
	require.Equal(t, len(s1), len(s2))
	for i := range s1 {
		assert.Equal(t, s1[i], s2[i])
	}
}

func TestGenerateForwardAndRevcomp(t *testing.T) {
	b := makeBatch("AAAAAAAACCCCCCCC")
	descs := []Descriptor{{ReadIndex: 0, Offset: 0, Length: 16, SeedIndex: 0}}
	seeds := Generate(b, descs, refIndexZero)[0]
	require.Len(t, seeds, 2)
	assert.NotEqual(t, seeds[0].Kmer, seeds[1].Kmer)
	assert.False(t, seeds[0].Orientation)
	assert.True(t, seeds[1].Orientation)
}

func TestGenerateAmbiguousSentinel(t *testing.T) {
	b := makeBatch("ACGTNCGTACGTACGT")
	descs := []Descriptor{{ReadIndex: 0, Offset: 0, Length: 16, SeedIndex: 0}}
	seeds := Generate(b, descs, refIndexZero)[0]
	require.Len(t, seeds, 2)
	for _, s := range seeds {
		assert.Equal(t, AmbiguousKmer, s.Kmer)
		assert.True(t, s.Id.IsNSeed())
		assert.True(t, s.Id.IsLowestNSeed())
	}
}

func TestGenerateSkipsClosedReads(t *testing.T) {
	b := makeBatch("ACGTACGTACGTACGT")
	b.Info[0] = b.Info[0].WithReadClosed(0)
	descs := []Descriptor{{ReadIndex: 0, Offset: 0, Length: 16, SeedIndex: 0}}
	seeds := Generate(b, descs, refIndexZero)
	assert.Empty(t, seeds[0])
}

func TestOnlyLowestAmbiguousSeedFlagged(t *testing.T) {
	b := makeBatch("NCGTACGTNCGTACGT")
	descs := []Descriptor{
		{ReadIndex: 0, Offset: 0, Length: 8, SeedIndex: 0},
		{ReadIndex: 0, Offset: 8, Length: 8, SeedIndex: 1},
	}
	seeds := Generate(b, descs, refIndexZero)[0]
	require.Len(t, seeds, 4)
	lowestCount := 0
	for _, s := range seeds {
		require.True(t, s.Id.IsNSeed())
		if s.Id.IsLowestNSeed() {
			lowestCount++
		}
	}
	assert.Equal(t, 2, lowestCount) // one descriptor (2 seed records) is flagged lowest
}
