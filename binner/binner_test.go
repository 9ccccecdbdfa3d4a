package binner

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDistribution_AddAndQuery(t *testing.T) {
	d := NewMatchDistribution([]int64{10000})
	d.Add(0, 100)
	d.Add(0, 200)
	d.Add(0, 3000)

	assert.Equal(t, int64(2), d.BucketCount(0, 100))
	assert.Equal(t, int64(1), d.BucketCount(0, 3000))
	assert.Equal(t, int64(3), d.Total())
}

func TestMatchDistribution_OutOfRangeIgnored(t *testing.T) {
	d := NewMatchDistribution([]int64{1000})
	d.Add(5, 100) // out-of-range contig
	d.Add(0, -1)  // out-of-range offset
	assert.Equal(t, int64(0), d.Total())
}

// Every fragment appears in exactly one bin (spec §8 property 5): bin
// assignment never leaves gaps or overlaps within a contig.
func TestAssignBins_CoversContigExactlyOnce(t *testing.T) {
	lengths := []int64{20000}
	d := NewMatchDistribution(lengths)
	for i := int64(0); i < lengths[0]; i += bucketSize {
		d.Add(0, i)
	}
	bins := AssignBins(d, 3)

	require.NotEmpty(t, bins)
	assert.Equal(t, int64(0), bins[0].Start)
	for i := 1; i < len(bins); i++ {
		assert.Equal(t, bins[i-1].End, bins[i].Start, "bins must be contiguous with no gap or overlap")
	}
	last := bins[len(bins)-1]
	assert.True(t, last.End >= lengths[0])
}

func TestAssignBins_NeverSpansContigs(t *testing.T) {
	d := NewMatchDistribution([]int64{4000, 4000})
	bins := AssignBins(d, 1<<30) // huge threshold: would merge everything if bins could span contigs
	require.Len(t, bins, 2)
	assert.Equal(t, 0, bins[0].ContigID)
	assert.Equal(t, 1, bins[1].ContigID)
}

func TestIndex_LookupFindsContainingBin(t *testing.T) {
	bins := []Bin{
		{ID: 0, ContigID: 0, Start: 0, End: 2048},
		{ID: 1, ContigID: 0, Start: 2048, End: 4096},
		{ID: 2, ContigID: 1, Start: 0, End: 2048},
	}
	idx := BuildIndex(bins)

	b, ok := idx.Lookup(0, 3000)
	require.True(t, ok)
	assert.Equal(t, 1, b.ID)

	b, ok = idx.Lookup(1, 100)
	require.True(t, ok)
	assert.Equal(t, 2, b.ID)

	_, ok = idx.Lookup(0, 10000)
	assert.False(t, ok)

	_, ok = idx.Lookup(-1, 0)
	assert.False(t, ok)
}

func TestFilterBins_DropAndMerge(t *testing.T) {
	bins := []Bin{
		{ID: 0, ContigID: 0, Start: 0, End: 2048},
		{ID: 1, ContigID: 0, Start: 2048, End: 4096},
		{ID: 2, ContigID: 1, Start: 0, End: 2048},
	}
	names := map[int]string{0: "chr1", 1: "chrM"}
	contigName := func(id int) string { return names[id] }

	drop := regexp.MustCompile("^chrM$")
	merge := regexp.MustCompile("^chr1$")

	out := FilterBins(bins, contigName, drop, merge)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].ContigID)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(4096), out[0].End)
}
