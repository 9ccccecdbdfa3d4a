package alignpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackSeedIdRoundTrip(t *testing.T) {
	cases := []struct {
		tile, barcode, cluster, seedIndex int
		orientation                       bool
	}{
		{0, 0, 0, 0, false},
		{MaxTile, MaxBarcode, MaxCluster, 7, true},
		{12, 3, 99999, 0, false},
	}
	for _, c := range cases {
		s := PackSeedId(c.tile, c.barcode, c.cluster, c.seedIndex, c.orientation, false)
		assert.Equal(t, c.tile, s.Tile())
		assert.Equal(t, c.barcode, s.Barcode())
		assert.Equal(t, c.cluster, s.Cluster())
		assert.Equal(t, c.seedIndex, s.SeedIndex())
		assert.Equal(t, c.orientation, s.Orientation())
		assert.False(t, s.IsNSeed())
	}
}

func TestPackSeedIdOverflowPanics(t *testing.T) {
	assert.Panics(t, func() { PackSeedId(MaxTile+1, 0, 0, 0, false, false) })
	assert.Panics(t, func() { PackSeedId(0, MaxBarcode+1, 0, 0, false, false) })
	assert.Panics(t, func() { PackSeedId(0, 0, MaxCluster+1, 0, false, false) })
}

func TestAmbiguousSeedSentinel(t *testing.T) {
	lowest := PackSeedId(1, 2, 3, MaxSeedIndex, false /* ignored */, true)
	require.True(t, lowest.IsNSeed())
	assert.True(t, lowest.IsLowestNSeed())

	other := PackSeedId(1, 2, 3, MaxSeedIndex, false, false)
	require.True(t, other.IsNSeed())
	assert.False(t, other.IsLowestNSeed())

	assert.True(t, lowest.SameRead(other))
}

func TestSeedIdOrdering(t *testing.T) {
	// Within a (tile, barcode, cluster) group, ambiguous sentinels
	// (seedIndex == MaxSeedIndex) must sort after every real seed index.
	real := PackSeedId(1, 1, 1, 3, false, false)
	sentinel := PackSeedId(1, 1, 1, MaxSeedIndex, false, true)
	assert.True(t, real < sentinel)
}
