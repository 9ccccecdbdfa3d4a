package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
)

func TestTileID_Less(t *testing.T) {
	a := TileID{Flowcell: "FC1", Lane: 1, Tile: 1101}
	b := TileID{Flowcell: "FC1", Lane: 1, Tile: 1102}
	c := TileID{Flowcell: "FC1", Lane: 2, Tile: 1100}
	d := TileID{Flowcell: "FC2", Lane: 1, Tile: 1000}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c), "lane takes priority over tile")
	assert.True(t, c.Less(d), "flowcell takes priority over lane")
	assert.False(t, a.Less(a))
}

func TestFlowcellLayout_OpenReads(t *testing.T) {
	layout := FlowcellLayout{
		CycleCount: 200,
		Reads: []ReadLayout{
			{Index: 0, Offset: 0, Length: 100},
			{Index: 1, Offset: 100, Length: 100},
		},
	}
	info := alignpb.NewClusterInfo(1101, 0, true)
	assert.Len(t, layout.OpenReads(info), 2, "both reads open before any CloseRead")

	info = info.WithReadClosed(0)
	open := layout.OpenReads(info)
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].Index)

	info = info.WithReadClosed(1)
	assert.Empty(t, layout.OpenReads(info))
}

func TestBatch_CyclesAndReadBases(t *testing.T) {
	layout := FlowcellLayout{
		CycleCount: 6,
		Reads: []ReadLayout{
			{Index: 0, Offset: 0, Length: 3},
			{Index: 1, Offset: 3, Length: 3},
		},
	}
	b := &Batch{
		Layout: layout,
		Bases:  []byte("ACGTGCAAATTT"), // two clusters, 6 cycles each
		Quals:  []byte{30, 30, 30, 30, 30, 30, 20, 20, 20, 20, 20, 20},
	}

	bases0, quals0 := b.Cycles(0)
	assert.Equal(t, []byte("ACGTGC"), bases0)
	assert.Equal(t, []byte{30, 30, 30, 30, 30, 30}, quals0)

	bases1, _ := b.Cycles(1)
	assert.Equal(t, []byte("AAATTT"), bases1)

	assert.Equal(t, []byte("ACG"), b.ReadBases(0, layout.Reads[0]))
	assert.Equal(t, []byte("TGC"), b.ReadBases(0, layout.Reads[1]))
	assert.Equal(t, []byte("AAA"), b.ReadBases(1, layout.Reads[0]))
}

func TestBatch_N(t *testing.T) {
	b := &Batch{PassFilter: []bool{true, false, true}}
	assert.Equal(t, 3, b.N())
}

func TestBatch_CloseRead(t *testing.T) {
	info := alignpb.NewClusterInfo(1101, 0, true)
	b := &Batch{Info: []alignpb.ClusterInfo{info}}
	assert.False(t, b.Info[0].ReadClosed(0))

	b.CloseRead(0, 0)
	assert.True(t, b.Info[0].ReadClosed(0))
	assert.False(t, b.Info[0].ReadClosed(1), "closing one read leaves the other open")
}
