package cluster

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	ctx := context.Background()
	f, err := file.Create(ctx, path)
	require.NoError(t, err)
	_, err = f.Writer(ctx).Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))
}

func TestFASTQSource_SingleEnded(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	r1 := filepath.Join(tmpdir, "r1.fastq")
	writeFile(t, r1, "@read1\nACGT\n+\nIIII\n@read2\nTTTT\n+\n!!!!\n")

	src := NewFASTQSource("FC1", r1, "", file.Opts{})
	tiles, err := src.Tiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []TileID{{Flowcell: "FC1", Lane: 1, Tile: 0}}, tiles)

	layout := FlowcellLayout{CycleCount: 4, Reads: []ReadLayout{{Index: 0, Offset: 0, Length: 4}}}
	b, err := src.ReadTile(ctx, tiles[0], layout)
	require.NoError(t, err)
	require.Equal(t, 2, b.N())

	bases0, quals0 := b.Cycles(0)
	assert.Equal(t, []byte("ACGT"), bases0)
	assert.Equal(t, []byte{40, 40, 40, 40}, quals0, "Phred+33 'I' decodes to 40")

	bases1, quals1 := b.Cycles(1)
	assert.Equal(t, []byte("TTTT"), bases1)
	assert.Equal(t, []byte{0, 0, 0, 0}, quals1, "Phred+33 '!' decodes to 0")

	assert.True(t, b.PassFilter[0])
	assert.True(t, b.PassFilter[1])
}

func TestFASTQSource_PairedEnded(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	r1 := filepath.Join(tmpdir, "r1.fastq")
	r2 := filepath.Join(tmpdir, "r2.fastq")
	writeFile(t, r1, "@read1\nACGT\n+\nIIII\n")
	writeFile(t, r2, "@read1\nGGCC\n+\nIIII\n")

	src := NewFASTQSource("FC1", r1, r2, file.Opts{})
	tiles, err := src.Tiles(ctx)
	require.NoError(t, err)

	layout := FlowcellLayout{
		CycleCount: 8,
		Reads: []ReadLayout{
			{Index: 0, Offset: 0, Length: 4},
			{Index: 1, Offset: 4, Length: 4},
		},
	}
	b, err := src.ReadTile(ctx, tiles[0], layout)
	require.NoError(t, err)
	require.Equal(t, 1, b.N())

	assert.Equal(t, []byte("ACGT"), b.ReadBases(0, layout.Reads[0]))
	assert.Equal(t, []byte("GGCC"), b.ReadBases(0, layout.Reads[1]))
}

func TestFASTQSource_MismatchedPairCountsIsError(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	r1 := filepath.Join(tmpdir, "r1.fastq")
	r2 := filepath.Join(tmpdir, "r2.fastq")
	writeFile(t, r1, "@read1\nACGT\n+\nIIII\n@read2\nACGT\n+\nIIII\n")
	writeFile(t, r2, "@read1\nGGCC\n+\nIIII\n")

	src := NewFASTQSource("FC1", r1, r2, file.Opts{})
	tiles, err := src.Tiles(ctx)
	require.NoError(t, err)

	layout := FlowcellLayout{
		CycleCount: 8,
		Reads: []ReadLayout{
			{Index: 0, Offset: 0, Length: 4},
			{Index: 1, Offset: 4, Length: 4},
		},
	}
	_, err = src.ReadTile(ctx, tiles[0], layout)
	assert.Error(t, err)
}
