package matchio

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tmpdir, "tile0.match")
	tally := NewTally()
	w, err := NewTileWriter(ctx, path, 0, 0, tally)
	require.NoError(t, err)

	seedA := alignpb.PackSeedId(0, 1, 10, 0, false, false)
	refA := alignpb.PackReferencePosition(2, 500, false)
	require.NoError(t, w.Write(ctx, seedA, refA))

	seedB := alignpb.PackSeedId(0, 1, 11, 0, true, false)
	require.NoError(t, w.Write(ctx, seedB, alignpb.TooManyMatch))
	require.NoError(t, w.Close(ctx))

	require.Equal(t, int64(2), tally.Count(0, 0, 1))
	require.Equal(t, int64(2), tally.TileTotal(0, 0))

	r, err := OpenTileReader(ctx, path)
	require.NoError(t, err)
	defer r.Close(ctx)

	recs, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, seedA, recs[0].Seed)
	require.Equal(t, refA, recs[0].Ref)
	require.Equal(t, seedB, recs[1].Seed)
	require.Equal(t, alignpb.TooManyMatch, recs[1].Ref)
}

func TestTallyMarshalIdempotent(t *testing.T) {
	t1 := NewTally()
	t1.incr(0, 5, 2)
	t1.incr(0, 5, 2)
	t1.incr(1, 5, 3)

	b1 := t1.Marshal()
	t2, err := UnmarshalTally(b1)
	require.NoError(t, err)
	b2 := t2.Marshal()
	require.Equal(t, b1, b2)
	require.Equal(t, int64(2), t2.Count(0, 5, 2))
}
