package workflow

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/binbuild"
	"github.com/fenwick-bio/aligncore/cluster"
	"github.com/fenwick-bio/aligncore/matcher"
	"github.com/fenwick-bio/aligncore/matchio"
	"github.com/fenwick-bio/aligncore/refindex"
	"github.com/fenwick-bio/aligncore/seed"
	"github.com/fenwick-bio/aligncore/selector"
)

// fakeSource serves one fixed tile/batch, matching matcher_test.go's
// style of minimal, interface-only fakes rather than a generic mock
// framework.
type fakeSource struct {
	tile  cluster.TileID
	batch *cluster.Batch
}

func (s *fakeSource) Tiles(context.Context) ([]cluster.TileID, error) {
	return []cluster.TileID{s.tile}, nil
}

func (s *fakeSource) ReadTile(_ context.Context, _ cluster.TileID, _ cluster.FlowcellLayout) (*cluster.Batch, error) {
	return s.batch, nil
}

// sliceMask adapts sorted (kmer, pos) pairs to matcher.MaskRecordSource,
// same shape as matcher_test.go's fake of the same name.
type sliceMask struct {
	kmers []uint64
	pos   []alignpb.ReferencePosition
	i     int
}

func newSliceMask(kmers []uint64, pos []alignpb.ReferencePosition) *sliceMask {
	idx := make([]int, len(kmers))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return kmers[idx[a]] < kmers[idx[b]] })
	m := &sliceMask{kmers: make([]uint64, len(kmers)), pos: make([]alignpb.ReferencePosition, len(pos))}
	for i, j := range idx {
		m.kmers[i] = kmers[j]
		m.pos[i] = pos[j]
	}
	return m
}

func (s *sliceMask) Next() (uint64, alignpb.ReferencePosition, error) {
	if s.i >= len(s.kmers) {
		return 0, 0, io.EOF
	}
	k, p := s.kmers[s.i], s.pos[s.i]
	s.i++
	return k, p, nil
}

// fakeRef serves reference bases from an in-memory buffer per contig.
type fakeRef struct {
	contigs map[int][]byte
}

func (r *fakeRef) Fetch(contigID int, start, end int64) ([]byte, error) {
	b := r.contigs[contigID]
	if start < 0 {
		start = 0
	}
	if end > int64(len(b)) {
		end = int64(len(b))
	}
	return b[start:end], nil
}

// pairedFixture builds a two-read batch ("ACGT" + "CCGA"), a reference
// with exact placements for both reads 100bp apart, and the descriptors
// needed to seed both reads at seed width 4.
func pairedFixture(t *testing.T) (cluster.FlowcellLayout, *cluster.Batch, []seed.Descriptor, *fakeRef) {
	t.Helper()
	layout := cluster.FlowcellLayout{
		CycleCount: 8,
		Reads: []cluster.ReadLayout{
			{Index: 0, Offset: 0, Length: 4},
			{Index: 1, Offset: 4, Length: 4},
		},
	}
	batch := &cluster.Batch{
		Flowcell:   "FC1",
		Lane:       1,
		Tile:       1101,
		Layout:     layout,
		Bases:      []byte("ACGTCCGA"),
		Quals:      []byte{30, 30, 30, 30, 30, 30, 30, 30},
		PassFilter: []bool{true},
		Info:       []alignpb.ClusterInfo{alignpb.NewClusterInfo(0, 0, true)},
	}
	descriptors := []seed.Descriptor{
		{ReadIndex: 0, Offset: 0, Length: 4, SeedIndex: 0},
		{ReadIndex: 1, Offset: 4, Length: 4, SeedIndex: 1},
	}

	ref := make([]byte, 2000)
	for i := range ref {
		ref[i] = 'G'
	}
	copy(ref[500:504], "ACGT")
	copy(ref[600:604], "CCGA")

	return layout, batch, descriptors, &fakeRef{contigs: map[int][]byte{0: ref}}
}

// forwardKmers runs seed.Generate once to learn the forward-strand kmer
// of each read, so the test mask can be built without hand-packing
// 2-bit kmers itself.
func forwardKmers(t *testing.T, batch *cluster.Batch, descriptors []seed.Descriptor) (read0, read1 uint64) {
	t.Helper()
	seeds := seed.Generate(batch, descriptors, func(int) int { return 0 })[0]
	for _, s := range seeds {
		switch {
		case s.Id.SeedIndex() == 0 && !s.Id.Orientation():
			read0 = s.Kmer
		case s.Id.SeedIndex() == 1 && !s.Id.Orientation():
			read1 = s.Kmer
		}
	}
	require.NotZero(t, read0)
	require.NotZero(t, read1)
	return read0, read1
}

func testMetadata() *refindex.Metadata {
	return &refindex.Metadata{
		Contigs:        []refindex.Contig{{Name: "chr1", Length: 2000, KaryotypeOrder: 0}},
		KaryotypeOrder: []int{0},
	}
}

func baseOptions(layout cluster.FlowcellLayout, descriptors []seed.Descriptor, ref selector.ReferenceFetcher, masks []matcher.MaskRecordSource, dirs [2]string) Options {
	return Options{
		Metadata:              testMetadata(),
		Reference:             ref,
		MaskFiles:             masks,
		Descriptors:           descriptors,
		Layout:                layout,
		MatchDir:              dirs[0],
		BinDir:                dirs[1],
		MatchIterations:       4,
		DefaultTemplateLength: 100,
		DefaultTemplateStddev: 20,
		DefaultShadowWindow:   50,
		MatcherOptions:        matcher.Options{RepeatThreshold: 10},
		AlignOptions: selector.AlignOptions{
			MatchScore:            1,
			MismatchScore:         -4,
			GapOpenScore:          -6,
			GapExtendScore:        -1,
			MaxUngappedMismatches: 0,
		},
		MatchesPerBin: 1_000_000,
	}
}

// TestRunMatchFinder_ClosesBothReadsAndStopsIterating exercises the
// multi-iteration loop: both reads get a unique, neighbor-free exact
// match in iteration 0, so both close immediately and seed.Generate
// produces nothing in iteration 1 — the loop must break before writing
// a second iteration's tile file (spec §4.2 "Closing a read", §8
// property 4).
func TestRunMatchFinder_ClosesBothReadsAndStopsIterating(t *testing.T) {
	ctx := context.Background()
	layout, batch, descriptors, ref := pairedFixture(t)
	read0Kmer, read1Kmer := forwardKmers(t, batch, descriptors)

	mask := newSliceMask(
		[]uint64{read0Kmer, read1Kmer},
		[]alignpb.ReferencePosition{
			alignpb.PackReferencePosition(0, 500, false),
			alignpb.PackReferencePosition(0, 600, false),
		},
	)

	tileID := cluster.TileID{Flowcell: "FC1", Lane: 1, Tile: 1101}
	source := &fakeSource{tile: tileID, batch: batch}
	opts := baseOptions(layout, descriptors, ref, []matcher.MaskRecordSource{mask}, [2]string{t.TempDir(), t.TempDir()})
	opts.Source = source

	ctrl := New(filepath.Join(t.TempDir(), "checkpoint"), opts.MatchDir, opts.BinDir)
	ctrl.Checkpoint().Tiles = []cluster.TileID{tileID}
	ctrl.Checkpoint().Tally = matchio.NewTally()

	require.NoError(t, runMatchFinder(ctx, opts, ctrl))

	iter0 := filepath.Join(opts.MatchDir, tilePath(tileID, 0, 0))
	iter1 := filepath.Join(opts.MatchDir, tilePath(tileID, 0, 1))
	assertFileExists(t, iter0, true, "iteration 0 always runs")
	assertFileExists(t, iter1, false, "iteration 1 must not run once every read is closed")

	assert.True(t, batch.Info[0].ReadClosed(0))
	assert.True(t, batch.Info[0].ReadClosed(1))
}

// TestRunMatchSelector_PairsBothMates runs the full match-finder then
// match-selector pipeline over a paired layout where both mates have an
// exact, independent match, and checks the bin record written out
// reflects a real paired Template rather than a single-end Fragment
// (spec §4.4 steps 2-3, the gap review comment 3 flagged).
func TestRunMatchSelector_PairsBothMates(t *testing.T) {
	ctx := context.Background()
	layout, batch, descriptors, ref := pairedFixture(t)
	read0Kmer, read1Kmer := forwardKmers(t, batch, descriptors)

	mask := newSliceMask(
		[]uint64{read0Kmer, read1Kmer},
		[]alignpb.ReferencePosition{
			alignpb.PackReferencePosition(0, 500, false),
			alignpb.PackReferencePosition(0, 600, false),
		},
	)

	tileID := cluster.TileID{Flowcell: "FC1", Lane: 1, Tile: 1101}
	source := &fakeSource{tile: tileID, batch: batch}
	opts := baseOptions(layout, descriptors, ref, []matcher.MaskRecordSource{mask}, [2]string{t.TempDir(), t.TempDir()})
	opts.Source = source

	ctrl := New(filepath.Join(t.TempDir(), "checkpoint"), opts.MatchDir, opts.BinDir)
	ctrl.Checkpoint().Tiles = []cluster.TileID{tileID}
	ctrl.Checkpoint().Tally = matchio.NewTally()

	require.NoError(t, runMatchFinder(ctx, opts, ctrl))
	bins, err := runMatchSelector(ctx, opts, ctrl)
	require.NoError(t, err)
	require.Len(t, bins, 1, "both mates land in the same contig region")

	binPath := filepath.Join(opts.BinDir, "bin-"+strconv.Itoa(bins[0].ID)+".bin")
	recs, err := binbuild.LoadBin(ctx, binPath)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.True(t, rec.Paired)
	assert.Equal(t, selector.OrientationFF, rec.Orientation, "both mates registered forward-strand matches")
	assert.Equal(t, int32(0), rec.Mates[0].ContigID)
	assert.Equal(t, int64(500), rec.Mates[0].FStrandPos)
	assert.Equal(t, int32(0), rec.Mates[0].EditDistance)
	assert.Equal(t, int32(0), rec.Mates[1].ContigID)
	assert.Equal(t, int64(600), rec.Mates[1].FStrandPos)
	assert.Equal(t, int32(0), rec.Mates[1].EditDistance)
}

// TestBuildTemplate_ShadowRescuesUnmappedMate covers the case comment 3
// flagged most directly: one mate has no seed match at all, and
// buildTemplate must call selector.ShadowRescue to recover it rather
// than shipping a half-mapped Template (spec §4.4 step 3, §8 S5).
func TestBuildTemplate_ShadowRescuesUnmappedMate(t *testing.T) {
	layout, batch, descriptors, ref := pairedFixture(t)
	opts := baseOptions(layout, descriptors, ref, nil, [2]string{t.TempDir(), t.TempDir()})

	cm := &clusterMatches{byRead: map[int][]matchPosition{
		0: {{pos: alignpb.PackReferencePosition(0, 500, false), reverse: false}},
		// read 1 has no match record at all: SelectForRead returns Unmapped.
	}}

	estimators := map[int]*selector.TemplateLengthEstimator{}
	tmpl, err := buildTemplate(opts, batch, 0, cm, estimators)
	require.NoError(t, err)

	require.True(t, tmpl.Paired)
	assert.False(t, tmpl.Fragments[0].Unmapped())
	require.False(t, tmpl.Fragments[1].Unmapped(), "shadow rescue should have recovered mate 1")
	assert.True(t, tmpl.Fragments[1].Shadow)
	assert.Equal(t, int64(600), tmpl.Fragments[1].FStrandPos)
	assert.Equal(t, 0, tmpl.Fragments[1].EditDistance)
}
