package workflow

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-bio/aligncore/binner"
	"github.com/fenwick-bio/aligncore/cluster"
	"github.com/fenwick-bio/aligncore/matchio"
)

func assertFileExists(t *testing.T, path string, want bool, msgAndArgs ...interface{}) {
	t.Helper()
	_, err := os.Stat(path)
	exists := err == nil
	assert.Equal(t, want, exists, msgAndArgs...)
}

func TestController_StepAdvancesOneStateAtATime(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "checkpoint"), "", "")
	assert.Equal(t, Start, c.State())

	ok, err := c.Step(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MatchFinderDone, c.State())

	ok, err = c.Step(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MatchSelectorDone, c.State())
}

func TestController_StepAtTerminalReturnsFalse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "checkpoint"), "", "")
	for i := 0; i < 4; i++ {
		_, err := c.Step(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, BamDone, c.State())

	ok, err := c.Step(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, BamDone, c.State())
}

func TestController_RewindRejectsForward(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "checkpoint"), "", "")
	_, err := c.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, MatchFinderDone, c.State())

	err = c.Rewind(ctx, BamDone)
	assert.Error(t, err, "forward rewind must be rejected")
	assert.Equal(t, MatchFinderDone, c.State(), "state unchanged after a rejected rewind")

	require.NoError(t, c.Rewind(ctx, Start))
	assert.Equal(t, Start, c.State())
}

func TestController_LoadResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint")

	c := New(path, "", "")
	c.Checkpoint().Tiles = []cluster.TileID{{Flowcell: "FC1", Lane: 1, Tile: 1101}}
	c.Checkpoint().Bins = []binner.Bin{{ID: 0, ContigID: 0, Start: 0, End: 2048}}
	c.Checkpoint().BamMapping["proj/sample"] = "/out/proj/sample.bam"
	_, err := c.Step(ctx)
	require.NoError(t, err)

	resumed, err := Load(ctx, path, "", "")
	require.NoError(t, err)
	assert.Equal(t, MatchFinderDone, resumed.State())
	assert.Equal(t, c.Checkpoint().Tiles, resumed.Checkpoint().Tiles)
	assert.Equal(t, c.Checkpoint().Bins, resumed.Checkpoint().Bins)
	assert.Equal(t, "/out/proj/sample.bam", resumed.Checkpoint().BamMapping["proj/sample"])
}

func TestCheckpoint_Marshal_Idempotent(t *testing.T) {
	tally := matchio.NewTally()
	cp := &Checkpoint{
		State: MatchSelectorDone,
		Tiles: []cluster.TileID{{Flowcell: "FC1", Lane: 1, Tile: 1101}, {Flowcell: "FC1", Lane: 1, Tile: 1102}},
		Tally: tally,
		Bins:  []binner.Bin{{ID: 0, ContigID: 0, Start: 0, End: 2048}},
		BamMapping: map[string]string{
			"zzz/sample": "/out/zzz.bam",
			"aaa/sample": "/out/aaa.bam",
		},
	}
	saved1 := cp.Marshal()

	loaded, err := UnmarshalCheckpoint(saved1)
	require.NoError(t, err)
	saved2 := loaded.Marshal()

	assert.Equal(t, saved1, saved2, "save(state); load -> state2; save(state2) must be byte-identical")
}

func TestController_CleanupIntermediary_RemovesMatchFilesOnceSelectorDone(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	matchDir := filepath.Join(dir, "match")
	binDir := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(matchDir, 0755))
	require.NoError(t, os.MkdirAll(binDir, 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(matchDir, "tile1.match"), []byte("x"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(binDir, "bin0.bin"), []byte("x"), 0644))

	c := New(filepath.Join(dir, "checkpoint"), matchDir, binDir)

	require.NoError(t, c.CleanupIntermediary(ctx))
	assertFileExists(t, filepath.Join(matchDir, "tile1.match"), true)
	assertFileExists(t, filepath.Join(binDir, "bin0.bin"), true)

	for c.State() < MatchSelectorDone {
		_, err := c.Step(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, c.CleanupIntermediary(ctx))
	assertFileExists(t, filepath.Join(matchDir, "tile1.match"), false)
	assertFileExists(t, filepath.Join(binDir, "bin0.bin"), true, "bin files survive until the builder stage is done")

	for c.State() < AlignmentReportsDone {
		_, err := c.Step(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, c.CleanupIntermediary(ctx))
	assertFileExists(t, filepath.Join(binDir, "bin0.bin"), false)

	// Calling again must be a no-op, not an error (spec §4.7 idempotence).
	require.NoError(t, c.CleanupIntermediary(ctx))
}
