package matchio

import (
	"context"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"

	"github.com/fenwick-bio/aligncore/alignpb"
)

// TileWriter appends MatchRecords for one (iteration, tile) pair to a
// single file, updating a shared Tally as it goes. A TileWriter is safe
// for concurrent use by multiple matcher workers producing matches for
// the same tile from different (reference, mask) work items, guarded by
// an internal mutex around the shared file handle (spec §4.2's
// parallelism is across (reference, mask) pairs, which may all target
// the same tile's output).
type TileWriter struct {
	mu    sync.Mutex
	f     file.File
	buf   [alignpb.MatchRecordSize]byte
	tally *Tally
	iter  int
	tile  int
}

// NewTileWriter truncates (or creates) the tile file at path and returns
// a writer that records counts into tally under (iteration, tile).
// Truncation matches spec §4.3 "Tile files are reused across iterations
// by truncation".
func NewTileWriter(ctx context.Context, path string, iteration, tile int, tally *Tally) (*TileWriter, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "matchio: create tile file", path)
	}
	return &TileWriter{f: f, tally: tally, iter: iteration, tile: tile}, nil
}

// checksum computes the farm-hash checksum matchio stamps into each
// record so a truncated or bit-flipped tile file is detected on read
// rather than silently mis-parsed.
func checksum(seed alignpb.SeedId, ref alignpb.ReferencePosition) uint64 {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(seed >> (8 * uint(i)))
		b[8+i] = byte(ref >> (8 * uint(i)))
	}
	return farm.Hash64(b[:])
}

// Write appends one match record and updates the tally for the record's
// barcode. It is the only place a MatchRecord's Checksum field is
// computed.
func (w *TileWriter) Write(ctx context.Context, seedID alignpb.SeedId, ref alignpb.ReferencePosition) error {
	rec := alignpb.MatchRecord{Seed: seedID, Ref: ref, Checksum: checksum(seedID, ref)}

	w.mu.Lock()
	defer w.mu.Unlock()
	rec.Marshal(w.buf[:])
	if _, err := w.f.Writer(ctx).Write(w.buf[:]); err != nil {
		return errors.E(errors.Temporary, err, "matchio: write match record")
	}
	w.tally.incr(w.iter, w.tile, seedID.Barcode())
	return nil
}

// Close flushes and closes the underlying tile file.
func (w *TileWriter) Close(ctx context.Context) error {
	return w.f.Close(ctx)
}
