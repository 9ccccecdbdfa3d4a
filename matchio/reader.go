package matchio

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"

	"github.com/fenwick-bio/aligncore/alignpb"
)

// TileReader streams the match records of one tile file in file order
// (spec §4.4 "load all match records... group by cluster id"). It
// verifies each record's checksum, promoting any mismatch to InvalidInput
// rather than letting a corrupted record reach the selector silently.
type TileReader struct {
	f   file.File
	r   io.Reader
	buf [alignpb.MatchRecordSize]byte
}

// OpenTileReader opens the tile file at path for sequential reading.
func OpenTileReader(ctx context.Context, path string) (*TileReader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "matchio: open tile file", path)
	}
	return &TileReader{f: f, r: f.Reader(ctx)}, nil
}

// Next returns the next match record, or io.EOF at end of file.
func (r *TileReader) Next() (alignpb.MatchRecord, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		if err == io.EOF {
			return alignpb.MatchRecord{}, io.EOF
		}
		return alignpb.MatchRecord{}, errors.E(errors.Invalid, err, "matchio: truncated match record")
	}
	rec := alignpb.UnmarshalMatchRecord(r.buf[:])
	if checksum(rec.Seed, rec.Ref) != rec.Checksum {
		return alignpb.MatchRecord{}, errors.E(errors.Invalid, "matchio: match record checksum mismatch")
	}
	return rec, nil
}

// ReadAll drains every remaining record from r.
func (r *TileReader) ReadAll() ([]alignpb.MatchRecord, error) {
	var out []alignpb.MatchRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Close releases the underlying file handle.
func (r *TileReader) Close(ctx context.Context) error { return r.f.Close(ctx) }
