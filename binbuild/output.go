package binbuild

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// blockMaxSize bounds the uncompressed size of one output block (spec
// §4.6 step 5 "frame fragments into ≤64 KiB uncompressed blocks"),
// mirroring the ~64 KiB shard granularity encoding/bam/gindex.go
// documents for the equivalent BAM voffset index.
const blockMaxSize = 64 * 1024

// IndexEntry maps one record's leading coordinate to the block
// containing it plus its sequence number within that block, the same
// two-part addressing scheme as bam.GIndexEntry's (RefID, Position,
// Seq) -> VOffset (encoding/bam/gindex.go).
type IndexEntry struct {
	ContigID  int32
	Pos       int64
	BlockFile int64 // file offset where the block's length-prefixed frame begins
	Seq       uint32
}

// CoordIndex is a sorted-by-coordinate slice of IndexEntry, queried by
// floor lookup exactly like bam.GIndex.RecordOffset.
type CoordIndex []IndexEntry

func (idx CoordIndex) Less(i, j int) bool {
	if idx[i].ContigID != idx[j].ContigID {
		return idx[i].ContigID < idx[j].ContigID
	}
	return idx[i].Pos < idx[j].Pos
}

// Locate returns the file offset of the block that contains, or
// immediately precedes, (contigID, pos): the caller decompresses
// starting there and scans forward, same contract as
// bam.GIndex.RecordOffset.
func (idx CoordIndex) Locate(contigID int32, pos int64) (int64, bool) {
	if len(idx) == 0 {
		return 0, false
	}
	x := sort.Search(len(idx), func(i int) bool {
		if idx[i].ContigID != contigID {
			return idx[i].ContigID > contigID
		}
		return idx[i].Pos >= pos
	})
	if x == len(idx) {
		return idx[x-1].BlockFile, true
	}
	if idx[x].ContigID != contigID || idx[x].Pos != pos {
		if x == 0 {
			return idx[0].BlockFile, true
		}
		x--
	}
	return idx[x].BlockFile, true
}

// BlockWriter emits a bin's sorted, duplicate-marked records as a
// sequence of independently zstd-compressed, length-prefixed blocks and
// builds the CoordIndex as it goes (spec §4.6 step 5).
type BlockWriter struct {
	f        file.File
	w        io.Writer
	offset   int64
	pending  bytes.Buffer
	pendingN int
	blockSeq uint32
	index    CoordIndex
	firstKey *IndexEntry
}

// NewBlockWriter creates (truncating) the output file at path.
func NewBlockWriter(ctx context.Context, path string) (*BlockWriter, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "binbuild: create output file", path)
	}
	return &BlockWriter{f: f, w: f.Writer(ctx)}, nil
}

// WriteRecord appends one BinRecord, flushing the current non-empty block
// first if appending the record would take it past blockMaxSize.
func (w *BlockWriter) WriteRecord(rec *BinRecord) error {
	data := MarshalBinRecord(rec)
	if w.pending.Len() > 0 && w.pending.Len()+len(data) > blockMaxSize {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}
	if w.firstKey == nil {
		k := IndexEntry{ContigID: rec.Mates[0].ContigID, Pos: rec.Mates[0].FStrandPos, BlockFile: w.offset, Seq: 0}
		w.firstKey = &k
	}
	w.pending.Write(data)
	w.pendingN++
	return nil
}

func (w *BlockWriter) flushBlock() error {
	if w.pending.Len() == 0 {
		return nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return errors.E(errors.Invalid, err, "binbuild: create zstd encoder")
	}
	compressed := enc.EncodeAll(w.pending.Bytes(), nil)
	if err := enc.Close(); err != nil {
		return errors.E(errors.Invalid, err, "binbuild: close zstd encoder")
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(compressed)))
	if _, err := w.w.Write(header[:]); err != nil {
		return errors.E(errors.Temporary, err, "binbuild: write block header")
	}
	if _, err := w.w.Write(compressed); err != nil {
		return errors.E(errors.Temporary, err, "binbuild: write block")
	}

	if w.firstKey != nil {
		w.index = append(w.index, *w.firstKey)
	}
	w.offset += int64(4 + len(compressed))
	w.pending.Reset()
	w.pendingN = 0
	w.firstKey = nil
	w.blockSeq++
	return nil
}

// Close flushes any remaining records and closes the backing file,
// returning the CoordIndex built while writing.
func (w *BlockWriter) Close(ctx context.Context) (CoordIndex, error) {
	if err := w.flushBlock(); err != nil {
		return nil, err
	}
	if err := w.f.Close(ctx); err != nil {
		return nil, errors.E(errors.Temporary, err, "binbuild: close output file")
	}
	return w.index, nil
}

// ReadAllBlocks decompresses every block in the file at path and
// returns its records in on-disk order, for verification and tests.
func ReadAllBlocks(ctx context.Context, path string) ([]BinRecord, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "binbuild: open output file", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	r := f.Reader(ctx)
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "binbuild: create zstd decoder")
	}
	defer dec.Close()

	var out []BinRecord
	var header [4]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, "binbuild: truncated block header")
		}
		n := binary.LittleEndian.Uint32(header[:])
		compressed := make([]byte, n)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, errors.E(errors.Invalid, err, "binbuild: truncated block")
		}
		raw, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "binbuild: corrupt block")
		}
		br := bytes.NewReader(raw)
		for br.Len() > 0 {
			rec, err := UnmarshalBinRecord(br)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
