package refindex

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/fenwick-bio/aligncore/alignpb"
)

// maskFileMagic and maskFileVersion identify a mask file header so that a
// malformed or version-skewed file is rejected rather than silently
// mis-parsed (SPEC_FULL.md §C.1).
const (
	maskFileMagic   = uint32(0x4d41534b) // "MASK"
	maskFileVersion = uint32(1)

	maskHeaderSize = 4 + 4 + 4 + 4 + 8 // magic, version, kmerWidth, mask, recordCount
	maskRecordSize = 16                // k-mer (8 bytes) + ReferencePosition (8 bytes)
)

// MaskHeader describes one mask file: the set of (k-mer, ReferencePosition)
// records whose k-mer's high maskWidth bits equal mask (spec §4.2).
type MaskHeader struct {
	KmerWidth   int // total k-mer length in bases
	MaskWidth   int // number of high-order bits used to select this file
	Mask        uint32
	RecordCount int64
}

// MaskFile is a read-only handle on one mask file's sorted records. The
// matcher consumes it strictly in increasing k-mer order via Next; it
// never seeks backward.
type MaskFile struct {
	Header MaskHeader

	f   file.File
	r   io.Reader
	buf [maskRecordSize]byte
	pos int64
}

// OpenMaskFile opens and validates the header of the mask file at path.
// A missing file is a fatal NotExist error, and a header whose magic,
// version, k-mer width or mask does not match is fatal InvalidInput (spec
// §4.2 "missing files are fatal"). The header carries no mask width;
// Header.MaskWidth is taken from wantMaskWidth as given.
func OpenMaskFile(ctx context.Context, path string, wantKmerWidth, wantMaskWidth int, wantMask uint32) (*MaskFile, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "refindex: open mask file", path)
	}
	r := f.Reader(ctx)

	hdr := make([]byte, maskHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		f.Close(ctx)
		return nil, errors.E(errors.Invalid, err, "refindex: short mask file header", path)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	version := binary.LittleEndian.Uint32(hdr[4:8])
	kmerWidth := binary.LittleEndian.Uint32(hdr[8:12])
	mask := binary.LittleEndian.Uint32(hdr[12:16])
	recordCount := int64(binary.LittleEndian.Uint64(hdr[16:24]))

	if magic != maskFileMagic || version != maskFileVersion {
		f.Close(ctx)
		return nil, errors.E(errors.Invalid, "refindex: bad mask file magic/version", path)
	}
	if int(kmerWidth) != wantKmerWidth {
		f.Close(ctx)
		return nil, errors.E(errors.Invalid, "refindex: mask file k-mer width mismatch", path)
	}
	if mask != wantMask {
		f.Close(ctx)
		return nil, errors.E(errors.Invalid, "refindex: mask file mask value mismatch", path)
	}
	if recordCount < 0 {
		f.Close(ctx)
		return nil, errors.E(errors.Invalid, "refindex: negative record count", path)
	}

	return &MaskFile{
		Header: MaskHeader{
			KmerWidth:   wantKmerWidth,
			MaskWidth:   wantMaskWidth,
			Mask:        mask,
			RecordCount: recordCount,
		},
		f: f,
		r: r,
	}, nil
}

// Close releases the underlying file handle.
func (m *MaskFile) Close(ctx context.Context) error { return m.f.Close(ctx) }

// Next reads the next (k-mer, ReferencePosition) record in ascending
// k-mer order. io.EOF is returned once RecordCount records have been
// consumed, and nothing past them is read. A file that ends before
// RecordCount records is reported as InvalidInput, not a TransientIO
// condition, since mask files are immutable once published.
func (m *MaskFile) Next() (kmer uint64, pos alignpb.ReferencePosition, err error) {
	if m.pos >= m.Header.RecordCount {
		return 0, 0, io.EOF
	}
	if _, err := io.ReadFull(m.r, m.buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, errors.E(errors.Invalid, err, "refindex: mask file truncated before declared record count")
		}
		return 0, 0, errors.E(errors.Temporary, err, "refindex: reading mask file")
	}
	kmer = binary.LittleEndian.Uint64(m.buf[0:8])
	pos = alignpb.ReferencePosition(binary.LittleEndian.Uint64(m.buf[8:16]))
	m.pos++
	return kmer, pos, nil
}

// Remaining reports how many records have not yet been read by Next.
func (m *MaskFile) Remaining() int64 { return m.Header.RecordCount - m.pos }
