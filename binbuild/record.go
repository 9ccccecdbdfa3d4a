package binbuild

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"

	"github.com/fenwick-bio/aligncore/selector"
)

// FragmentRecord is the on-disk shape of one selector.Fragment, trimmed
// to the fields the bin builder needs (spec §4.6 step 1's "fragment
// data" half of a bin file).
type FragmentRecord struct {
	ContigID     int32
	FStrandPos   int64
	Reverse      bool
	EditDistance int32
	Score        int32
	MapQ         int32
	Dodgy        bool
	Cigar        []selector.CigarOp
}

// BinRecord is one template as stored in a bin file: the pair (or single
// fragment) plus the bookkeeping fields duplicate marking and optical
// detection need (spec §4.6 step 4's "mate info", §C.4's x/y). FileIdx
// preserves the original cluster-arrival order so that tie-breaking
// matches the teacher's ChoosePrimary (lower FileIdx wins a tie).
type BinRecord struct {
	FileIdx       uint64
	Barcode       int32
	LibraryID     int32
	X, Y          int32
	Paired        bool
	Orientation   selector.Orientation
	DuplicateRank selector.DuplicateRank
	Duplicate     bool
	Optical       bool
	Mates         [2]FragmentRecord
}

// fivePrimeKey returns the (contig, fStrandPos) of Mates[0], whichever
// of the two mates is lower-addressed.
func (r *BinRecord) fivePrimeKey() (contigID int32, pos int64) {
	return r.Mates[0].ContigID, r.Mates[0].FStrandPos
}

func marshalFragmentRecord(buf *bytes.Buffer, f *FragmentRecord) {
	binary.Write(buf, binary.LittleEndian, f.ContigID)
	binary.Write(buf, binary.LittleEndian, f.FStrandPos)
	binary.Write(buf, binary.LittleEndian, f.Reverse)
	binary.Write(buf, binary.LittleEndian, f.EditDistance)
	binary.Write(buf, binary.LittleEndian, f.Score)
	binary.Write(buf, binary.LittleEndian, f.MapQ)
	binary.Write(buf, binary.LittleEndian, f.Dodgy)
	binary.Write(buf, binary.LittleEndian, uint32(len(f.Cigar)))
	for _, op := range f.Cigar {
		buf.WriteByte(op.Op)
		binary.Write(buf, binary.LittleEndian, uint32(op.Len))
	}
}

func unmarshalFragmentRecord(r *bytes.Reader) (FragmentRecord, error) {
	var f FragmentRecord
	for _, field := range []interface{}{&f.ContigID, &f.FStrandPos, &f.Reverse, &f.EditDistance, &f.Score, &f.MapQ, &f.Dodgy} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return FragmentRecord{}, err
		}
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return FragmentRecord{}, err
	}
	f.Cigar = make([]selector.CigarOp, n)
	for i := range f.Cigar {
		op, err := r.ReadByte()
		if err != nil {
			return FragmentRecord{}, err
		}
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return FragmentRecord{}, err
		}
		f.Cigar[i] = selector.CigarOp{Op: op, Len: int(l)}
	}
	return f, nil
}

// MarshalBinRecord serializes r. The format is a plain length-prefixed
// little-endian encoding rather than a bit-packed layout like
// alignpb.MatchRecord: bin records carry a variable-length CIGAR, so
// there is no fixed on-disk width to preserve.
func MarshalBinRecord(r *BinRecord) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, r.FileIdx)
	binary.Write(&buf, binary.LittleEndian, r.Barcode)
	binary.Write(&buf, binary.LittleEndian, r.LibraryID)
	binary.Write(&buf, binary.LittleEndian, r.X)
	binary.Write(&buf, binary.LittleEndian, r.Y)
	binary.Write(&buf, binary.LittleEndian, r.Paired)
	binary.Write(&buf, binary.LittleEndian, uint8(r.Orientation))
	binary.Write(&buf, binary.LittleEndian, r.DuplicateRank.QualitySum)
	binary.Write(&buf, binary.LittleEndian, int32(r.DuplicateRank.LengthMinusEdits))
	binary.Write(&buf, binary.LittleEndian, int32(r.DuplicateRank.AlignmentScore))
	binary.Write(&buf, binary.LittleEndian, r.Duplicate)
	binary.Write(&buf, binary.LittleEndian, r.Optical)
	marshalFragmentRecord(&buf, &r.Mates[0])
	marshalFragmentRecord(&buf, &r.Mates[1])

	var framed bytes.Buffer
	binary.Write(&framed, binary.LittleEndian, uint32(buf.Len()))
	framed.Write(buf.Bytes())
	return framed.Bytes()
}

// UnmarshalBinRecord reads one length-prefixed BinRecord from r.
func UnmarshalBinRecord(r io.Reader) (BinRecord, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return BinRecord{}, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return BinRecord{}, errors.E(errors.Invalid, err, "binbuild: truncated bin record")
	}
	br := bytes.NewReader(body)

	var rec BinRecord
	var orient uint8
	var qsum int64
	var lenMinusEdits, alignScore int32
	for _, field := range []interface{}{&rec.FileIdx, &rec.Barcode, &rec.LibraryID, &rec.X, &rec.Y, &rec.Paired, &orient, &qsum, &lenMinusEdits, &alignScore, &rec.Duplicate, &rec.Optical} {
		if err := binary.Read(br, binary.LittleEndian, field); err != nil {
			return BinRecord{}, errors.E(errors.Invalid, err, "binbuild: malformed bin record header")
		}
	}
	rec.Orientation = selector.Orientation(orient)
	rec.DuplicateRank = selector.DuplicateRank{QualitySum: qsum, LengthMinusEdits: int(lenMinusEdits), AlignmentScore: int(alignScore)}

	for i := range rec.Mates {
		f, err := unmarshalFragmentRecord(br)
		if err != nil {
			return BinRecord{}, errors.E(errors.Invalid, err, "binbuild: malformed fragment record")
		}
		rec.Mates[i] = f
	}
	return rec, nil
}
