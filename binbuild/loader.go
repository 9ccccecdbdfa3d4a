package binbuild

import (
	"context"
	"io"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"

	"github.com/fenwick-bio/aligncore/selector"
)

// LoadBin reads every record from the bin file at path, undoing the
// snappy framing binner.FragmentWriter applied (spec §4.6 step 1
// "Memory-map (or block-read) fragment data and the four index
// arrays"). A full in-memory block-read is used rather than mmap: unlike
// the teacher's one mmap call site (fusion/kmer_index.go, an anonymous
// hugepage-backed hash table with no file behind it), a bin file is
// snappy-compressed, so its bytes cannot be interpreted in place and
// must be decoded regardless of how they reach memory.
func LoadBin(ctx context.Context, path string) ([]BinRecord, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "binbuild: open bin file", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	r := snappy.NewReader(f.Reader(ctx))
	var recs []BinRecord
	for {
		rec, err := UnmarshalBinRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// IndexArrays is the "four index arrays" of spec §4.6 step 1, derived
// from a loaded bin's records as parallel slices. Nothing in the package
// calls buildIndexArrays: SortRecords and MarkDuplicates read these fields
// directly from each BinRecord.
type IndexArrays struct {
	FStrandPos []int64
	ContigID   []int32
	Strand     []bool // true = reverse strand, taken from Mates[0]
	Rank       []selector.DuplicateRank
}

func buildIndexArrays(recs []BinRecord) IndexArrays {
	idx := IndexArrays{
		FStrandPos: make([]int64, len(recs)),
		ContigID:   make([]int32, len(recs)),
		Strand:     make([]bool, len(recs)),
		Rank:       make([]selector.DuplicateRank, len(recs)),
	}
	for i, r := range recs {
		idx.FStrandPos[i] = r.Mates[0].FStrandPos
		idx.ContigID[i] = r.Mates[0].ContigID
		idx.Strand[i] = r.Mates[0].Reverse
		idx.Rank[i] = r.DuplicateRank
	}
	return idx
}
