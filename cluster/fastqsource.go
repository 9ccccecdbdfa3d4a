package cluster

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"

	"github.com/fenwick-bio/aligncore/alignpb"
)

// fastqSource treats a pair of FASTQ files as a single synthetic tile
// (spec §6 "paired FASTQ files"). Unlike bclSource there is no lane/tile
// hierarchy to discover, so Tiles reports exactly one TileID.
type fastqSource struct {
	flowcell   string
	r1Path     string
	r2Path     string // "" for single-ended data
	opts       file.Opts
}

// NewFASTQSource constructs a Source over one (optionally paired) FASTQ
// input, addressed as tile 0, lane 1 of the given synthetic flowcell name.
func NewFASTQSource(flowcell, r1Path, r2Path string, opts file.Opts) Source {
	return &fastqSource{flowcell: flowcell, r1Path: r1Path, r2Path: r2Path, opts: opts}
}

func (s *fastqSource) Tiles(ctx context.Context) ([]TileID, error) {
	return []TileID{{Flowcell: s.flowcell, Lane: 1, Tile: 0}}, nil
}

func (s *fastqSource) ReadTile(ctx context.Context, t TileID, layout FlowcellLayout) (*Batch, error) {
	r1, err := openFastqReader(ctx, s.r1Path, s.opts)
	if err != nil {
		return nil, err
	}
	defer r1.Close()

	var r2 io.ReadCloser
	if s.r2Path != "" {
		r2, err = openFastqReader(ctx, s.r2Path, s.opts)
		if err != nil {
			return nil, err
		}
		defer r2.Close()
	}

	b := &Batch{Flowcell: t.Flowcell, Lane: t.Lane, Tile: t.Tile, Layout: layout}
	sc1 := bufio.NewScanner(r1)
	var sc2 *bufio.Scanner
	if r2 != nil {
		sc2 = bufio.NewScanner(r2)
	}

	for {
		rec1, ok1, err := readFastqRecord(sc1)
		if err != nil {
			return nil, err
		}
		if !ok1 {
			break
		}
		var rec2 fastqRecord
		if sc2 != nil {
			rec2, ok1, err = readFastqRecord(sc2)
			if err != nil {
				return nil, err
			}
			if !ok1 {
				return nil, errors.E(errors.Invalid, "cluster: R1/R2 FASTQ files have different read counts")
			}
		}

		i := b.N()
		n := layout.CycleCount
		if len(rec1.bases) != layout.Reads[0].Length {
			return nil, errors.E(errors.Invalid, "cluster: FASTQ read length disagrees with flowcell layout")
		}
		b.Bases = append(b.Bases, make([]byte, n)...)
		b.Quals = append(b.Quals, make([]byte, n)...)
		copy(b.Bases[i*n+layout.Reads[0].Offset:], rec1.bases)
		copy(b.Quals[i*n+layout.Reads[0].Offset:], rec1.quals)
		if sc2 != nil && len(layout.Reads) > 1 {
			copy(b.Bases[i*n+layout.Reads[1].Offset:], rec2.bases)
			copy(b.Quals[i*n+layout.Reads[1].Offset:], rec2.quals)
		}
		b.PassFilter = append(b.PassFilter, true)
		b.Info = append(b.Info, alignpb.NewClusterInfo(t.Tile, 0, true))
	}
	return b, nil
}

type fastqRecord struct {
	name  string
	bases []byte
	quals []byte
}

func readFastqRecord(sc *bufio.Scanner) (fastqRecord, bool, error) {
	if !sc.Scan() {
		return fastqRecord{}, false, nil
	}
	name := sc.Text()
	if !sc.Scan() {
		return fastqRecord{}, false, errors.E(errors.Invalid, "cluster: truncated FASTQ record (sequence line)")
	}
	bases := []byte(sc.Text())
	if !sc.Scan() {
		return fastqRecord{}, false, errors.E(errors.Invalid, "cluster: truncated FASTQ record (+ line)")
	}
	if !sc.Scan() {
		return fastqRecord{}, false, errors.E(errors.Invalid, "cluster: truncated FASTQ record (quality line)")
	}
	quals := make([]byte, len(sc.Text()))
	for i, c := range []byte(sc.Text()) {
		quals[i] = c - 33 // Phred+33
	}
	return fastqRecord{name: name, bases: bases, quals: quals}, true, nil
}

func openFastqReader(ctx context.Context, path string, opts file.Opts) (io.ReadCloser, error) {
	f, err := file.Open(ctx, path, opts)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "cluster: open FASTQ file", path)
	}
	if len(path) > 3 && path[len(path)-3:] == ".gz" {
		gz, err := gzip.NewReader(f.Reader(ctx))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "cluster: bad gzip FASTQ stream")
		}
		return gz, nil
	}
	return ioutil.NopCloser(f.Reader(ctx)), nil
}
