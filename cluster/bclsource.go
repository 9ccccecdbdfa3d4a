package cluster

import (
	"context"
	"encoding/binary"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/barcode"
)

// bclSource reads block-compressed base-call files: one gzip-compressed
// file per (lane, tile, cycle) holding 2 bits of base + 6 bits of quality
// per cluster, plus a per-tile filter file; x/y locs files are not read
// (spec §6 "block-compressed base-call files with a tile/cycle
// index sidecar"). This mirrors the record layout bio-bam-sort's input
// stage assumes, generalized to an arbitrary cycle count.
type bclSource struct {
	root     string // run folder root
	opts     file.Opts
	tiles    []TileID
	resolver *barcode.Resolver // nil: every cluster is UnknownSample
}

// NewBCLSource constructs a Source over a run folder that has already
// been indexed into the given flat tile list (tile discovery itself,
// parsing RunInfo.xml, is command-line/option-parsing adjacent and out of
// scope per spec §1). resolver demultiplexes each cluster's barcode
// cycles (spec §2 L2); pass nil to assign every cluster to
// barcode.UnknownSample, e.g. for a single-sample run with no sample
// sheet.
func NewBCLSource(root string, tiles []TileID, resolver *barcode.Resolver, opts file.Opts) Source {
	cp := make([]TileID, len(tiles))
	copy(cp, tiles)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Less(cp[j]) })
	return &bclSource{root: root, opts: opts, tiles: cp, resolver: resolver}
}

func (s *bclSource) Tiles(ctx context.Context) ([]TileID, error) { return s.tiles, nil }

var base2bit = [4]byte{BaseA, BaseC, BaseG, BaseT}

func decodeBCLByte(b byte) (base byte, qual byte) {
	if b == 0 {
		// No-call sentinel (spec §3: base N).
		return BaseN, 0
	}
	return base2bit[b&0x3], (b >> 2) & 0x3f
}

func (s *bclSource) cyclePath(t TileID, cycle int) string {
	return path.Join(s.root, t.Flowcell, "Intensities", "BaseCalls",
		"L"+padInt(t.Lane, 3), "C"+strconv.Itoa(cycle)+".1", "s_"+strconv.Itoa(t.Lane)+"_"+strconv.Itoa(t.Tile)+".bcl.gz")
}

func (s *bclSource) filterPath(t TileID) string {
	return path.Join(s.root, t.Flowcell, "Intensities", "BaseCalls",
		"L"+padInt(t.Lane, 3), "s_"+strconv.Itoa(t.Lane)+"_"+strconv.Itoa(t.Tile)+".filter")
}

func (s *bclSource) ReadTile(ctx context.Context, t TileID, layout FlowcellLayout) (*Batch, error) {
	filterClusterCount, passFilter, err := s.readFilter(ctx, t)
	if err != nil {
		return nil, err
	}
	n := filterClusterCount

	b := &Batch{
		Flowcell:   t.Flowcell,
		Lane:       t.Lane,
		Tile:       t.Tile,
		Layout:     layout,
		Bases:      make([]byte, n*layout.CycleCount),
		Quals:      make([]byte, n*layout.CycleCount),
		PassFilter: passFilter,
		Info:       make([]alignpb.ClusterInfo, n),
	}
	for c := 0; c < n; c++ {
		b.Info[c] = alignpb.NewClusterInfo(t.Tile, 0, passFilter[c])
	}

	for cycle := 0; cycle < layout.CycleCount; cycle++ {
		if err := s.readCycle(ctx, t, cycle, b); err != nil {
			return nil, err
		}
	}

	if len(layout.Barcodes) > 0 {
		for c := 0; c < n; c++ {
			sample := barcode.UnknownSample
			if s.resolver != nil {
				sample = s.resolver.Resolve(b.observedBarcode(c, layout))
			}
			b.Info[c] = alignpb.NewClusterInfo(t.Tile, sample, passFilter[c])
		}
	}
	return b, nil
}

// observedBarcode joins the cluster's barcode-component base calls with
// '-', matching barcode.Row.Components' join convention.
func (b *Batch) observedBarcode(i int, layout FlowcellLayout) string {
	comps := make([]string, len(layout.Barcodes))
	for j, r := range layout.Barcodes {
		comps[j] = string(b.ReadBases(i, r))
	}
	return strings.Join(comps, "-")
}

func (s *bclSource) readFilter(ctx context.Context, t TileID) (int, []bool, error) {
	f, err := file.Open(ctx, s.filterPath(t), s.opts)
	if err != nil {
		return 0, nil, errors.E(errors.NotExist, err, "cluster: open filter file")
	}
	defer f.Close(ctx)

	r := f.Reader(ctx)
	hdr := make([]byte, 12)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, nil, errors.E(errors.Invalid, err, "cluster: short filter header")
	}
	n := int(binary.LittleEndian.Uint32(hdr[8:12]))
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, nil, errors.E(errors.Invalid, err, "cluster: truncated filter file")
	}
	pf := make([]bool, n)
	for i, v := range raw {
		pf[i] = v&0x1 != 0
	}
	return n, pf, nil
}

func (s *bclSource) readCycle(ctx context.Context, t TileID, cycle int, b *Batch) error {
	f, err := file.Open(ctx, s.cyclePath(t, cycle), s.opts)
	if err != nil {
		return errors.E(errors.NotExist, err, "cluster: open bcl cycle file")
	}
	defer f.Close(ctx)

	gz, err := gzip.NewReader(f.Reader(ctx))
	if err != nil {
		return errors.E(errors.Invalid, err, "cluster: bad bcl gzip stream")
	}
	defer gz.Close()

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(gz, hdr); err != nil {
		return errors.E(errors.Invalid, err, "cluster: short bcl header")
	}
	count := int(binary.LittleEndian.Uint32(hdr))
	if count != b.N() {
		return errors.E(errors.Invalid, "cluster: bcl cluster count disagrees with filter file")
	}

	raw := make([]byte, count)
	if _, err := io.ReadFull(gz, raw); err != nil {
		return errors.E(errors.Invalid, err, "cluster: truncated bcl cycle file")
	}
	n := b.Layout.CycleCount
	for i, byt := range raw {
		base, qual := decodeBCLByte(byt)
		b.Bases[i*n+cycle] = base
		b.Quals[i*n+cycle] = qual
	}
	return nil
}

// padInt zero-pads v's decimal representation to at least width digits,
// matching Illumina's zero-padded lane directory naming (e.g. "L001").
func padInt(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
