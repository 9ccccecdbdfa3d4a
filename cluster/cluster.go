package cluster

import "github.com/fenwick-bio/aligncore/alignpb"

// Base values, matching the 2-bit-packable alphabet used throughout the
// pipeline. N is the ambiguous base.
const (
	BaseA byte = 'A'
	BaseC byte = 'C'
	BaseG byte = 'G'
	BaseT byte = 'T'
	BaseN byte = 'N'
)

// ReadLayout describes one read's position within a cluster (spec §3
// "Read"). A cluster has one or two reads.
type ReadLayout struct {
	Index  int // 0 or 1
	Offset int // first cycle of this read, 0-based
	Length int // number of cycles
}

// FlowcellLayout is the per-run geometry shared by every cluster: the
// cycle ranges of each read and, separately, of the barcode(s). It is
// produced by the (out-of-scope) run-configuration reader and handed to
// both the cluster source and the seed generator.
type FlowcellLayout struct {
	CycleCount int
	Reads      []ReadLayout
	Barcodes   []ReadLayout // one per barcode component, possibly hyphen-joined
}

// OpenReads returns the reads that are still open (not yet closed) for
// the cluster whose state is info.
func (l FlowcellLayout) OpenReads(info alignpb.ClusterInfo) []ReadLayout {
	var out []ReadLayout
	for _, r := range l.Reads {
		if !info.ReadClosed(r.Index) {
			out = append(out, r)
		}
	}
	return out
}

// Batch is a contiguous, in-memory run of clusters sharing one
// (flowcell, lane, tile). Bases and qualities are packed per-cycle,
// cluster-major: Bases[c*CycleCount : (c+1)*CycleCount] is cluster c's
// base string.
type Batch struct {
	Flowcell string
	Lane     int
	Tile     int

	Layout FlowcellLayout

	Bases      []byte              // len == N*CycleCount
	Quals      []byte              // len == N*CycleCount, Phred-scaled
	PassFilter []bool              // len == N
	X, Y       []int32             // len == N each, nil if unavailable
	Info       []alignpb.ClusterInfo // len == N, barcode/pass-filter/closed-read state
}

// N returns the number of clusters in the batch.
func (b *Batch) N() int { return len(b.PassFilter) }

// Cycles returns the packed base/quality slices for cluster i.
func (b *Batch) Cycles(i int) (bases, quals []byte) {
	n := b.Layout.CycleCount
	return b.Bases[i*n : (i+1)*n], b.Quals[i*n : (i+1)*n]
}

// ReadBases returns cluster i's bases for the given read layout.
func (b *Batch) ReadBases(i int, r ReadLayout) []byte {
	bases, _ := b.Cycles(i)
	return bases[r.Offset : r.Offset+r.Length]
}

// CloseRead marks read index readIndex of cluster i as closed (spec §4.2
// "closing a read"); closure is monotonic for the life of the batch.
func (b *Batch) CloseRead(i, readIndex int) {
	b.Info[i] = b.Info[i].WithReadClosed(readIndex)
}
