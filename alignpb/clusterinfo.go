package alignpb

// ClusterInfo packs the identity of a cluster plus its run-time state into
// a single uint32:
//
//	[ reserved:5 | barcode:12 | tile:12 | passFilter:1 | readClosed:2 ]
//
// It is kept separate from SeedId (which additionally carries a
// per-cluster index too wide to share a 32-bit word with tile+barcode)
// because ClusterInfo travels with the in-memory cluster buffer for the
// lifetime of L1-L7, while SeedId only exists transiently in L3-L5.
type ClusterInfo uint32

const (
	ciReadClosedBits = 2
	ciPassFilterBits = 1
	ciTileBits       = 12
	ciBarcodeBits    = 12

	ciReadClosedShift = 0
	ciPassFilterShift = ciReadClosedShift + ciReadClosedBits
	ciTileShift       = ciPassFilterShift + ciPassFilterBits
	ciBarcodeShift    = ciTileShift + ciTileBits

	ciReadClosedMask = uint32(1)<<ciReadClosedBits - 1
	ciPassFilterMask = uint32(1)<<ciPassFilterBits - 1
	ciTileMask       = uint32(1)<<ciTileBits - 1
	ciBarcodeMask    = uint32(1)<<ciBarcodeBits - 1
)

// NewClusterInfo builds a ClusterInfo with both reads open.
func NewClusterInfo(tile, barcode int, passFilter bool) ClusterInfo {
	if tile < 0 || tile > int(ciTileMask) {
		panic("alignpb: tile out of range for ClusterInfo")
	}
	if barcode < 0 || barcode > int(ciBarcodeMask) {
		panic("alignpb: barcode out of range for ClusterInfo")
	}
	var pf uint32
	if passFilter {
		pf = 1
	}
	return ClusterInfo(uint32(tile)<<ciTileShift | uint32(barcode)<<ciBarcodeShift | pf<<ciPassFilterShift)
}

// Tile returns the packed tile index.
func (c ClusterInfo) Tile() int { return int(uint32(c) >> ciTileShift & ciTileMask) }

// Barcode returns the packed sample index.
func (c ClusterInfo) Barcode() int { return int(uint32(c) >> ciBarcodeShift & ciBarcodeMask) }

// PassFilter reports the instrument pass-filter bit.
func (c ClusterInfo) PassFilter() bool { return uint32(c)>>ciPassFilterShift&ciPassFilterMask != 0 }

// ReadClosed reports whether the given read index (0 or 1) has been
// closed: it received a resolving exact match, or is otherwise masked
// from further seeding (spec §3 invariants, §4.2 "closing a read").
func (c ClusterInfo) ReadClosed(readIndex int) bool {
	bit := uint32(1) << uint(readIndex)
	return uint32(c)>>ciReadClosedShift&ciReadClosedMask&bit != 0
}

// WithReadClosed returns c with the given read marked closed. Closure is
// monotonic: once set it is never cleared for the lifetime of the cluster
// (spec §8 property 4).
func (c ClusterInfo) WithReadClosed(readIndex int) ClusterInfo {
	bit := uint32(1) << uint(readIndex)
	return c | ClusterInfo(bit<<ciReadClosedShift)
}
