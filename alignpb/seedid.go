package alignpb

// SeedId packs the identity of one seed instance into a single uint64:
//
//	[ tile:12 | barcode:12 | cluster:31 | seedIndex:8 | orientation:1 ]
//	  63    52  51       40  39       9   8          1  0
//
// The layout is part of the on-disk match-record format (spec §3) and must
// not change without a version bump to the mask/match file formats.
//
// Ambiguous-base seeds ("N-seeds") are represented by the reserved k-mer
// AmbiguousKmer together with seedIndex == MaxSeedIndex; among those, the
// orientation bit doubles as the "lowest original seed index" flag so that
// exactly one no-match record is emitted per read (spec §4.1, §9).
type SeedId uint64

const (
	seedOrientationBits = 1
	seedIndexBits       = 8
	seedClusterBits     = 31
	seedBarcodeBits     = 12
	seedTileBits        = 12

	seedOrientationShift = 0
	seedIndexShift       = seedOrientationShift + seedOrientationBits
	seedClusterShift     = seedIndexShift + seedIndexBits
	seedBarcodeShift     = seedClusterShift + seedClusterBits
	seedTileShift        = seedBarcodeShift + seedBarcodeBits

	seedOrientationMask = uint64(1)<<seedOrientationBits - 1
	seedIndexMask       = uint64(1)<<seedIndexBits - 1
	seedClusterMask     = uint64(1)<<seedClusterBits - 1
	seedBarcodeMask     = uint64(1)<<seedBarcodeBits - 1
	seedTileMask        = uint64(1)<<seedTileBits - 1

	// MaxSeedIndex is the reserved seed index used by ambiguous-base ("N")
	// seed sentinels, so they sort to the end of any (tile, barcode,
	// cluster) group.
	MaxSeedIndex = int(seedIndexMask)

	// MaxTile, MaxBarcode and MaxCluster bound the fields packed into a
	// SeedId; callers must validate against these before packing.
	MaxTile    = int(seedTileMask)
	MaxBarcode = int(seedBarcodeMask)
	MaxCluster = int(seedClusterMask)
)

// PackSeedId builds a SeedId from its constituent fields. It panics if any
// field overflows its allotted bit width, matching the teacher convention
// of failing loudly on packed-field overflow rather than silently
// truncating (see PackReferencePosition in refpos.go).
func PackSeedId(tile, barcode, cluster, seedIndex int, orientation bool, lowestNSeed bool) SeedId {
	if tile < 0 || tile > MaxTile {
		panic("alignpb: tile out of range for SeedId")
	}
	if barcode < 0 || barcode > MaxBarcode {
		panic("alignpb: barcode out of range for SeedId")
	}
	if cluster < 0 || cluster > MaxCluster {
		panic("alignpb: cluster out of range for SeedId")
	}
	if seedIndex < 0 || seedIndex > MaxSeedIndex {
		panic("alignpb: seedIndex out of range for SeedId")
	}
	ori := orientation
	if seedIndex == MaxSeedIndex {
		// Ambiguous-base sentinel: orientation bit is repurposed as the
		// "lowest N seed" flag (spec §4.1, §9).
		ori = lowestNSeed
	}
	var o uint64
	if ori {
		o = 1
	}
	return SeedId(
		uint64(tile)<<seedTileShift |
			uint64(barcode)<<seedBarcodeShift |
			uint64(cluster)<<seedClusterShift |
			uint64(seedIndex)<<seedIndexShift |
			o<<seedOrientationShift,
	)
}

// Tile returns the packed tile index.
func (s SeedId) Tile() int { return int(uint64(s) >> seedTileShift & seedTileMask) }

// Barcode returns the packed barcode/sample index.
func (s SeedId) Barcode() int { return int(uint64(s) >> seedBarcodeShift & seedBarcodeMask) }

// Cluster returns the packed cluster index within the tile.
func (s SeedId) Cluster() int { return int(uint64(s) >> seedClusterShift & seedClusterMask) }

// SeedIndex returns the stable per-flowcell seed index.
func (s SeedId) SeedIndex() int { return int(uint64(s) >> seedIndexShift & seedIndexMask) }

// Orientation returns the raw orientation bit. For a non-ambiguous seed
// this is "reverse complement"; for an ambiguous seed it is the
// lowestNSeed flag instead (see IsNSeed).
func (s SeedId) Orientation() bool { return uint64(s)>>seedOrientationShift&seedOrientationMask != 0 }

// IsNSeed reports whether this SeedId identifies an ambiguous-base
// sentinel seed (spec §4.1, §9's "SeedId::isNSeedId").
func (s SeedId) IsNSeed() bool { return s.SeedIndex() == MaxSeedIndex }

// IsLowestNSeed reports whether this ambiguous-base sentinel corresponds
// to the lowest original seed index for its read. Only meaningful when
// IsNSeed() is true; it is this bit that guarantees exactly one no-match
// record is written per ambiguous read (spec §9).
func (s SeedId) IsLowestNSeed() bool { return s.IsNSeed() && s.Orientation() }

// SameRead is a convenience that tests whether two
// SeedIds share the same (tile, barcode, cluster) triple, i.e. refer to
// the same read's seeds across different seed indices.
func (s SeedId) SameRead(o SeedId) bool {
	const readMask = ^uint64(0) << seedClusterShift
	return uint64(s)&readMask == uint64(o)&readMask
}
