package alignpb

import "math"

// ReferencePosition packs a position in the reference genome into a single
// uint64:
//
//	[ contigId:23 | contigOffset:40 | hasNeighbors:1 ]
//	  63       41   40            1   0
//
// Two reserved values do not decode to a real contig/offset: TooManyMatch
// (the k-mer occurs at least repeatThreshold times in the reference) and
// NoMatch (the seed's k-mer occurs nowhere; only produced downstream of the
// mask files, never stored in one). Both sentinels compare greater than
// every real position, so that sorting match records by reference position
// ascending naturally orders exact hits first and sentinels last (spec §3).
type ReferencePosition uint64

const (
	refNeighborsBits = 1
	refOffsetBits    = 40
	refContigBits    = 23

	refNeighborsShift = 0
	refOffsetShift    = refNeighborsShift + refNeighborsBits
	refContigShift    = refOffsetShift + refOffsetBits

	refNeighborsMask = uint64(1)<<refNeighborsBits - 1
	refOffsetMask    = uint64(1)<<refOffsetBits - 1
	refContigMask    = uint64(1)<<refContigBits - 1

	// MaxContigId and MaxContigOffset bound the fields packed into a
	// ReferencePosition. The all-ones contig id is left unused so that
	// both sentinels sort above every real position.
	MaxContigId     = int(refContigMask) - 1
	MaxContigOffset = int64(refOffsetMask)

	// NoMatch is the sentinel meaning "this k-mer occurs nowhere in the
	// reference". It never appears in a stored mask file; the matcher
	// produces it for unresolved seeds.
	NoMatch ReferencePosition = math.MaxUint64

	// TooManyMatch is the sentinel meaning "this k-mer's occurrence count
	// meets or exceeds repeatThreshold"; the exact count is not preserved.
	TooManyMatch ReferencePosition = math.MaxUint64 - 1
)

// PackReferencePosition builds a ReferencePosition from its fields. It
// panics on overflow; callers (the reference pre-indexer, consumed as a
// fixed artifact per spec §1) are expected to validate ahead of time.
func PackReferencePosition(contigId int, contigOffset int64, hasNeighbors bool) ReferencePosition {
	if contigId < 0 || contigId > MaxContigId {
		panic("alignpb: contigId out of range for ReferencePosition")
	}
	if contigOffset < 0 || contigOffset > MaxContigOffset {
		panic("alignpb: contigOffset out of range for ReferencePosition")
	}
	var n uint64
	if hasNeighbors {
		n = 1
	}
	return ReferencePosition(
		uint64(contigId)<<refContigShift |
			uint64(contigOffset)<<refOffsetShift |
			n<<refNeighborsShift,
	)
}

// IsSentinel reports whether p is TooManyMatch or NoMatch rather than a
// real reference coordinate.
func (p ReferencePosition) IsSentinel() bool { return p == NoMatch || p == TooManyMatch }

// ContigId returns the packed contig id. Undefined for sentinel values.
func (p ReferencePosition) ContigId() int { return int(uint64(p) >> refContigShift & refContigMask) }

// ContigOffset returns the packed 0-based contig offset. Undefined for
// sentinel values.
func (p ReferencePosition) ContigOffset() int64 {
	return int64(uint64(p) >> refOffsetShift & refOffsetMask)
}

// HasNeighbors reports whether at least one ≤1-mismatch variant of this
// k-mer exists elsewhere in the reference. Undefined for sentinel values.
func (p ReferencePosition) HasNeighbors() bool {
	return uint64(p)>>refNeighborsShift&refNeighborsMask != 0
}

// WithNeighborsFlag returns p with the neighbors bit forced to v. Used by
// the neighbor-matching pass (spec §4.2) to force the flag on for ≤1
// mismatch matches, signalling lower confidence downstream.
func (p ReferencePosition) WithNeighborsFlag(v bool) ReferencePosition {
	if p.IsSentinel() {
		return p
	}
	if v {
		return p | ReferencePosition(refNeighborsMask<<refNeighborsShift)
	}
	return p &^ ReferencePosition(refNeighborsMask<<refNeighborsShift)
}
