package binner

import "github.com/biogo/store/llrb"

// Bin is a contiguous half-open genomic interval that accumulates
// fragments overlapping it (spec §3 "Bin").
type Bin struct {
	ID       int
	ContigID int
	Start    int64
	End      int64 // exclusive
}

// Contains reports whether (contigID, pos) falls within the bin.
func (b Bin) Contains(contigID int, pos int64) bool {
	return contigID == b.ContigID && pos >= b.Start && pos < b.End
}

// UnalignedBinID is the reserved id of the bin that catches fragments
// with no reference position (spec §3 "an 'unaligned' bin that catches
// fragments with no reference position").
const UnalignedBinID = -1

// AssignBins partitions dist into bins of approximately matchesPerBin
// fragments each, walking each contig's buckets in order (spec §4.5).
// A contig boundary always starts a new bin, even if the running count
// for the previous bin hasn't reached matchesPerBin, since a bin never
// spans two contigs (spec §3 Bin's "contiguous half-open interval
// [contig_id, start_offset)...[contig_id, end_offset)").
func AssignBins(dist *MatchDistribution, matchesPerBin int64) []Bin {
	var bins []Bin
	nextID := 0

	for contigID := 0; contigID < dist.NumContigs(); contigID++ {
		nBuckets := dist.NumBuckets(contigID)
		if nBuckets == 0 {
			continue
		}
		binStart := int64(0)
		running := int64(0)
		for bucket := 0; bucket < nBuckets; bucket++ {
			running += dist.BucketCount(contigID, int64(bucket)*bucketSize)
			isLastBucket := bucket == nBuckets-1
			if running >= matchesPerBin || isLastBucket {
				end := int64(bucket+1) * bucketSize
				bins = append(bins, Bin{ID: nextID, ContigID: contigID, Start: binStart, End: end})
				nextID++
				binStart = end
				running = 0
			}
		}
	}
	return bins
}

// binKey adapts a (contigID, offset) lookup point to llrb.Comparable,
// ordered the same way spec §5 requires bin iteration: by (contig,
// offset).
type binKey struct {
	contigID int
	offset   int64
	bin      *Bin
}

func (k binKey) Compare(o llrb.Comparable) int {
	k2 := o.(binKey)
	if k.contigID != k2.contigID {
		return k.contigID - k2.contigID
	}
	switch {
	case k.offset < k2.offset:
		return -1
	case k.offset > k2.offset:
		return 1
	default:
		return 0
	}
}

// Index supports locating the bin covering a given genomic position by
// floor lookup in an llrb tree keyed on each bin's start coordinate
// (spec §5 "bins are indexed by (contig, offset) order").
type Index struct {
	tree llrb.Tree
	bins []Bin
}

// BuildIndex indexes bins by their start coordinate for floor lookups.
func BuildIndex(bins []Bin) *Index {
	idx := &Index{bins: bins}
	for i := range bins {
		idx.tree.Insert(binKey{contigID: bins[i].ContigID, offset: bins[i].Start, bin: &bins[i]})
	}
	return idx
}

// Lookup returns the bin covering (contigID, pos), or a zero Bin and
// false if contigID is negative or pos falls
// outside every indexed bin.
func (idx *Index) Lookup(contigID int, pos int64) (Bin, bool) {
	if contigID < 0 {
		return Bin{}, false
	}
	probe := binKey{contigID: contigID, offset: pos}
	c := idx.tree.Floor(probe)
	if c == nil {
		return Bin{}, false
	}
	k := c.(binKey)
	if !k.bin.Contains(contigID, pos) {
		return Bin{}, false
	}
	return *k.bin, true
}
