package seed

import (
	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/cluster"
)

// Descriptor is one configured seed position: a fixed-length window at a
// fixed offset within a read, tagged with a stable per-flowcell seed
// index (spec §4.1).
type Descriptor struct {
	ReadIndex int
	Offset    int // cycle offset within the read
	Length    int // k-mer width
	SeedIndex int // stable identity, < alignpb.MaxSeedIndex
}

// Seed is one extracted k-mer instance (spec §3 "Seed. Triple (k-mer,
// seed_id, orientation)").
type Seed struct {
	Kmer        uint64
	Id          alignpb.SeedId
	Orientation bool // true: reverse-complement strand
}

// Generate extracts seeds for every open read of every cluster in batch,
// for the given set of descriptors (one seed-generation pass, i.e. one
// "iteration" in spec terms). refIndex assigns each cluster's barcode to
// a reference partition index (spec §4.1 "clusters may be assigned to
// different references through barcoding"); the returned seeds are
// grouped by that partition, in cluster order within each partition.
//
// Invariant maintained: each open read contributes exactly
// 2*len(descriptors for that read) seed records, whether or not any of
// them are ambiguous (spec §3 "Every cluster produces exactly the same
// number of seeds each iteration"). For a read with one or more ambiguous
// windows, only the sentinel generated from its lowest SeedIndex carries
// IsLowestNSeed=true; downstream, the matcher's emitNoMatch only ever turns a
// IsLowestNSeed sentinel into a written no-match record, which is what
// actually bounds no-match emission to one per read (spec §4.1, §9).
func Generate(batch *cluster.Batch, descriptors []Descriptor, refIndex func(barcode int) int) map[int][]Seed {
	out := map[int][]Seed{}

	byRead := map[int][]Descriptor{}
	for _, d := range descriptors {
		byRead[d.ReadIndex] = append(byRead[d.ReadIndex], d)
	}

	for i := 0; i < batch.N(); i++ {
		info := batch.Info[i]
		ref := refIndex(info.Barcode())
		bases, _ := batch.Cycles(i)

		for readIdx, descs := range byRead {
			if info.ReadClosed(readIdx) {
				continue
			}
			lowest := lowestAmbiguousSeedIndex(bases, descs)
			for _, d := range descs {
				window := bases[d.Offset : d.Offset+d.Length]
				kmer, ambiguous := packKmer(window, d.Length)
				if ambiguous {
					isLowest := d.SeedIndex == lowest
					s1 := Seed{
						Kmer: AmbiguousKmer,
						Id:   alignpb.PackSeedId(info.Tile(), info.Barcode(), i, alignpb.MaxSeedIndex, false, isLowest),
					}
					s2 := Seed{
						Kmer: AmbiguousKmer,
						Id:   alignpb.PackSeedId(info.Tile(), info.Barcode(), i, alignpb.MaxSeedIndex, false, isLowest),
					}
					out[ref] = append(out[ref], s1, s2)
					continue
				}
				rc := revcompKmer(kmer, d.Length)
				out[ref] = append(out[ref], Seed{
					Kmer:        kmer,
					Id:          alignpb.PackSeedId(info.Tile(), info.Barcode(), i, d.SeedIndex, false, false),
					Orientation: false,
				}, Seed{
					Kmer:        rc,
					Id:          alignpb.PackSeedId(info.Tile(), info.Barcode(), i, d.SeedIndex, true, false),
					Orientation: true,
				})
			}
		}
	}
	return out
}

// lowestAmbiguousSeedIndex returns the smallest SeedIndex among descs
// whose window is ambiguous, or -1 if none are.
func lowestAmbiguousSeedIndex(bases []byte, descs []Descriptor) int {
	lowest := -1
	for _, d := range descs {
		window := bases[d.Offset : d.Offset+d.Length]
		if _, ambiguous := packKmer(window, d.Length); ambiguous {
			if lowest == -1 || d.SeedIndex < lowest {
				lowest = d.SeedIndex
			}
		}
	}
	return lowest
}
