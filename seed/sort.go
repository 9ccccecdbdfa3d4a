package seed

import "sort"

// SortByKmer orders a partition's seeds by (k-mer, seed index) ascending,
// the order the matcher's co-walk requires (spec §4.2 "Orderings and
// tie-breaks"). Ambiguous sentinels (seedIndex == MaxSeedIndex) therefore
// concentrate at the end of any run of seeds sharing a k-mer, and at the
// very end of the whole partition since AmbiguousKmer is the maximum
// possible k-mer value.
func SortByKmer(seeds []Seed) {
	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].Kmer != seeds[j].Kmer {
			return seeds[i].Kmer < seeds[j].Kmer
		}
		return seeds[i].Id.SeedIndex() < seeds[j].Id.SeedIndex()
	})
}
