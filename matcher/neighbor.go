package matcher

import (
	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/seed"
	"github.com/fenwick-bio/aligncore/util"
)

// prefixBits is the width of the k-mer prefix the neighbor pass groups
// records by (spec §4.2 "bucket candidates by a fixed-width prefix of the
// k-mer before comparing suffixes").
const prefixBits = 32

// NeighborSource is the minimal interface the neighbor pass needs: every
// reference (k-mer, ReferencePosition) record whose k-mer shares the
// 32-bit prefix passed to Records, in arbitrary order. Nothing in this
// module implements it: refindex.MaskFile does not, and workflow.Run
// leaves Job.Neighbors nil, so the pipeline never runs the neighbor pass.
type NeighborSource interface {
	Records(prefix uint32) []PrefixRecord
}

// PrefixRecord is one candidate reference k-mer sharing a seed's 32-bit
// prefix, carried alongside its suffix bases for the Hamming comparison.
type PrefixRecord struct {
	SuffixBases []byte
	Pos         alignpb.ReferencePosition
}

// RunNeighborPass resolves seeds the exact pass left unmatched (io.EOF
// from the exact co-walk, or callers filtering down to NoMatch-only
// seeds beforehand) by comparing each seed's suffix against every
// candidate sharing its 32-bit k-mer prefix, accepting Hamming distance
// <= 1 (spec §4.2 "one-mismatch neighbor pass"). Matches found this way
// always carry the neighbors flag, regardless of whether the reference
// record's stored flag was already set, so downstream consumers can
// always tell an exact hit from a rescued one.
//
// If a prefix bucket holds more candidates than
// opts.NeighborhoodSizeThreshold, the pass gives up on that bucket
// entirely and writes NoMatch for every seed sharing it, rather than
// silently returning a partial or best-effort result (spec §9 "never
// silently degrade").
func RunNeighborPass(seeds []seed.Seed, suffixBits int, src NeighborSource, opts Options, cb Callbacks) error {
	byPrefix := map[uint32][]seed.Seed{}
	for _, s := range seeds {
		prefix := uint32(s.Kmer >> uint(suffixBits))
		byPrefix[prefix] = append(byPrefix[prefix], s)
	}

	for prefix, group := range byPrefix {
		candidates := src.Records(prefix)
		if len(candidates) > opts.NeighborhoodSizeThreshold {
			for _, s := range group {
				if err := cb.Write(s.Id, alignpb.NoMatch); err != nil {
					return err
				}
			}
			continue
		}
		for _, s := range group {
			suffix := suffixBases(s.Kmer, suffixBits)
			found := false
			for _, cand := range candidates {
				if !util.HammingDistanceAtMost(suffix, cand.SuffixBases, 1) {
					continue
				}
				found = true
				if err := cb.Write(s.Id, cand.Pos.WithNeighborsFlag(true)); err != nil {
					return err
				}
			}
			// A neighbor-pass match always carries the forced neighbors flag,
			// so it never closes the read the way an exact-pass hit without
			// the flag does (spec §4.2): the read stays open for any later
			// iteration's fresh seeds.
			if !found {
				if err := cb.Write(s.Id, alignpb.NoMatch); err != nil {
					return err
				}
				cb.CloseRead(s.Id)
			}
		}
	}
	return nil
}

// suffixBases unpacks the low suffixBits/2 bases of a 2-bit-packed k-mer
// into one byte per base (0..3), matching the representation seed.Generate
// uses internally so Hamming comparisons operate base-by-base rather than
// on raw packed bits (a 1-base mismatch can flip more than one bit).
func suffixBases(kmer uint64, suffixBits int) []byte {
	n := suffixBits / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := uint(2 * (n - 1 - i))
		out[i] = byte(kmer >> shift & 0x3)
	}
	return out
}
