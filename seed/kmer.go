package seed

import "github.com/fenwick-bio/aligncore/cluster"

// base2Code maps ASCII bases to their 2-bit code; anything else (in
// practice only 'N') is ambiguous.
var base2Code = [256]int8{}

func init() {
	for i := range base2Code {
		base2Code[i] = -1
	}
	base2Code[cluster.BaseA] = 0
	base2Code[cluster.BaseC] = 1
	base2Code[cluster.BaseG] = 2
	base2Code[cluster.BaseT] = 3
}

// AmbiguousKmer is the reserved k-mer value for ambiguous-base sentinel
// seeds (spec §4.1: "k-mer=all-ones").
const AmbiguousKmer uint64 = ^uint64(0)

// packKmer 2-bit-packs k bases starting at bases[0:k], most significant
// base first. It reports ambiguous=true (and an unspecified kmer value)
// if any base in the window is not one of A/C/G/T.
func packKmer(bases []byte, k int) (kmer uint64, ambiguous bool) {
	for i := 0; i < k; i++ {
		code := base2Code[bases[i]]
		if code < 0 {
			return 0, true
		}
		kmer = kmer<<2 | uint64(code)
	}
	return kmer, false
}

// revcompKmer computes the reverse-complement of a k-base 2-bit-packed
// k-mer directly in its packed form: complementing a 2-bit base code is
// XOR with 0b11 (A<->T, C<->G), and reversing the read direction is
// reversing the order of the k 2-bit groups (spec §4.1: "bit-reversed-
// complement of the same").
func revcompKmer(kmer uint64, k int) uint64 {
	comp := kmer ^ ((uint64(1) << uint(2*k)) - 1)
	var out uint64
	for i := 0; i < k; i++ {
		base := comp & 0x3
		comp >>= 2
		out = out<<2 | base
	}
	return out
}
