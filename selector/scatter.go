package selector

import "blainsmith.com/go/seahash"

// repeatScatterHash derives a deterministic per-cluster tie-breaking
// value from the cluster's stable identity, used to spread ties across
// repeats when repeats-scatter is enabled (spec §4.4 step 2 "spread
// across ties by cluster hash"). seahash is chosen for the same reason
// the teacher reaches for it elsewhere: a fast, non-cryptographic hash
// with good avalanche behavior over short keys.
func repeatScatterHash(tile, barcode, cluster int) uint64 {
	var b [12]byte
	putUint32(b[0:4], uint32(tile))
	putUint32(b[4:8], uint32(barcode))
	putUint32(b[8:12], uint32(cluster))

	h := seahash.New()
	h.Write(b[:])
	return h.Sum64()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
