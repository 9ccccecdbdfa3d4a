package alignpb

import farm "github.com/dgryski/go-farm"

// QualitySummaryHash reduces a read's quality string to the single
// opaque value a Fragment carries (spec §3 "Fragment... quality-summary
// hash"): a cheap, well-distributed digest good enough to break duplicate-
// rank ties between fragments with otherwise identical coordinates and
// scores, without retaining the full quality string in memory past L6.
func QualitySummaryHash(quals []byte) uint64 {
	return farm.Hash64(quals)
}
