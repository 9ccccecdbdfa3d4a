// Package binbuild implements the bin builder (spec §4.6): it loads one
// bin's fragments, optionally realigns gaps, sorts by forward-strand
// position and duplicate-rank, marks duplicates (including optical
// duplicates for metrics), and emits a block-compressed output file with
// a coordinate index.
//
// Duplicate marking is grounded on the teacher's markduplicates package,
// adapted from sam.Record-keyed BAM shards to the selector package's
// in-memory Fragment/Template model: a bin is small enough to hold
// entirely in memory, so there is no shard padding or distant-mate
// lookup to replicate.
package binbuild
