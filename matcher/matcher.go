package matcher

import (
	"io"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/seed"
)

// Options bounds the matcher's behavior (spec §6 option table).
type Options struct {
	// RepeatThreshold is the maximum reference hits per seed before
	// TOO_MANY_MATCH is emitted instead of individual positions.
	RepeatThreshold int
	// NeighborhoodSizeThreshold bounds how many reference records
	// sharing a 32-bit prefix the neighbor pass will buffer before
	// aborting that prefix.
	NeighborhoodSizeThreshold int
}

// MaskRecordSource is the minimal interface the matcher needs from a mask
// file: sequential (k-mer, ReferencePosition) records in ascending k-mer
// order. refindex.MaskFile implements this; tests substitute a slice-
// backed fake.
type MaskRecordSource interface {
	Next() (kmer uint64, pos alignpb.ReferencePosition, err error)
}

// Callbacks lets the matcher stay decoupled from match-file I/O and from
// the in-memory cluster state that tracks read closure.
type Callbacks struct {
	// Write is invoked once per (seedId, referencePosition) the matcher
	// decides to emit, including TOO_MANY_MATCH and NoMatch sentinels.
	Write func(seedID alignpb.SeedId, pos alignpb.ReferencePosition) error
	// CloseRead is invoked when a seed's read should no longer be
	// re-seeded in later iterations (spec §4.2 "Closing a read").
	CloseRead func(seedID alignpb.SeedId)
}

// RunExactPass co-walks seeds (sorted by (k-mer, seed index), per
// seed.SortByKmer) against mf's sorted records, implementing the
// algorithm of spec §4.2 verbatim: seeds whose k-mer precedes every
// remaining reference k-mer get an immediate no-match; a k-mer group at
// or above RepeatThreshold (or holding the TooManyMatch sentinel) becomes
// TOO_MANY_MATCH for every seed sharing it and closes those seeds' reads
// unconditionally — the spec's co-walk pseudocode closes on
// TOO_MANY_MATCH in any pass, which this implementation follows in
// preference to the summary prose elsewhere in §4.2 that suggests
// deferring closure to the final pass only; see DESIGN.md for the
// resolution of this discrepancy. Otherwise every seed × reference-record
// pair in the group is written, and a seed's read is closed only if none
// of the positions it matched carry the neighbors flag.
//
// Ambiguous-base sentinel seeds (seed.Id.IsNSeed()) are handled by the
// same merge join with no special casing: AmbiguousKmer never appears in
// a mask file, so they fall through to the no-match branch. Only the
// lowest-flagged sentinel for a given read is actually written and
// closes the read, bounding no-match emission to one record per
// ambiguous read (spec §9).
func RunExactPass(seeds []seed.Seed, mf MaskRecordSource, opts Options, cb Callbacks) error {
	cap := opts.RepeatThreshold + 1
	refGroup := make([]alignpb.ReferencePosition, 0, cap)

	curKmer, curPos, refErr := mf.Next()
	refDone := refErr == io.EOF
	if refErr != nil && refErr != io.EOF {
		return refErr
	}

	i := 0
	for i < len(seeds) {
		sk := seeds[i].Kmer
		iEnd := i + 1
		for iEnd < len(seeds) && seeds[iEnd].Kmer == sk {
			iEnd++
		}

		if refDone || sk < curKmer {
			if err := emitNoMatch(seeds[i:iEnd], cb); err != nil {
				return err
			}
			i = iEnd
			continue
		}
		if sk > curKmer {
			for !refDone && curKmer < sk {
				curKmer, curPos, refErr = mf.Next()
				if refErr == io.EOF {
					refDone = true
					break
				}
				if refErr != nil {
					return refErr
				}
			}
			continue
		}

		// sk == curKmer: collect the full reference group sharing this
		// k-mer, bounded by the reserved scratch capacity.
		refGroup = refGroup[:0]
		groupKmer := curKmer
		groupSize := 0
		sawTooManySentinel := false
		for !refDone && curKmer == groupKmer {
			groupSize++
			if curPos == alignpb.TooManyMatch {
				sawTooManySentinel = true
			}
			if len(refGroup) < cap {
				refGroup = append(refGroup, curPos)
			}
			curKmer, curPos, refErr = mf.Next()
			if refErr == io.EOF {
				refDone = true
				break
			}
			if refErr != nil {
				return refErr
			}
		}

		tooMany := groupSize >= opts.RepeatThreshold || sawTooManySentinel
		for _, s := range seeds[i:iEnd] {
			if tooMany {
				if err := cb.Write(s.Id, alignpb.TooManyMatch); err != nil {
					return err
				}
				cb.CloseRead(s.Id)
				continue
			}
			allWithoutNeighbors := true
			for _, pos := range refGroup {
				if err := cb.Write(s.Id, pos); err != nil {
					return err
				}
				if pos.HasNeighbors() {
					allWithoutNeighbors = false
				}
			}
			if allWithoutNeighbors {
				cb.CloseRead(s.Id)
			}
		}
		i = iEnd
	}
	return nil
}

// emitNoMatch writes a NoMatch record for every real (non-sentinel) seed
// in the group, and for at most the lowest-flagged ambiguous sentinel —
// never for a non-lowest ambiguous sentinel, preserving the "exactly one
// no-match per ambiguous read" invariant.
func emitNoMatch(seeds []seed.Seed, cb Callbacks) error {
	for _, s := range seeds {
		if s.Id.IsNSeed() && !s.Id.IsLowestNSeed() {
			continue
		}
		if err := cb.Write(s.Id, alignpb.NoMatch); err != nil {
			return err
		}
		if s.Id.IsNSeed() {
			cb.CloseRead(s.Id)
		}
	}
	return nil
}
