package matcher

import (
	"github.com/grailbio/base/traverse"

	"github.com/fenwick-bio/aligncore/seed"
)

// Job is one independent unit of matcher work: the seeds destined for one
// reference partition, co-walked against that partition's mask file for
// one (k-mer width, mask) shard (spec §4.2 "reference, mask pairs are
// independent and schedulable in parallel").
type Job struct {
	Seeds []seed.Seed
	Mask  MaskRecordSource
	// Neighbors nil skips the neighbor pass; workflow.Run always leaves
	// it nil.
	Neighbors  NeighborSource
	SuffixBits int
}

// Schedule runs one job per (reference, mask) pair via
// github.com/grailbio/base/traverse, mirroring the teacher's use of
// traverse.Each for embarrassingly parallel per-shard work (spec §5
// "fixed thread pool sized to available cores, independent of cluster
// batch size" — traverse.Each bounds concurrency to GOMAXPROCS
// internally). Each job gets its own Callbacks from newCallbacks so
// write targets stay per-worker.
func Schedule(jobs []Job, opts Options, newCallbacks func(jobIdx int) Callbacks) error {
	return traverse.Each(len(jobs), func(i int) error {
		job := jobs[i]
		cb := newCallbacks(i)
		if err := RunExactPass(job.Seeds, job.Mask, opts, cb); err != nil {
			return err
		}
		if job.Neighbors == nil {
			return nil
		}
		return RunNeighborPass(job.Seeds, job.SuffixBits, job.Neighbors, opts, cb)
	})
}
