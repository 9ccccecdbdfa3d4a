package workflow

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/fenwick-bio/aligncore/alignpb"
	"github.com/fenwick-bio/aligncore/binbuild"
	"github.com/fenwick-bio/aligncore/binner"
	"github.com/fenwick-bio/aligncore/cluster"
	"github.com/fenwick-bio/aligncore/matcher"
	"github.com/fenwick-bio/aligncore/matchio"
	"github.com/fenwick-bio/aligncore/refindex"
	"github.com/fenwick-bio/aligncore/seed"
	"github.com/fenwick-bio/aligncore/selector"
)

// Options collects everything cmd/align-core's flags resolve to: input
// locations, the reference pre-index, and the subset of spec §6's
// workflow options this controller implements directly (the rest are
// already captured by matcher.Options/selector.AlignOptions/
// binbuild.RealignOptions, which Options simply carries through).
type Options struct {
	Metadata    *refindex.Metadata
	Reference   selector.ReferenceFetcher
	MaskFiles   []matcher.MaskRecordSource
	Descriptors []seed.Descriptor
	Source      cluster.Source
	Layout      cluster.FlowcellLayout

	MatchDir string
	BinDir   string
	OutDir   string

	// MatchIterations bounds the number of seed-generate/match passes
	// runMatchFinder runs per tile (spec §4.1, §4.2 "Closing a read...
	// suppress seed emission in subsequent iterations", §8 property 4).
	// Each pass re-generates seeds for whatever reads are still open; the
	// loop exits early once a pass produces no seeds at all. Default (0)
	// behaves as 1.
	MatchIterations int

	// DefaultTemplateLength and DefaultTemplateStddev seed each barcode's
	// selector.TemplateLengthEstimator before its Phase 1 has collected
	// enough confidently-paired templates (spec §4.4).
	DefaultTemplateLength int
	DefaultTemplateStddev float64
	// DefaultShadowWindow bounds selector.ShadowSearchWindow before an
	// estimator is fitted (spec §4.4 step 3, SPEC_FULL.md §C.3).
	DefaultShadowWindow int64

	MatcherOptions  matcher.Options
	AlignOptions    selector.AlignOptions
	RealignOptions  binbuild.RealignOptions
	MarkOptions     binbuild.MarkOptions
	MatchesPerBin   int64
	DropBinPattern  *regexp.Regexp
	MergeBinPattern *regexp.Regexp

	LoadSlots, ComputeSlots, SaveSlots int
}

// Run drives the L9 controller through every state, dispatching the real
// work of L1-L8 to their packages (spec §4.7, module map's "CLI: flag
// wiring, stage sequencing"). It resumes from an existing checkpoint at
// checkpointPath if one is present.
func Run(ctx context.Context, checkpointPath string, opts Options) error {
	ctrl, err := loadOrNew(ctx, checkpointPath, opts.MatchDir, opts.BinDir)
	if err != nil {
		return err
	}

	if ctrl.State() == Start {
		tiles, err := opts.Source.Tiles(ctx)
		if err != nil {
			return err
		}
		sort.Slice(tiles, func(i, j int) bool { return tiles[i].Less(tiles[j]) })
		ctrl.Checkpoint().Tiles = tiles
		ctrl.Checkpoint().Tally = matchio.NewTally()

		if err := runMatchFinder(ctx, opts, ctrl); err != nil {
			return err
		}
		if _, err := ctrl.Step(ctx); err != nil {
			return err
		}
	}

	if ctrl.State() == MatchFinderDone {
		bins, err := runMatchSelector(ctx, opts, ctrl)
		if err != nil {
			return err
		}
		ctrl.Checkpoint().Bins = bins
		if _, err := ctrl.Step(ctx); err != nil {
			return err
		}
		if err := ctrl.CleanupIntermediary(ctx); err != nil {
			return err
		}
	}

	if ctrl.State() == MatchSelectorDone {
		mapping, err := runBinBuilder(ctx, opts, ctrl)
		if err != nil {
			return err
		}
		ctrl.Checkpoint().BamMapping = mapping
		if _, err := ctrl.Step(ctx); err != nil {
			return err
		}
		if err := ctrl.CleanupIntermediary(ctx); err != nil {
			return err
		}
	}

	if ctrl.State() == AlignmentReportsDone {
		if _, err := ctrl.Step(ctx); err != nil {
			return err
		}
	}

	log.Debug.Printf("workflow: run complete at state %s", ctrl.State())
	return nil
}

func loadOrNew(ctx context.Context, checkpointPath, matchDir, binDir string) (*Controller, error) {
	if ctrl, err := Load(ctx, checkpointPath, matchDir, binDir); err == nil {
		return ctrl, nil
	}
	return New(checkpointPath, matchDir, binDir), nil
}

// matchIterations normalizes opts.MatchIterations to a usable bound.
func matchIterations(opts Options) int {
	if opts.MatchIterations < 1 {
		return 1
	}
	return opts.MatchIterations
}

// seedIndexToReadMap inverts opts.Descriptors so a SeedId's SeedIndex can
// be mapped back to the read that produced it (SeedId itself does not
// carry a read index, see alignpb.SeedId).
func seedIndexToReadMap(descs []seed.Descriptor) map[int]int {
	m := make(map[int]int, len(descs))
	for _, d := range descs {
		m[d.SeedIndex] = d.ReadIndex
	}
	return m
}

// closeSeedRead marks the read that produced seedID as closed on its
// cluster (spec §4.2 "Closing a read"). Ambiguous-base sentinel seeds
// don't preserve which read produced them (spec §3's packing reserves
// seedIndex=max for every ambiguous read alike), so a sentinel
// conservatively closes every configured read on the cluster instead of
// guessing.
func closeSeedRead(batch *cluster.Batch, layout cluster.FlowcellLayout, seedIndexToRead map[int]int, seedID alignpb.SeedId) {
	cl := seedID.Cluster()
	if seedID.IsNSeed() {
		for _, r := range layout.Reads {
			batch.CloseRead(cl, r.Index)
		}
		return
	}
	if readIdx, ok := seedIndexToRead[seedID.SeedIndex()]; ok {
		batch.CloseRead(cl, readIdx)
	}
}

// runMatchFinder generates seeds for every tile and schedules one matcher
// job per mask file, writing results through matchio (spec §4.1, §4.2,
// L4/L5 of the module map). Tile order is the sorted (flowcell, lane,
// tile) order spec §5 requires. Matching runs in a bounded loop of
// iterations: each pass regenerates seeds (seed.Generate naturally skips
// closed reads), writes to its own per-iteration tile file ("one output
// stream per tile per iteration", spec §4.3), and wires CloseRead back
// into the batch so later iterations actually see fewer open reads (spec
// §8 property 4, closure monotonicity).
func runMatchFinder(ctx context.Context, opts Options, ctrl *Controller) error {
	tally := ctrl.Checkpoint().Tally
	seedIndexToRead := seedIndexToReadMap(opts.Descriptors)
	maxIter := matchIterations(opts)

	for _, tileID := range ctrl.Checkpoint().Tiles {
		batch, err := opts.Source.ReadTile(ctx, tileID, opts.Layout)
		if err != nil {
			return err
		}

		for iter := 0; iter < maxIter; iter++ {
			seedsByRef := seed.Generate(batch, opts.Descriptors, func(barcode int) int { return 0 })
			if len(seedsByRef[0]) == 0 {
				break // every configured read on every cluster is closed
			}

			tileWriters := make([]*matchio.TileWriter, len(opts.MaskFiles))
			for i := range opts.MaskFiles {
				path := filepath.Join(opts.MatchDir, tilePath(tileID, i, iter))
				w, err := matchio.NewTileWriter(ctx, path, iter, tileID.Tile, tally)
				if err != nil {
					return err
				}
				tileWriters[i] = w
			}

			jobs := make([]matcher.Job, len(opts.MaskFiles))
			for i, mf := range opts.MaskFiles {
				jobs[i] = matcher.Job{Seeds: seedsByRef[0], Mask: mf}
			}

			// matcher.Schedule runs one job per (reference, mask) pair
			// concurrently (spec §4.2); CloseRead mutates the batch's
			// shared per-cluster state, so every job's callback shares one
			// mutex to serialize those writes.
			var closeMu sync.Mutex
			if err := matcher.Schedule(jobs, opts.MatcherOptions, func(i int) matcher.Callbacks {
				w := tileWriters[i]
				return matcher.Callbacks{
					Write: func(seedID alignpb.SeedId, pos alignpb.ReferencePosition) error {
						return w.Write(ctx, seedID, pos)
					},
					CloseRead: func(seedID alignpb.SeedId) {
						closeMu.Lock()
						defer closeMu.Unlock()
						closeSeedRead(batch, opts.Layout, seedIndexToRead, seedID)
					},
				}
			}); err != nil {
				return err
			}

			for _, w := range tileWriters {
				if err := w.Close(ctx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func tilePath(t cluster.TileID, maskIdx, iteration int) string {
	return t.Flowcell + "-" + strconv.Itoa(t.Lane) + "-" + strconv.Itoa(t.Tile) + "-" +
		strconv.Itoa(maskIdx) + "-" + strconv.Itoa(iteration) + ".match"
}

// runMatchSelector rebuilds per-read candidates from the tile match files
// the matcher produced, builds fragments and templates (pairing and
// shadow-rescuing both reads when the layout is paired-end), accumulates
// a match distribution, and writes every template into its assigned
// bin's file (spec §4.4, §4.5, L6/L7 of the module map).
//
// It walks the match files twice: the first pass builds the genome-wide
// match distribution used to choose bin boundaries and feeds confidently
// paired templates to each barcode's selector.TemplateLengthEstimator
// (spec §4.4's "estimation runs on a prefix of each tile"); the second
// pass, run once bin boundaries and every estimator are fixed, places
// each template's bin record.
func runMatchSelector(ctx context.Context, opts Options, ctrl *Controller) ([]binner.Bin, error) {
	dist := binner.NewMatchDistribution(contigLengths(opts.Metadata))
	seedIndexToRead := seedIndexToReadMap(opts.Descriptors)
	estimators := map[int]*selector.TemplateLengthEstimator{}

	for _, tileID := range ctrl.Checkpoint().Tiles {
		batch, err := opts.Source.ReadTile(ctx, tileID, opts.Layout)
		if err != nil {
			return nil, err
		}
		byCluster, err := readClusterMatches(ctx, opts, tileID, seedIndexToRead)
		if err != nil {
			return nil, err
		}
		for cl, cm := range byCluster {
			t, err := buildTemplate(opts, batch, cl, cm, estimators)
			if err != nil {
				return nil, err
			}
			for _, f := range templateFragments(t) {
				if !f.Unmapped() {
					dist.Add(f.ContigID, f.FStrandPos)
				}
			}
		}
	}
	for _, est := range estimators {
		est.Finalize()
	}

	bins := binner.AssignBins(dist, opts.MatchesPerBin)
	bins = binner.FilterBins(bins, func(id int) string { return opts.Metadata.Contigs[id].Name }, opts.DropBinPattern, opts.MergeBinPattern)
	index := binner.BuildIndex(bins)

	writers := binner.NewWriterSet(ctx, opts.BinDir, func(binID int) string {
		return filepath.Join(opts.BinDir, "bin-"+strconv.Itoa(binID)+".bin")
	})
	// Re-walk the match files a second time to actually place fragments,
	// now that bin assignment and every barcode's template-length model
	// are known; this mirrors spec §4.5's "independent second pass"
	// structure without holding every fragment of the run in memory at
	// once.
	for _, tileID := range ctrl.Checkpoint().Tiles {
		batch, err := opts.Source.ReadTile(ctx, tileID, opts.Layout)
		if err != nil {
			return nil, err
		}
		byCluster, err := readClusterMatches(ctx, opts, tileID, seedIndexToRead)
		if err != nil {
			return nil, err
		}
		for cl, cm := range byCluster {
			t, err := buildTemplate(opts, batch, cl, cm, estimators)
			if err != nil {
				return nil, err
			}

			placement := t.Fragments[0]
			if placement.Unmapped() && t.Paired {
				placement = t.Fragments[1]
			}
			binID := binner.UnalignedBinID
			if !placement.Unmapped() {
				if b, ok := index.Lookup(placement.ContigID, placement.FStrandPos); ok {
					binID = b.ID
				}
			}

			binRec := binbuild.BinRecord{
				Paired:        t.Paired,
				Orientation:   t.Orientation,
				DuplicateRank: t.DuplicateRank,
			}
			binRec.Mates[0] = toFragmentRecord(t.Fragments[0])
			if t.Paired {
				binRec.Mates[1] = toFragmentRecord(t.Fragments[1])
			}
			if err := writers.WriteFragment(binID, binbuild.MarshalBinRecord(&binRec)); err != nil {
				return nil, err
			}
		}
	}
	if err := writers.Close(); err != nil {
		return nil, err
	}
	return bins, nil
}

func toFragmentRecord(f selector.Fragment) binbuild.FragmentRecord {
	return binbuild.FragmentRecord{
		ContigID:     int32(f.ContigID),
		FStrandPos:   f.FStrandPos,
		Reverse:      f.Reverse,
		EditDistance: int32(f.EditDistance),
		Score:        int32(f.Score),
		MapQ:         int32(f.MapQ),
		Dodgy:        f.Dodgy,
		Cigar:        f.Cigar,
	}
}

// templateFragments returns the fragments of t that are actually
// populated: both for a paired template, just Fragments[0] for a
// single-ended one (Fragments[1] is a zero Fragment otherwise, which
// would misreport as "mapped to contig 0" if iterated blindly).
func templateFragments(t selector.Template) []selector.Fragment {
	if t.Paired {
		return t.Fragments[:]
	}
	return t.Fragments[:1]
}

// matchPosition is one candidate reference hit for a read, paired with
// the orientation the matching seed carried.
type matchPosition struct {
	pos     alignpb.ReferencePosition
	reverse bool
}

// clusterMatches groups a cluster's candidate positions by read index.
type clusterMatches struct {
	byRead map[int][]matchPosition
}

// readClusterMatches loads every (flowcell, lane, tile) tile's match
// files, across every configured mask and matching iteration, and groups
// non-sentinel positions by (cluster, read index) — the "load all match
// records... group by cluster id" step of spec §4.4. A missing
// iteration's file (because runMatchFinder broke out of its loop early)
// is treated the same as a tile/mask pair with no matches.
func readClusterMatches(ctx context.Context, opts Options, tileID cluster.TileID, seedIndexToRead map[int]int) (map[int]*clusterMatches, error) {
	byCluster := map[int]*clusterMatches{}
	for maskIdx := range opts.MaskFiles {
		for iter := 0; iter < matchIterations(opts); iter++ {
			path := filepath.Join(opts.MatchDir, tilePath(tileID, maskIdx, iter))
			r, err := matchio.OpenTileReader(ctx, path)
			if err != nil {
				continue
			}
			recs, err := r.ReadAll()
			closeErr := r.Close(ctx)
			if err != nil {
				return nil, err
			}
			if closeErr != nil {
				return nil, closeErr
			}
			for _, rec := range recs {
				if rec.Ref.IsSentinel() {
					continue
				}
				cl := rec.Seed.Cluster()
				readIdx := 0
				if !rec.Seed.IsNSeed() {
					if ri, ok := seedIndexToRead[rec.Seed.SeedIndex()]; ok {
						readIdx = ri
					}
				}
				cm := byCluster[cl]
				if cm == nil {
					cm = &clusterMatches{byRead: map[int][]matchPosition{}}
					byCluster[cl] = cm
				}
				cm.byRead[readIdx] = append(cm.byRead[readIdx], matchPosition{pos: rec.Ref, reverse: rec.Seed.Orientation()})
			}
		}
	}
	return byCluster, nil
}

// selectReadFragment resolves one read's candidates into the best
// scoring Fragment, fetching the cluster's actual bases/qualities from
// batch so the selector's gapped/ungapped aligner compares real sequence
// (spec §4.4 step 1).
func selectReadFragment(opts Options, batch *cluster.Batch, cl int, read cluster.ReadLayout, matches []matchPosition) (selector.Fragment, []byte, error) {
	bases := batch.ReadBases(cl, read)
	_, allQuals := batch.Cycles(cl)
	quals := allQuals[read.Offset : read.Offset+read.Length]

	positions := make([]alignpb.ReferencePosition, len(matches))
	orientations := make([]bool, len(matches))
	for i, m := range matches {
		positions[i] = m.pos
		orientations[i] = m.reverse
	}
	info := batch.Info[cl]
	frag, err := selector.SelectForRead(read.Index, bases, quals, positions, orientations, info.Tile(), info.Barcode(), cl, false, opts.Reference, opts.AlignOptions)
	return frag, quals, err
}

// buildTemplate turns cluster cl's per-read candidates into a Template:
// single-ended layouts resolve read 0 alone, paired layouts resolve both
// reads, attempt selector.ShadowRescue when exactly one mate has no
// confident candidate, then call selector.PairTemplate (spec §4.4 steps
// 1-3). Confidently mapped pairs feed the cluster's barcode estimator,
// which sizes the shadow-rescue window for later clusters (spec §4.4
// "Template-length statistics").
func buildTemplate(opts Options, batch *cluster.Batch, cl int, cm *clusterMatches, estimators map[int]*selector.TemplateLengthEstimator) (selector.Template, error) {
	reads := opts.Layout.Reads
	if len(reads) < 2 {
		read0 := reads[0]
		frag, quals, err := selectReadFragment(opts, batch, cl, read0, cm.byRead[read0.Index])
		if err != nil {
			return selector.Template{}, err
		}
		return selector.Template{
			Fragments:     [2]selector.Fragment{frag},
			DuplicateRank: selector.BuildDuplicateRank([]selector.Fragment{frag}, [][]byte{quals}),
		}, nil
	}

	read0, read1 := reads[0], reads[1]
	frag0, quals0, err := selectReadFragment(opts, batch, cl, read0, cm.byRead[read0.Index])
	if err != nil {
		return selector.Template{}, err
	}
	frag1, quals1, err := selectReadFragment(opts, batch, cl, read1, cm.byRead[read1.Index])
	if err != nil {
		return selector.Template{}, err
	}

	info := batch.Info[cl]
	est := estimators[info.Barcode()]
	if est == nil {
		est = selector.NewTemplateLengthEstimator(opts.DefaultTemplateLength, opts.DefaultTemplateStddev)
		estimators[info.Barcode()] = est
	}

	if frag0.Unmapped() != frag1.Unmapped() {
		window := selector.ShadowSearchWindow(est, opts.DefaultShadowWindow)
		if frag0.Unmapped() {
			mateBases := batch.ReadBases(cl, read0)
			if rescued, ok := selector.ShadowRescue(frag1, mateBases, quals0, window, opts.Reference, opts.AlignOptions); ok {
				frag0 = rescued
			}
		} else {
			mateBases := batch.ReadBases(cl, read1)
			if rescued, ok := selector.ShadowRescue(frag0, mateBases, quals1, window, opts.Reference, opts.AlignOptions); ok {
				frag1 = rescued
			}
		}
	}

	t := selector.PairTemplate(frag0, frag1, [2][]byte{quals0, quals1}, opts.AlignOptions)
	if !t.Fragments[0].Unmapped() && !t.Fragments[1].Unmapped() {
		est.Observe(t.Length, t.Orientation)
	}
	return t, nil
}

func contigLengths(m *refindex.Metadata) []int64 {
	out := make([]int64, len(m.Contigs))
	for i, c := range m.Contigs {
		out[i] = c.Length
	}
	return out
}

// runBinBuilder loads, realigns, sorts, duplicate-marks, and emits every
// bin, bounding concurrency with a binbuild.SlotPool (spec §4.6). Bins
// run concurrently via traverse.Each, matching the fixed-size-pool model
// spec §5 describes for every stage.
func runBinBuilder(ctx context.Context, opts Options, ctrl *Controller) (map[string]string, error) {
	bins := ctrl.Checkpoint().Bins
	pool := binbuild.NewSlotPool(opts.LoadSlots, opts.ComputeSlots, opts.SaveSlots)
	mapping := map[string]string{}
	var mu sync.Mutex

	err := traverse.Each(len(bins), func(i int) error {
		b := bins[i]
		binPath := filepath.Join(opts.BinDir, "bin-"+strconv.Itoa(b.ID)+".bin")
		outPath := filepath.Join(opts.OutDir, "bin-"+strconv.Itoa(b.ID)+".out")

		var recs []binbuild.BinRecord
		return pool.RunBin(
			func() error {
				var err error
				recs, err = binbuild.LoadBin(ctx, binPath)
				return err
			},
			func() error {
				if _, err := binbuild.Realign(recs, opts.Reference, nil, opts.RealignOptions); err != nil {
					return err
				}
				binbuild.SortRecords(recs)
				binbuild.MarkDuplicates(recs, opts.MarkOptions)
				return nil
			},
			func() error {
				w, err := binbuild.NewBlockWriter(ctx, outPath)
				if err != nil {
					return err
				}
				for i := range recs {
					if err := w.WriteRecord(&recs[i]); err != nil {
						return err
					}
				}
				if _, err := w.Close(ctx); err != nil {
					return err
				}
				mu.Lock()
				mapping[strconv.Itoa(b.ID)] = outPath
				mu.Unlock()
				return nil
			},
		)
	})
	if err != nil {
		if aborted, abortErr := pool.Aborted(); aborted && abortErr != nil {
			return nil, errors.E(errors.Invalid, abortErr, "workflow: bin builder stage aborted")
		}
		return nil, err
	}
	return mapping, nil
}
