package main

/*
  align-core runs the short-read alignment core pipeline end to end:
  match finding, match selection, fragment binning, bin building, and
  workflow checkpointing. For more information, see
  github.com/fenwick-bio/aligncore/workflow/doc.go
*/

import (
	"flag"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/fenwick-bio/aligncore/barcode"
	"github.com/fenwick-bio/aligncore/binbuild"
	"github.com/fenwick-bio/aligncore/cluster"
	"github.com/fenwick-bio/aligncore/encoding/fasta"
	"github.com/fenwick-bio/aligncore/matcher"
	"github.com/fenwick-bio/aligncore/refindex"
	"github.com/fenwick-bio/aligncore/seed"
	"github.com/fenwick-bio/aligncore/selector"
	"github.com/fenwick-bio/aligncore/workflow"
)

var (
	contigsFile = flag.String("contigs", "", "reference contig metadata file")
	fastaFile   = flag.String("fasta", "", "reference FASTA file")
	maskFiles   = flag.String("masks", "", "comma-separated list of mask file paths, one per seed width")
	seedWidths  = flag.String("seed-widths", "", "comma-separated seed k-mer widths, aligned with -masks")
	maskWidth   = flag.Int("mask-width", 0, "high-order bits of the k-mer each mask file is partitioned on")

	clusterSource     = flag.String("cluster-source", "fastq", "cluster input format: fastq, bcl, or bam")
	fastqR1           = flag.String("fastq-r1", "", "read 1 FASTQ path (cluster-source=fastq)")
	fastqR2           = flag.String("fastq-r2", "", "read 2 FASTQ path, empty for single-ended (cluster-source=fastq)")
	flowcell          = flag.String("flowcell", "FC1", "flowcell identifier")
	bamPath           = flag.String("bam", "", "input BAM path (cluster-source=bam)")
	bclRoot           = flag.String("bcl-root", "", "base-call run folder root (cluster-source=bcl)")
	bclLane           = flag.Int("bcl-lane", 1, "lane number (cluster-source=bcl)")
	sampleSheet       = flag.String("sample-sheet", "", "tab-separated sample sheet path (cluster-source=bcl)")
	barcodeMismatches = flag.Int("barcode-mismatches", 1, "mismatches tolerated per barcode component")
	barcodeOffset     = flag.Int("barcode-offset", 0, "first cycle of the (single-component) barcode read, -1 to disable demux")
	barcodeLength     = flag.Int("barcode-length", 8, "barcode read length in cycles")
	read1Length       = flag.Int("read1-length", 0, "read 1 cycle count")
	read2Length       = flag.Int("read2-length", 0, "read 2 cycle count, 0 for single-ended")

	matchDir   = flag.String("match-dir", "/tmp/align-core/match", "scratch directory for per-tile match files")
	binDir     = flag.String("bin-dir", "/tmp/align-core/bin", "scratch directory for per-bin fragment files")
	outDir     = flag.String("out-dir", "/tmp/align-core/out", "directory for final block-compressed alignment output")
	checkpoint = flag.String("checkpoint", "/tmp/align-core/checkpoint", "workflow checkpoint path")

	repeatThreshold           = flag.Int("repeat-threshold", 100, "maximum reference hits per seed before TOO_MANY_MATCH")
	neighborhoodSizeThreshold = flag.Int("neighborhood-size-threshold", 0, "maximum ref records per prefix for neighbor matching; the pipeline builds no neighbor index, so the neighbor pass does not run")
	matchesPerBin             = flag.Int64("matches-per-bin", 1_000_000, "target fragment count per output bin")
	maxUngappedMismatches     = flag.Int("max-ungapped-mismatches", 2, "mismatches tolerated before falling back to gapped alignment")
	matchScore                = flag.Int("match-score", 1, "alignment match score")
	mismatchScore             = flag.Int("mismatch-score", -4, "alignment mismatch penalty, negative")
	gapOpenScore              = flag.Int("gap-open-score", -6, "alignment gap open penalty, negative")
	gapExtendScore            = flag.Int("gap-extend-score", -1, "alignment gap extend penalty, negative")
	realignGapsPerFragment    = flag.Int("realigned-gaps-per-fragment", 2, "maximum gap combination size tried per fragment during bin realignment")
	realignScoreThreshold     = flag.Int("realign-score-threshold", 1, "minimum edit-distance improvement required to accept a realignment")
	singleLibrarySamples      = flag.Bool("single-library-samples", false, "extend duplicate scope across library boundaries within a barcode")
	opticalDistance           = flag.Int("optical-distance", 2500, "pixel distance threshold for optical duplicates, use -1 to disable")
	loadSlots                 = flag.Int("load-slots", runtime.NumCPU(), "concurrent bin-load slots")
	computeSlots              = flag.Int("compute-slots", runtime.NumCPU(), "concurrent bin-compute slots")
	saveSlots                 = flag.Int("save-slots", runtime.NumCPU(), "concurrent bin-save slots")

	matchIterations       = flag.Int("match-iterations", 4, "maximum seed-generate/match passes per tile; a pass with no open reads ends the loop early")
	defaultTemplateLength = flag.Int("default-template-length", 400, "template length assumed before a barcode's estimator has fit a model")
	defaultTemplateStddev = flag.Float64("default-template-stddev", 100, "template length stddev assumed before a barcode's estimator has fit a model")
	defaultShadowWindow   = flag.Int64("default-shadow-window", 1000, "shadow-rescue search window before a barcode's estimator has fit a model")
)

func parseIntList(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			log.Fatalf("align-core: bad integer %q in list %q", p, s)
		}
		out = append(out, v)
	}
	return out
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
	}

	ctx := vcontext.Background()

	metadata, err := refindex.ReadMetadata(ctx, *contigsFile)
	if err != nil {
		log.Fatalf(err.Error())
	}

	fastaFileHandle, err := file.Open(ctx, *fastaFile)
	if err != nil {
		log.Fatalf(err.Error())
	}
	defer fastaFileHandle.Close(ctx) // nolint: errcheck
	fa, err := fasta.New(fastaFileHandle.Reader(ctx))
	if err != nil {
		log.Fatalf(err.Error())
	}
	reference := refindex.NewSequenceSource(metadata, fa)

	widths := parseIntList(*seedWidths)
	paths := parseStringList(*maskFiles)
	if len(widths) != len(paths) {
		log.Fatalf("align-core: -seed-widths and -masks must list the same number of entries")
	}
	var maskSources []matcher.MaskRecordSource
	for i, width := range widths {
		mf, err := refindex.OpenMaskFile(ctx, paths[i], width, *maskWidth, 0)
		if err != nil {
			log.Fatalf(err.Error())
		}
		maskSources = append(maskSources, mf)
	}

	// Every configured read gets its own copy of the seed descriptors, at
	// offsets within the batch's global cycle range (seed.Generate indexes
	// a cluster's full cycle array directly, see seed/seed.go), with seed
	// indices kept unique across reads so workflow.Run can map a SeedId
	// back to the read that produced it (spec §4.1, §4.2's per-read
	// closing).
	numReads := 1
	readOffsets := []int{0, *read1Length}
	if *read2Length > 0 {
		numReads = 2
	}
	var descriptors []seed.Descriptor
	seedIdx := 0
	for readIdx := 0; readIdx < numReads; readIdx++ {
		offset := readOffsets[readIdx]
		for _, width := range widths {
			descriptors = append(descriptors, seed.Descriptor{ReadIndex: readIdx, Offset: offset, Length: width, SeedIndex: seedIdx})
			offset += width
			seedIdx++
		}
	}

	var source cluster.Source
	layout := cluster.FlowcellLayout{
		Reads: []cluster.ReadLayout{{Index: 0, Offset: 0, Length: *read1Length}},
	}
	switch *clusterSource {
	case "fastq":
		source = cluster.NewFASTQSource(*flowcell, *fastqR1, *fastqR2, file.Opts{})
		layout.CycleCount = *read1Length
		if *read2Length > 0 {
			layout.Reads = append(layout.Reads, cluster.ReadLayout{Index: 1, Offset: *read1Length, Length: *read2Length})
			layout.CycleCount += *read2Length
		}
	case "bam":
		source = cluster.NewBAMSource(*bamPath, 1, file.Opts{})
		layout.CycleCount = *read1Length
	case "bcl":
		var resolver *barcode.Resolver
		if *barcodeOffset >= 0 {
			layout.Barcodes = []cluster.ReadLayout{{Index: 0, Offset: *barcodeOffset, Length: *barcodeLength}}
			if *sampleSheet != "" {
				ss, err := barcode.ReadSampleSheet(ctx, *sampleSheet)
				if err != nil {
					log.Fatalf(err.Error())
				}
				resolver = barcode.NewResolver(ss.ForLane(*flowcell, *bclLane), *barcodeMismatches)
			}
		}
		source = cluster.NewBCLSource(*bclRoot, nil, resolver, file.Opts{})
		layout.CycleCount = *read1Length
	default:
		log.Fatalf("align-core: unknown -cluster-source %q", *clusterSource)
	}

	opts := workflow.Options{
		Metadata:    metadata,
		Reference:   reference,
		MaskFiles:   maskSources,
		Descriptors: descriptors,
		Source:      source,
		Layout:      layout,
		MatchDir:    *matchDir,
		BinDir:      *binDir,
		OutDir:      *outDir,

		MatchIterations:       *matchIterations,
		DefaultTemplateLength: *defaultTemplateLength,
		DefaultTemplateStddev: *defaultTemplateStddev,
		DefaultShadowWindow:   *defaultShadowWindow,

		MatcherOptions: matcher.Options{
			RepeatThreshold:           *repeatThreshold,
			NeighborhoodSizeThreshold: *neighborhoodSizeThreshold,
		},
		AlignOptions: selector.AlignOptions{
			MatchScore:            *matchScore,
			MismatchScore:         *mismatchScore,
			GapOpenScore:          *gapOpenScore,
			GapExtendScore:        *gapExtendScore,
			MaxUngappedMismatches: *maxUngappedMismatches,
		},
		RealignOptions: binbuild.RealignOptions{
			MaxGapsPerFragment: *realignGapsPerFragment,
			ScoreThreshold:     *realignScoreThreshold,
		},
		MarkOptions: binbuild.MarkOptions{
			SingleLibrarySamples: *singleLibrarySamples,
			OpticalDistance:      *opticalDistance,
		},
		MatchesPerBin: *matchesPerBin,
		LoadSlots:     *loadSlots,
		ComputeSlots:  *computeSlots,
		SaveSlots:     *saveSlots,
	}

	if err := workflow.Run(ctx, *checkpoint, opts); err != nil {
		log.Fatalf(err.Error())
	}
	log.Debug.Printf("align-core: exiting")
}
