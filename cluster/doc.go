// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cluster provides a uniform iterator over sequencer clusters
// (spec §2 L1), independent of the on-disk format the run was captured
// in. A cluster is one molecule's fixed-length base+quality vector, plus
// a pass-filter bit and optional x/y pixel coordinates (spec §3).
//
// Three concrete sources implement Source: bclsource (block-compressed
// base-call files with a tile/cycle sidecar), fastqsource (paired FASTQ),
// and bamsource (BAM, pairing mates via a hash-partitioned cache for
// mates that arrive far apart in file order). All three normalize into
// the same Batch layout so that downstream stages (seed generation
// onward) never branch on input format, matching the "polymorphic data
// sources... dispatch by tagged variant" design note (spec §9).
package cluster
