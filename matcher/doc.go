// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package matcher implements the k-mer co-walk that is the hardest piece
// of the pipeline (spec §2 L4, §4.2): a sorted-seed-array vs.
// sorted-mask-file merge join, emitting TOO_MANY_MATCH or per-position
// matches for the exact pass, plus an optional one-Hamming-distance
// neighbor pass over the seed suffix for seeds the exact pass left
// unresolved.
//
// (reference, mask) pairs are independent and are handed to a fixed
// worker pool by Schedule, mirroring the fixed-size thread pool of spec
// §5 via github.com/grailbio/base/traverse.
package matcher
