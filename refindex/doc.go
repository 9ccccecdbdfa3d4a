// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package refindex reads the pre-indexed reference genome artifact that
// the alignment pipeline consumes as a fixed, external input (spec §1,
// §6). A reference consists of a contig metadata file and a set of mask
// files, one per (seed length, mask) pair; each mask file holds the
// sorted (k-mer, ReferencePosition) records whose k-mer shares the mask's
// prefix. This package never writes references; the pre-indexer that
// produces them is out of scope (spec §1).
package refindex
