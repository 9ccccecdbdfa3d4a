// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seed extracts k-mer seeds from a batch of clusters at
// configured read offsets (spec §2 L3, §4.1). Each seed is emitted as a
// forward and a reverse-complement k-mer, tagged with a packed SeedId.
// Seeds whose window contains an ambiguous base are replaced with a
// reserved sentinel, preserving the "emit exactly one no-match record per
// ambiguous read" invariant (spec §3, §9).
package seed
