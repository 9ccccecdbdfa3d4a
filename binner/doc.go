// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package binner implements the fragment binner (spec §2 L7, §4.5):
// given a pre-computed match distribution, it partitions the genome into
// bins of approximately equal fragment count, and streams fragment bytes
// plus small per-end indexes into per-bin files. An unaligned bin
// collects fragments with no reference position; bins may be merged or
// dropped by a caller-supplied regex.
package binner
