// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package barcode resolves a cluster's observed barcode bases to a sample
// index (spec §2 L2), within a per-flowcell+lane table parsed from the
// sample sheet (spec §6). Resolution allows up to a configured number of
// mismatches per barcode component; an unresolved barcode is assigned the
// reserved "unknown" sample, sample index 0 (spec §3).
package barcode
