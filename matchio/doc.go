// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package matchio writes and tallies the match records emitted by the
// matcher (spec §2 L5). The pipeline writes a separate append-only file
// for each (tile, mask, iteration). A Tally
// tracks the running match count per (iteration, tile, barcode) and is
// serialized alongside the workflow checkpoint so the selector can
// recover counts after a restart (spec §4.3).
package matchio
