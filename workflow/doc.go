// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package workflow drives the L9 workflow controller: the state machine
// Start -> MatchFinderDone -> MatchSelectorDone -> AlignmentReportsDone
// -> BamDone (spec §4.7). A Controller's State advances one step at a
// time via Step, persists itself to a checkpoint file that later runs
// can Load to resume, and exposes Rewind (backward only) and
// CleanupIntermediary (idempotent) for operator-driven reruns.
package workflow
