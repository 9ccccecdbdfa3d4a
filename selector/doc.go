// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package selector implements the match selector / template builder (spec
// §2 L6, §4.4): per cluster, it turns match records into candidate
// fragment alignments, pairs them into templates consistent with the
// observed insert-size model, scores and chooses a best alignment, and
// rescues an unmapped mate via a shadow search around its partner.
//
// The selector never sorts its output; spec §4.4 leaves bin locality to
// the downstream fragment binner.
package selector
