// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package biosimd provides byte-table-based cleanup and packing helpers for
// raw FASTA sequence bytes, used while loading a reference (see
// encoding/fasta).
package biosimd
