// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package alignpb defines the fixed-layout wire types shared by every
// stage of the alignment pipeline. SeedId, ReferencePosition and
// ClusterInfo are bit-packed integers; Coord is a plain struct. The bit
// layouts are part of the on-disk format for mask files and match files
// and must not change without a version bump; they are hand-packed so that
// sort order and byte layout are exactly what the matcher's co-walk and
// the mask-file format require.
package alignpb
