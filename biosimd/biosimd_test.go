// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package biosimd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fenwick-bio/aligncore/biosimd"
)

func TestCleanASCIISeqInplace(t *testing.T) {
	in := []byte("acgtACGTnNxyz-")
	biosimd.CleanASCIISeqInplace(in)
	assert.Equal(t, "ACGTACGTNNNNNN", string(in))
}

func TestCleanASCIISeqInplaceEmpty(t *testing.T) {
	in := []byte{}
	biosimd.CleanASCIISeqInplace(in)
	assert.Equal(t, []byte{}, in)
}

func TestASCIIToSeq8Inplace(t *testing.T) {
	in := []byte("acgtACGTnNxyz-")
	biosimd.ASCIIToSeq8Inplace(in)
	assert.Equal(t, []byte{1, 2, 4, 8, 1, 2, 4, 8, 15, 15, 15, 15, 15, 15}, in)
}
