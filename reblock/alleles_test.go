// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

package reblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/reblock/vcf"
)

func TestPLIndex(t *testing.T) {
	index := 0
	for k := 0; k < 6; k++ {
		for j := 0; j <= k; j++ {
			assert.Equal(t, index, plIndex(j, k))
			assert.Equal(t, index, plIndex(k, j))
			a, b := plAlleles(index)
			assert.Equal(t, [2]int{j, k}, [2]int{a, b})
			index++
		}
	}
	assert.Equal(t, index, numGenotypes(6))
	assert.Equal(t, [3]int{0, 1, 2}, plIndicesOfAllele(1))
	assert.Equal(t, [3]int{0, 6, 9}, plIndicesOfAllele(3))
}

func TestGatherPLs(t *testing.T) {
	pls := []int{0, 30, 300, 40, 310, 320, 30, 330, 340, 350}
	result, err := gatherPLs(pls, plIndicesOfAllele(3))
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 30, 350}, result)

	_, err = gatherPLs(pls[:6], plIndicesOfAllele(3))
	assert.Error(t, err)
}

func TestReverseTrimAlleles(t *testing.T) {
	tests := []struct {
		ref      string
		alts     []string
		wantRef  string
		wantAlts []string
	}{
		{"CAA", []string{"CA", NonRef}, "CA", []string{"C", NonRef}},
		{"CAAA", []string{"CA"}, "CAA", []string{"C"}},
		{"A", []string{"G"}, "A", []string{"G"}},
		{"CA", []string{"C", "TA"}, "CA", []string{"C", "TA"}},
		{"ATG", []string{"CTG"}, "A", []string{"C"}},
		{"AT", []string{NonRef}, "A", []string{NonRef}},
	}
	for _, test := range tests {
		ref, alts := reverseTrimAlleles(test.ref, test.alts)
		assert.Equal(t, test.wantRef, ref, test.ref)
		assert.Equal(t, test.wantAlts, alts, test.ref)
	}
}

func TestAlleles(t *testing.T) {
	assert.True(t, isSymbolicAllele(NonRef))
	assert.True(t, isSymbolicAllele("G[chr2:100["))
	assert.True(t, isSymbolicAllele(".A"))
	assert.False(t, isSymbolicAllele("ACGT"))
	assert.False(t, isSymbolicAllele(spanDel))
	assert.True(t, isSpanningDeletion(spanDel))
	assert.True(t, isSpanningDeletion(spanDelDeprecated))

	v := &vcf.Variant{Ref: "A", Alt: []string{"G", NonRef}}
	assert.Equal(t, 2, alleleIndex(v, NonRef))
	assert.Equal(t, -1, alleleIndex(v, "A"))
}

func TestVariantType(t *testing.T) {
	tests := []struct {
		ref  string
		alts []string
		want VariantType
	}{
		{"A", nil, NoVariation},
		{"A", []string{"G"}, SNP},
		{"AC", []string{"GT"}, MNP},
		{"A", []string{"AT"}, Indel},
		{"AT", []string{"A", "ATT"}, Indel},
		{"A", []string{NonRef}, Symbolic},
		{"A", []string{"AT", NonRef}, Mixed},
		{"A", []string{"G", "AT"}, Mixed},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, variantType(&vcf.Variant{Ref: test.ref, Alt: test.alts}), "%v %v", test.ref, test.alts)
	}
}
