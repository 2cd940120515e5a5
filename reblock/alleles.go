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
	"github.com/pkg/errors"

	"github.com/exascience/reblock/vcf"
)

// Special alleles in GVCF files.
const (
	// NonRef is the symbolic allele standing for any unobserved
	// non-reference allele.
	NonRef = "<NON_REF>"

	spanDel           = "*"
	spanDelDeprecated = "<*:DEL>"
)

// isSymbolicAllele reports whether the allele is symbolic: <ID>,
// breakend notation, or a single breakend.
func isSymbolicAllele(allele string) bool {
	if len(allele) == 0 {
		return false
	}
	if allele[0] == '<' || allele[0] == '.' || allele[len(allele)-1] == '.' {
		return true
	}
	for i := 0; i < len(allele); i++ {
		if c := allele[i]; c == '[' || c == ']' {
			return true
		}
	}
	return false
}

func isNonRef(allele string) bool {
	return allele == NonRef
}

func isSpanningDeletion(allele string) bool {
	return allele == spanDel || allele == spanDelDeprecated
}

// alleleIndex returns the index of the allele in the allele list of
// v, with 0 being the reference, or -1 if v does not have the allele.
// Only alternate alleles are searched, so the reference never matches
// a symbolic allele.
func alleleIndex(v *vcf.Variant, allele string) int {
	for i, alt := range v.Alt {
		if alt == allele {
			return i + 1
		}
	}
	return -1
}

// plIndex returns the index of the diploid genotype j/k in a PL
// vector, for j <= k.
func plIndex(j, k int) int {
	if j > k {
		j, k = k, j
	}
	return k*(k+1)/2 + j
}

// plAlleles is the inverse of plIndex.
func plAlleles(index int) (j, k int) {
	for k*(k+1)/2+k < index {
		k++
	}
	return index - k*(k+1)/2, k
}

// numGenotypes is the number of diploid genotypes over nAlleles alleles.
func numGenotypes(nAlleles int) int {
	return nAlleles * (nAlleles + 1) / 2
}

// plIndicesOfAllele returns the PL indices of the genotypes 0/0, 0/a
// and a/a.
func plIndicesOfAllele(a int) [3]int {
	return [3]int{plIndex(0, 0), plIndex(0, a), plIndex(a, a)}
}

// gatherPLs picks the three entries at idx from a PL vector. Every
// index must be smaller than len(pls), otherwise the PL vector does
// not belong to the allele list the indices were computed for.
func gatherPLs(pls []int, idx [3]int) (result [3]int, err error) {
	for i, index := range idx {
		if index < 0 || index >= len(pls) {
			return result, errors.Errorf("PL index %v out of bounds for a PL vector of length %v", index, len(pls))
		}
		result[i] = pls[index]
	}
	return result, nil
}

// reverseTrimAlleles removes the trailing bases that the reference
// and all other non-symbolic alleles have in common. Every allele
// keeps at least one base.
func reverseTrimAlleles(ref string, alts []string) (string, []string) {
	clip := 0
clipping:
	for {
		if clip+1 >= len(ref) {
			break
		}
		base := ref[len(ref)-clip-1]
		for _, alt := range alts {
			if isSymbolicAllele(alt) {
				continue
			}
			if clip+1 >= len(alt) || alt[len(alt)-clip-1] != base {
				break clipping
			}
		}
		clip++
	}
	if clip == 0 {
		return ref, alts
	}
	trimmed := make([]string, len(alts))
	for i, alt := range alts {
		if isSymbolicAllele(alt) {
			trimmed[i] = alt
		} else {
			trimmed[i] = alt[:len(alt)-clip]
		}
	}
	return ref[:len(ref)-clip], trimmed
}

// VariantType classifies the alleles of a record.
type VariantType int

// Variant types. A record whose alternate alleles have different
// types is Mixed, so a record with both a concrete allele and
// <NON_REF> is never an Indel.
const (
	NoVariation VariantType = iota
	SNP
	MNP
	Indel
	Symbolic
	Mixed
)

func alleleType(ref, alt string) VariantType {
	switch {
	case isSymbolicAllele(alt):
		return Symbolic
	case len(ref) == len(alt) && len(alt) == 1:
		return SNP
	case len(ref) == len(alt):
		return MNP
	default:
		return Indel
	}
}

func variantType(v *vcf.Variant) VariantType {
	result := NoVariation
	for i, alt := range v.Alt {
		t := alleleType(v.Ref, alt)
		if i == 0 {
			result = t
		} else if t != result {
			return Mixed
		}
	}
	return result
}
