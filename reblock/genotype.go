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
	"sort"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

// A genotypeEdit modifies a freshly copied genotype.
type genotypeEdit func(g *vcf.Genotype)

// rewriteGenotype returns a copy of g with the edits applied in
// order. g itself is left unchanged.
func rewriteGenotype(g vcf.Genotype, edits ...genotypeEdit) vcf.Genotype {
	result := g.Copy()
	for _, edit := range edits {
		edit(&result)
	}
	return result
}

func intList(values []int) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func withGT(alleles ...int32) genotypeEdit {
	return func(g *vcf.Genotype) {
		g.GT = append([]int32(nil), alleles...)
		g.Phased = false
	}
}

func withNoCall(ploidy int) genotypeEdit {
	return func(g *vcf.Genotype) {
		g.GT = make([]int32, ploidy)
		for i := range g.GT {
			g.GT[i] = -1
		}
		g.Phased = false
	}
}

func withAttribute(key utils.Symbol, value interface{}) genotypeEdit {
	return func(g *vcf.Genotype) {
		g.Data.Set(key, value)
	}
}

func withoutAttribute(key utils.Symbol) genotypeEdit {
	return func(g *vcf.Genotype) {
		g.Data, _ = g.Data.Delete(key)
	}
}

func withPL(pl []int) genotypeEdit {
	return withAttribute(vcf.PL, intList(pl))
}

func withAD(ad []int) genotypeEdit {
	return withAttribute(vcf.AD, intList(ad))
}

func withGQ(gq int) genotypeEdit {
	return withAttribute(vcf.GQ, gq)
}

func withDP(dp int) genotypeEdit {
	return withAttribute(vcf.DP, dp)
}

var (
	withoutPL = withoutAttribute(vcf.PL)
	withoutAD = withoutAttribute(vcf.AD)
	withoutGQ = withoutAttribute(vcf.GQ)
)

// withoutExtendedAttributes keeps only the standard AD, DP, GQ and PL entries.
func withoutExtendedAttributes(g *vcf.Genotype) {
	data := g.Data[:0]
	for _, entry := range g.Data {
		switch entry.Key {
		case vcf.AD, vcf.DP, vcf.GQ, vcf.PL:
			data = append(data, entry)
		}
	}
	g.Data = data
}

// computeGenotypeFormat returns the FORMAT keys for the given
// genotypes: GT first, then all other keys in lexicographic order.
func computeGenotypeFormat(genotypes []vcf.Genotype) []utils.Symbol {
	if len(genotypes) == 0 {
		return nil
	}
	seen := make(map[utils.Symbol]bool)
	var keys []utils.Symbol
	for _, g := range genotypes {
		for _, entry := range g.Data {
			if !seen[entry.Key] {
				seen[entry.Key] = true
				keys = append(keys, entry.Key)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return *keys[i] < *keys[j]
	})
	return append([]utils.Symbol{vcf.GT}, keys...)
}

// A variantEdit modifies a freshly copied variant.
type variantEdit func(v *vcf.Variant)

// rewriteVariant returns a copy of v with the edits applied in order,
// and with its FORMAT keys recomputed from its genotypes.
func rewriteVariant(v *vcf.Variant, edits ...variantEdit) *vcf.Variant {
	result := v.Copy()
	for _, edit := range edits {
		edit(result)
	}
	result.GenotypeFormat = computeGenotypeFormat(result.GenotypeData)
	return result
}

func withAlleles(ref string, alts ...string) variantEdit {
	return func(v *vcf.Variant) {
		v.Ref = ref
		v.Alt = append([]string(nil), alts...)
	}
}

func withInfo(info utils.SmallMap) variantEdit {
	return func(v *vcf.Variant) {
		v.Info = info.Copy()
	}
}

func withGenotypes(genotypes ...vcf.Genotype) variantEdit {
	return func(v *vcf.Variant) {
		v.GenotypeData = append([]vcf.Genotype(nil), genotypes...)
	}
}

func unfiltered(v *vcf.Variant) {
	v.Filter = nil
}

// withoutConfidence marks the record as a reference block.
func withoutConfidence(v *vcf.Variant) {
	v.Qual = nil
}

func sum(values []int) (result int) {
	for _, v := range values {
		result += v
	}
	return
}
