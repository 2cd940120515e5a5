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
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

// INFO and FORMAT keys written by the reblocker.
var (
	QualApprox = utils.Intern("QUALapprox")
	VarDP      = utils.Intern("VarDP")
	MQDP       = utils.Intern("MQ_DP")
	SAC        = utils.Intern("SAC")
)

// retainedAnnotations copies the INFO entries of the original record
// produced by the configured annotations.
func (r *Reblocker) retainedAnnotations(original *vcf.Variant) utils.SmallMap {
	var info utils.SmallMap
	for _, annotation := range r.annotations {
		for _, key := range annotation.Keys() {
			if value, ok := original.Info.Get(key); ok {
				info.Set(key, value)
			}
		}
	}
	return info.Copy()
}

// variantDepth is the combined depth of the het and hom-var genotypes.
// AD-derived depths count only for genotypes with more than one
// alternate read when any genotype has such support.
func variantDepth(genotypes []vcf.Genotype) int {
	depth, adRestrictedDepth := 0, 0
	for i := range genotypes {
		g := &genotypes[i]
		if !g.IsHet() && !g.IsHomVar() {
			continue
		}
		if ad, ok := g.GetInts(vcf.AD); ok && len(ad) > 0 {
			if total := sum(ad); total != 0 {
				if total-ad[0] > 1 {
					adRestrictedDepth += total
				}
				depth += total
				continue
			}
		}
		if dp, ok := g.GetInt(vcf.DP); ok {
			depth += dp
		}
	}
	if adRestrictedDepth > 0 {
		return adRestrictedDepth
	}
	return depth
}

// uncalledAlternates marks the concrete alternate alleles of v that
// the genotype does not call.
func uncalledAlternates(v *vcf.Variant, g *vcf.Genotype) *bitset.BitSet {
	called := bitset.New(uint(v.AlleleCount()))
	for _, allele := range g.GT {
		if allele >= 0 {
			called.Set(uint(allele))
		}
	}
	uncalled := bitset.New(uint(v.AlleleCount()))
	for i, alt := range v.Alt {
		if !called.Test(uint(i+1)) && !isSymbolicAllele(alt) {
			uncalled.Set(uint(i + 1))
		}
	}
	return uncalled
}

func callsAllele(g *vcf.Genotype, index int) bool {
	for _, allele := range g.GT {
		if int(allele) == index {
			return true
		}
	}
	return false
}

// cleanUpHighQualityVariant rewrites the annotations of a high
// quality variant, removes <NON_REF> support from its AD, and, when
// low quality data is dropped, removes the alternate alleles that the
// genotype does not call. A genotype that calls <NON_REF> is turned into
// a GQ0 reference call even when low quality data is kept, unlike GATK
// ReblockGVCF, which only checks for it when dropping low quality data.
func (r *Reblocker) cleanUpHighQualityVariant(result, original *vcf.Variant) (*vcf.Variant, error) {
	info := r.retainedAnnotations(original)
	g := result.GenotypeData[0]
	if r.config.DoQualApprox {
		if pls, ok := g.GetInts(vcf.PL); ok && len(pls) > 0 {
			info.Set(QualApprox, pls[0])
			varDP := variantDepth(result.GenotypeData)
			if varDP == 0 {
				varDP, _ = result.InfoInt(vcf.DP)
				if varDP < 1 {
					varDP = 1
				}
			}
			info.Set(VarDP, varDP)
		}
	}

	nonRef := alleleIndex(result, NonRef)
	if nonRef > 0 && callsAllele(&g, nonRef) {
		if r.config.DropLowQuals {
			return nil, nil
		}
		return makeGQ0RefCall(result, &info)
	}

	var drop *bitset.BitSet
	if r.config.DropLowQuals {
		drop = uncalledAlternates(result, &g)
	}

	if ad, ok := g.GetInts(vcf.AD); ok && nonRef > 0 && nonRef < len(ad) && ad[nonRef] > 0 {
		ad[nonRef] = 0
		g = rewriteGenotype(g, withAD(ad), withDP(sum(ad)))
	}

	originalDP, _ := original.InfoInt(vcf.DP)
	info.Set(MQDP, originalDP)

	if drop == nil || drop.None() {
		return rewriteVariant(result,
			withInfo(info),
			withGenotypes(g),
			unfiltered,
		), nil
	}

	keep := make([]int, 0, result.AlleleCount()-int(drop.Count()))
	for i := 0; i < result.AlleleCount(); i++ {
		if !drop.Test(uint(i)) {
			keep = append(keep, i)
		}
	}
	siteDP, _ := result.InfoInt(vcf.DP)
	subset, err := subsetAlleles(g, result.AlleleCount(), keep, siteDP)
	if err != nil {
		return nil, errors.Wrapf(err, "while subsetting alleles at %v:%v", result.Chrom, result.Pos)
	}
	alts := make([]string, 0, len(keep)-1)
	for _, index := range keep[1:] {
		alts = append(alts, result.Allele(index))
	}
	ref, alts := reverseTrimAlleles(result.Ref, alts)
	return rewriteVariant(result,
		withAlleles(ref, alts...),
		withInfo(info),
		withGenotypes(subset),
		unfiltered,
	), nil
}

// isInformative reports whether normalized PLs distinguish any genotype.
func isInformative(pls []int) bool {
	return sum(pls) > 1
}

// gqFromPLs is the difference between the second smallest and the
// smallest PL, capped at 99.
func gqFromPLs(pls []int) int {
	if len(pls) < 2 {
		return 0
	}
	first, second := pls[0], pls[1]
	if second < first {
		first, second = second, first
	}
	for _, pl := range pls[2:] {
		if pl < first {
			first, second = pl, first
		} else if pl < second {
			second = pl
		}
	}
	if gq := second - first; gq < maxGenotypeQual {
		return gq
	}
	return maxGenotypeQual
}

func bestPLIndex(pls []int) int {
	best := 0
	for i, pl := range pls {
		if pl < pls[best] {
			best = i
		}
	}
	return best
}

// subsetAlleles restricts a diploid genotype over nAlleles alleles to
// the alleles at the indices in keep, which must be increasing and
// start with 0. The genotype is reassigned from the subset PLs; it
// becomes a no-call if the subset PLs are not informative, and loses
// its PLs and GQ as well if the site depth is zero.
func subsetAlleles(g vcf.Genotype, nAlleles int, keep []int, siteDP int) (vcf.Genotype, error) {
	var edits []genotypeEdit
	var subsetPLs []int
	if pls, ok := g.GetInts(vcf.PL); ok {
		if len(pls) != numGenotypes(nAlleles) {
			return g, errors.Errorf("expected %v PLs for %v alleles, found %v", numGenotypes(nAlleles), nAlleles, len(pls))
		}
		subsetPLs = make([]int, numGenotypes(len(keep)))
		for k := range keep {
			for j := 0; j <= k; j++ {
				subsetPLs[plIndex(j, k)] = pls[plIndex(keep[j], keep[k])]
			}
		}
		minPL := subsetPLs[bestPLIndex(subsetPLs)]
		for i := range subsetPLs {
			subsetPLs[i] -= minPL
		}
	}
	informative := subsetPLs != nil && isInformative(subsetPLs)
	if subsetPLs != nil && (siteDP != 0 || informative) {
		edits = append(edits, withPL(subsetPLs), withGQ(gqFromPLs(subsetPLs)))
	} else {
		edits = append(edits, withoutPL, withoutGQ)
	}
	if informative {
		j, k := plAlleles(bestPLIndex(subsetPLs))
		edits = append(edits, withGT(int32(j), int32(k)))
	} else {
		edits = append(edits, withNoCall(2))
	}

	if ad, ok := g.GetInts(vcf.AD); ok {
		if len(ad) != nAlleles {
			return g, errors.Errorf("expected %v AD entries, found %v", nAlleles, len(ad))
		}
		subsetAD := make([]int, len(keep))
		for n, index := range keep {
			subsetAD[n] = ad[index]
		}
		edits = append(edits, withAD(subsetAD))
	}
	if sac, ok := g.GetInts(SAC); ok && len(sac) == 2*nAlleles {
		subsetSAC := make([]int, 0, 2*len(keep))
		for _, index := range keep {
			subsetSAC = append(subsetSAC, sac[2*index], sac[2*index+1])
		}
		edits = append(edits, withAttribute(SAC, intList(subsetSAC)))
	}
	return rewriteGenotype(g, edits...), nil
}
