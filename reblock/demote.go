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

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

// trimmedReference returns the reference to use for a reference
// record derived from v. Deletions are trimmed to their first base,
// and the END of the deletion is recorded in info.
func trimmedReference(v *vcf.Variant, info *utils.SmallMap) (ref string, trimmed bool, err error) {
	if len(v.Ref) <= 1 {
		return v.Ref, false, nil
	}
	end, err := v.End()
	if err != nil {
		return "", false, err
	}
	info.Set(vcf.END, int(end))
	return v.Ref[:1], true, nil
}

// lowQualVariantToGQ0HomRef turns result into a reference record with
// only the <NON_REF> alternate allele. Genotypes that are not 0/0
// calls get PL=[0,0,0] and GQ=0. For 0/0 calls of a multiallelic
// source, the PLs of the 0/0, 0/<NON_REF> and <NON_REF>/<NON_REF>
// genotypes of the source allele list are kept, even if another
// alternate allele is more likely. DP and MIN_DP are set to the sum of
// AD, and AD itself is removed, whereas GATK ReblockGVCF keeps AD on
// demoted records; merged blocks carry no AD either way.
func lowQualVariantToGQ0HomRef(result, original *vcf.Variant, dropLowQuals bool) (*vcf.Variant, error) {
	homRefCall := isHomRefCall(result)
	if dropLowQuals && !homRefCall {
		return nil, nil
	}
	var info utils.SmallMap
	ref, trimmed, err := trimmedReference(result, &info)
	if err != nil {
		return nil, err
	}
	g := result.GenotypeData[0]
	var edits []genotypeEdit
	if trimmed {
		edits = append(edits, withGT(0, 0))
	}
	if !homRefCall {
		edits = append(edits, withPL([]int{0, 0, 0}), withGQ(0), withGT(0, 0))
	} else if original.AlleleCount() > 2 {
		pls, ok := g.GetInts(vcf.PL)
		if !ok {
			return nil, errors.Errorf("missing PL for a multiallelic reference call at %v:%v", result.Chrom, result.Pos)
		}
		nonRef := alleleIndex(original, NonRef)
		if nonRef < 0 {
			return nil, errors.Errorf("missing %v allele for a multiallelic reference call at %v:%v", NonRef, original.Chrom, original.Pos)
		}
		gathered, err := gatherPLs(pls, plIndicesOfAllele(nonRef))
		if err != nil {
			return nil, errors.Wrapf(err, "at %v:%v", result.Chrom, result.Pos)
		}
		edits = append(edits, withPL(gathered[:]))
	}
	if ad, ok := g.GetInts(vcf.AD); ok {
		depth := sum(ad)
		edits = append(edits, withDP(depth), withAttribute(vcf.MinDP, depth))
	}
	edits = append(edits, withoutAD)
	g = rewriteGenotype(g, edits...)
	if pls, ok := g.GetInts(vcf.PL); !ok || len(pls) != 3 {
		return nil, errors.Errorf("demoted genotype at %v:%v lacks a diploid PL vector", result.Chrom, result.Pos)
	}
	return rewriteVariant(result,
		withAlleles(ref, NonRef),
		unfiltered,
		withoutConfidence,
		withInfo(info),
		withGenotypes(g),
	), nil
}

// makeGQ0RefCall demotes a record whose genotype calls <NON_REF>.
// info receives the END of trimmed deletions.
func makeGQ0RefCall(result *vcf.Variant, info *utils.SmallMap) (*vcf.Variant, error) {
	ref, _, err := trimmedReference(result, info)
	if err != nil {
		return nil, err
	}
	g := rewriteGenotype(result.GenotypeData[0],
		withPL([]int{0, 0, 0}),
		withGQ(0),
		withoutAD,
		withGT(0, 0),
		withoutExtendedAttributes,
	)
	return rewriteVariant(result,
		withAlleles(ref, NonRef),
		unfiltered,
		withoutConfidence,
		withInfo(*info),
		withGenotypes(g),
	), nil
}
