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

// Disposition is the route a record takes through the reblocker.
type Disposition int

// The possible dispositions of a record.
const (
	// Drop removes the record from the output.
	Drop Disposition = iota
	// HomRefBlock passes a reference block through the block filter.
	HomRefBlock
	// Demote turns the record into a GQ0 reference record.
	Demote
	// Cleanup keeps a high quality variant, with rewritten annotations.
	Cleanup
)

var dispositionNames = [...]string{"Drop", "HomRefBlock", "Demote", "Cleanup"}

func (d Disposition) String() string {
	if d < 0 || int(d) >= len(dispositionNames) {
		return "Disposition(?)"
	}
	return dispositionNames[d]
}

// isHomRefBlock reports whether the record is an unscored reference block.
func isHomRefBlock(v *vcf.Variant) bool {
	return v.Qual == nil
}

// isHomRefCall reports whether the record is a scored 0/0 call.
func isHomRefCall(v *vcf.Variant) bool {
	return v.Qual != nil && v.GenotypeData[0].IsHomRef()
}

func checkSingleSample(v *vcf.Variant) error {
	if len(v.GenotypeData) != 1 {
		return errors.Errorf("expected exactly one genotype at %v:%v, found %v", v.Chrom, v.Pos, len(v.GenotypeData))
	}
	return nil
}

func (r *Reblocker) dropVariant(v *vcf.Variant) bool {
	return !r.config.IncludeNonVariants && !IsProperlyPolymorphic(v)
}

// Classify decides the disposition of a record, and returns the
// record the disposition applies to. Except for reference blocks and
// records without coverage, this is the record recalculated by the
// genotyper.
func (r *Reblocker) Classify(original *vcf.Variant) (Disposition, *vcf.Variant, error) {
	if err := checkSingleSample(original); err != nil {
		return Drop, nil, err
	}
	if r.dropVariant(original) {
		return Drop, nil, nil
	}
	if isHomRefBlock(original) {
		return HomRefBlock, original, nil
	}
	result := original
	if dp, _ := original.InfoInt(vcf.DP); dp > 0 && !isHomRefCall(original) {
		model := SNPModel
		if variantType(original) == Indel {
			model = IndelModel
		}
		var err error
		if result, err = r.genotyper.CalculateGenotypes(original, model); err != nil {
			return Drop, nil, errors.Wrapf(err, "while genotyping %v:%v", original.Chrom, original.Pos)
		}
		if result != nil {
			if err := checkSingleSample(result); err != nil {
				return Drop, nil, err
			}
		}
	}
	if result == nil || r.dropVariant(result) {
		return Drop, nil, nil
	}
	g := &result.GenotypeData[0]
	if g.IsHomRef() {
		return Demote, result, nil
	}
	pl, ok := g.GetInts(vcf.PL)
	if !ok || len(pl) == 0 {
		return Drop, nil, errors.Errorf("missing PL for a called variant at %v:%v", result.Chrom, result.Pos)
	}
	if float64(pl[0]) < r.config.RGQThreshold {
		return Demote, result, nil
	}
	return Cleanup, result, nil
}
