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
	"math"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/vcf"
)

// Model selects the prior used for genotyping a record.
type Model int

// The genotyping models.
const (
	SNPModel Model = iota
	IndelModel
)

func (m Model) String() string {
	if m == IndelModel {
		return "INDEL"
	}
	return "SNP"
}

// A Genotyper recalculates the genotype and confidence of a record
// from its genotype likelihoods. A nil result without error means the
// record cannot be genotyped.
type Genotyper interface {
	CalculateGenotypes(v *vcf.Variant, model Model) (*vcf.Variant, error)
}

// Genotyping defaults.
const (
	DefaultHeterozygosity      = 0.001
	DefaultIndelHeterozygosity = 1.25e-4
	DefaultStandCallConf       = 30.0

	// maxGenotypedAlleles is the largest number of alleles for which
	// diploid genotypes are computed.
	maxGenotypedAlleles = 50
)

// PLGenotyper genotypes single-sample diploid records from their PL
// vectors. The genotype is the one with the smallest PL; QUAL is the
// phred-scaled posterior probability that the sample carries no
// alternate allele, given a heterozygosity prior. All alleles are
// kept.
type PLGenotyper struct {
	Heterozygosity      float64
	IndelHeterozygosity float64
	// StandCallConf is the QUAL below which records are filtered as LowQual.
	StandCallConf float64
}

// NewPLGenotyper returns a PLGenotyper with the default priors and
// calling threshold.
func NewPLGenotyper() *PLGenotyper {
	return &PLGenotyper{
		Heterozygosity:      DefaultHeterozygosity,
		IndelHeterozygosity: DefaultIndelHeterozygosity,
		StandCallConf:       DefaultStandCallConf,
	}
}

// Validate checks that the priors are probabilities that leave room
// for the reference genotype.
func (genotyper *PLGenotyper) Validate() error {
	for _, h := range []float64{genotyper.Heterozygosity, genotyper.IndelHeterozygosity} {
		if !(h > 0 && 1.5*h < 1) {
			return errors.Errorf("invalid heterozygosity %v", h)
		}
	}
	if genotyper.StandCallConf < 0 {
		return errors.Errorf("invalid calling confidence threshold %v", genotyper.StandCallConf)
	}
	return nil
}

// log10Priors returns the log10 prior of each diploid genotype. One
// alternate copy has total prior h, two alternate copies h/2, in both
// cases divided evenly over the genotypes with that many copies.
func log10Priors(nAlleles int, h float64) []float64 {
	nAlts := nAlleles - 1
	hetGenotypes := float64(nAlts)
	homGenotypes := float64(nAlts * (nAlts + 1) / 2)
	priors := make([]float64, numGenotypes(nAlleles))
	priors[0] = math.Log10(1 - 1.5*h)
	for index := 1; index < len(priors); index++ {
		if j, _ := plAlleles(index); j == 0 {
			priors[index] = math.Log10(h / hetGenotypes)
		} else {
			priors[index] = math.Log10(h / 2 / homGenotypes)
		}
	}
	return priors
}

func log10SumLog10(values []float64) float64 {
	maxValue := math.Inf(-1)
	for _, v := range values {
		maxValue = math.Max(maxValue, v)
	}
	if math.IsInf(maxValue, -1) {
		return maxValue
	}
	var total float64
	for _, v := range values {
		total += math.Pow(10, v-maxValue)
	}
	return maxValue + math.Log10(total)
}

// CalculateGenotypes implements Genotyper.
func (genotyper *PLGenotyper) CalculateGenotypes(v *vcf.Variant, model Model) (*vcf.Variant, error) {
	if len(v.GenotypeData) != 1 {
		return nil, errors.Errorf("expected exactly one genotype, found %v", len(v.GenotypeData))
	}
	nAlleles := v.AlleleCount()
	if nAlleles < 2 || nAlleles > maxGenotypedAlleles {
		return nil, nil
	}
	g := v.GenotypeData[0]
	pls, ok := g.GetInts(vcf.PL)
	if !ok {
		return nil, nil
	}
	if len(pls) != numGenotypes(nAlleles) {
		return nil, errors.Errorf("expected %v PLs for %v alleles, found %v", numGenotypes(nAlleles), nAlleles, len(pls))
	}
	h := genotyper.Heterozygosity
	if model == IndelModel {
		h = genotyper.IndelHeterozygosity
	}
	posteriors := log10Priors(nAlleles, h)
	for i, pl := range pls {
		posteriors[i] -= float64(pl) / 10
	}
	log10PNoVariant := posteriors[0] - log10SumLog10(posteriors)
	qual := math.Round(-1000*log10PNoVariant) / 100
	if qual <= 0 {
		qual = 0
	}

	best := bestPLIndex(pls)
	j, k := plAlleles(best)
	genotype := rewriteGenotype(g, withGT(int32(j), int32(k)), withGQ(gqFromPLs(pls)))
	result := rewriteVariant(v, withGenotypes(genotype), func(result *vcf.Variant) {
		result.Qual = qual
		if qual < genotyper.StandCallConf {
			for _, filter := range result.Filter {
				if filter == vcf.LowQual {
					return
				}
			}
			if result.Pass() {
				result.Filter = nil
			}
			result.Filter = append(result.Filter, vcf.LowQual)
		}
	})
	return result, nil
}

// IsProperlyPolymorphic reports whether a record has an alternate
// allele that is not only <NON_REF> or a spanning deletion. A spanning
// deletion followed by <NON_REF> is not properly polymorphic either.
func IsProperlyPolymorphic(v *vcf.Variant) bool {
	switch len(v.Alt) {
	case 0:
		return false
	case 1:
		return !isSpanningDeletion(v.Alt[0]) && variantType(v) != Symbolic
	default:
		return !(isSpanningDeletion(v.Alt[0]) && isNonRef(v.Alt[1]))
	}
}
