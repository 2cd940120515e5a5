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
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

const testHeaderText = `##fileformat=VCFv4.2
##GVCFBlock0-20=minGQ=0(inclusive),maxGQ=20(exclusive)
##INFO=<ID=DP,Number=1,Type=Integer,Description="Approximate read depth">
##INFO=<ID=END,Number=1,Type=Integer,Description="Stop position of the interval">
##INFO=<ID=ExcessHet,Number=1,Type=Float,Description="Phred-scaled p-value for exact test of excess heterozygosity">
##INFO=<ID=MLEAC,Number=A,Type=Integer,Description="Maximum likelihood expectation for the allele counts">
##INFO=<ID=MQRankSum,Number=1,Type=Float,Description="Z-score From Wilcoxon rank sum test of Alt vs. Ref read mapping qualities">
##INFO=<ID=RAW_MQandDP,Number=2,Type=Integer,Description="Raw data for RMS Mapping Quality">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Approximate read depth">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype Quality">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=MIN_DP,Number=1,Type=Integer,Description="Minimum DP observed within the GVCF block">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Phred-scaled genotype likelihoods">
##FORMAT=<ID=SB,Number=4,Type=Integer,Description="Per-sample component statistics">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	NA12878
`

func testHeader(t *testing.T) *vcf.Header {
	header, _, err := vcf.ParseHeader(bufio.NewReader(strings.NewReader(testHeaderText)))
	require.NoError(t, err)
	return header
}

// record converts a whitespace-separated test line into a VCF data
// line.
func record(line string) string {
	return strings.Join(strings.Fields(line), "\t")
}

func parseRecord(t *testing.T, line string) *vcf.Variant {
	parser, err := testHeader(t).NewVariantParser()
	require.NoError(t, err)
	v, err := parser.ParseVariant(record(line))
	require.NoError(t, err)
	return v
}

func newTestReblocker(t *testing.T, config Config, genotyper Genotyper) *Reblocker {
	if genotyper == nil {
		genotyper = NewPLGenotyper()
	}
	r, err := New(config, genotyper, DefaultAnnotations())
	require.NoError(t, err)
	return r
}

func genotypeInts(t *testing.T, v *vcf.Variant, key string) []int {
	values, ok := v.GenotypeData[0].GetInts(utils.Intern(key))
	require.True(t, ok, "missing %v", key)
	return values
}

func genotypeInt(t *testing.T, v *vcf.Variant, key string) int {
	value, ok := v.GenotypeData[0].GetInt(utils.Intern(key))
	require.True(t, ok, "missing %v", key)
	return value
}

func formatKeys(v *vcf.Variant) []string {
	keys := make([]string, len(v.GenotypeFormat))
	for i, key := range v.GenotypeFormat {
		keys[i] = *key
	}
	return keys
}
