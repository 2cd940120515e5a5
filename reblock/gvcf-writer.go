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
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

const maxGenotypeQual = 99

// GVCFBlockKey prefixes the header lines describing the GQ bands.
const GVCFBlockKey = "GVCFBlock"

// parseGQBands checks that the bands are exclusive upper bounds in
// [1,100] in strictly increasing order, and returns the band
// boundaries starting at 0 and ending at 100.
func parseGQBands(bands []int) ([]int, error) {
	if len(bands) == 0 {
		return nil, errors.New("the list of GQ bands cannot be empty")
	}
	bounds := []int{0}
	for _, band := range bands {
		if band < 1 || band > maxGenotypeQual+1 {
			return nil, errors.Errorf("GQ band %v is not in [1,%v]", band, maxGenotypeQual+1)
		}
		if band <= bounds[len(bounds)-1] {
			return nil, errors.Errorf("GQ bands must be strictly increasing, but %v follows %v", band, bounds[len(bounds)-1])
		}
		bounds = append(bounds, band)
	}
	if last := bounds[len(bounds)-1]; last < maxGenotypeQual+1 {
		bounds = append(bounds, maxGenotypeQual+1)
	}
	return bounds, nil
}

type homRefBlock struct {
	contig       string
	start, end   int32
	ref          string
	minPLs       [3]int
	dps          []int
	minDP        int
	minGQ, maxGQ int
}

// GVCFWriter merges consecutive 0/0 <NON_REF> records whose GQ falls
// into the same band into reference blocks. Records must be added in
// genomic order.
type GVCFWriter struct {
	bounds         []int
	block          *homRefBlock
	nextStartChrom string
	nextStart      int32
}

// NewGVCFWriter returns a GVCFWriter for the given GQ bands, or an
// error if the bands are malformed.
func NewGVCFWriter(bands []int) (*GVCFWriter, error) {
	bounds, err := parseGQBands(bands)
	if err != nil {
		return nil, err
	}
	return newGVCFWriter(bounds), nil
}

func newGVCFWriter(bounds []int) *GVCFWriter {
	return &GVCFWriter{bounds: bounds, nextStart: -1}
}

// BlockHeaderLines returns the header meta-information for the GQ bands.
func (writer *GVCFWriter) BlockHeaderLines() (keys, values []string) {
	for i := 1; i < len(writer.bounds); i++ {
		low, high := writer.bounds[i-1], writer.bounds[i]
		keys = append(keys, fmt.Sprintf("%v%v-%v", GVCFBlockKey, low, high))
		values = append(values, fmt.Sprintf("minGQ=%v(inclusive),maxGQ=%v(exclusive)", low, high))
	}
	return
}

func (writer *GVCFWriter) findGQBand(gq int) (min, max int) {
	if gq > maxGenotypeQual {
		gq = maxGenotypeQual
	} else if gq < 0 {
		gq = 0
	}
	index := sort.Search(len(writer.bounds), func(index int) bool {
		return writer.bounds[index] > gq
	})
	return writer.bounds[index-1], writer.bounds[index]
}

// blockable reports whether v is a 0/0 call with <NON_REF> as its only
// alternate allele and a diploid PL vector.
func blockable(v *vcf.Variant) ([3]int, bool) {
	var pls [3]int
	if len(v.GenotypeData) != 1 || len(v.Alt) != 1 || !isNonRef(v.Alt[0]) {
		return pls, false
	}
	g := &v.GenotypeData[0]
	if !g.IsHomRef() || g.Ploidy() != 2 {
		return pls, false
	}
	pl, ok := g.GetInts(vcf.PL)
	if !ok || len(pl) != 3 {
		return pls, false
	}
	copy(pls[:], pl)
	return pls, true
}

func (writer *GVCFWriter) newBlock(v *vcf.Variant, end int32, pls [3]int, gq, dp, minDP int) {
	minGQ, maxGQ := writer.findGQBand(gq)
	writer.block = &homRefBlock{
		contig: v.Chrom,
		start:  v.Pos,
		end:    end,
		ref:    v.Ref[:1],
		minPLs: pls,
		dps:    []int{dp},
		minDP:  minDP,
		minGQ:  minGQ,
		maxGQ:  maxGQ,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var vNonRefAlt = []string{NonRef}

func (block *homRefBlock) toVariant() *vcf.Variant {
	dps := append([]int(nil), block.dps...)
	sort.Ints(dps)
	var medianDP int
	if half := len(dps) / 2; len(dps)%2 == 0 {
		medianDP = int(math.Round(float64(dps[half-1]+dps[half]) / 2))
	} else {
		medianDP = dps[half]
	}
	pls := block.minPLs[:]
	return &vcf.Variant{
		Chrom:          block.contig,
		Pos:            block.start,
		Ref:            block.ref,
		Alt:            vNonRefAlt,
		Info:           utils.SmallMap{{Key: vcf.END, Value: int(block.end)}},
		GenotypeFormat: []utils.Symbol{vcf.GT, vcf.DP, vcf.GQ, vcf.MinDP, vcf.PL},
		GenotypeData: []vcf.Genotype{{
			GT: []int32{0, 0},
			Data: utils.SmallMap{
				{Key: vcf.DP, Value: medianDP},
				{Key: vcf.GQ, Value: gqFromPLs(pls)},
				{Key: vcf.MinDP, Value: block.minDP},
				{Key: vcf.PL, Value: intList(pls)},
			},
		}},
	}
}

// Add merges v into the current block, or emits the current block and
// v itself. It appends all records that are complete to variants.
// Reference records that are fully covered by a previously emitted
// variant are dropped.
func (writer *GVCFWriter) Add(variants []*vcf.Variant, v *vcf.Variant) ([]*vcf.Variant, error) {
	end, err := v.End()
	if err != nil {
		return variants, err
	}
	pls, ok := blockable(v)
	if !ok {
		variants = writer.Flush(variants)
		writer.nextStartChrom, writer.nextStart = v.Chrom, end
		return append(variants, v), nil
	}
	if writer.nextStart >= 0 {
		if v.Chrom == writer.nextStartChrom && end <= writer.nextStart {
			return variants, nil
		}
		writer.nextStart = -1
	}
	g := &v.GenotypeData[0]
	gq, ok := g.GetInt(vcf.GQ)
	if !ok {
		gq = gqFromPLs(pls[:])
	}
	dp, ok := g.GetInt(vcf.DP)
	if !ok || dp < 0 {
		dp = 0
	}
	minDP, ok := g.GetInt(vcf.MinDP)
	if !ok || minDP < 0 {
		minDP = dp
	}
	if block := writer.block; block != nil {
		if block.contig == v.Chrom && block.end+1 == v.Pos && gq >= block.minGQ && gq < block.maxGQ {
			block.end = end
			block.dps = append(block.dps, dp)
			block.minDP = minInt(block.minDP, minDP)
			for i := range pls {
				block.minPLs[i] = minInt(block.minPLs[i], pls[i])
			}
			return variants, nil
		}
		variants = writer.Flush(variants)
	}
	writer.newBlock(v, end, pls, gq, dp, minDP)
	return variants, nil
}

// Flush emits the current block, if any. It must be called at
// the end of the input.
func (writer *GVCFWriter) Flush(variants []*vcf.Variant) []*vcf.Variant {
	if writer.block == nil {
		return variants
	}
	variants = append(variants, writer.block.toVariant())
	writer.block = nil
	return variants
}
