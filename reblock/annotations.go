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
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

// An InfoAnnotation names a site-level annotation and the INFO
// entries it produces.
type InfoAnnotation struct {
	Name  string
	Infos []*vcf.FormatInformation
}

// Keys returns the INFO keys of the annotation.
func (annotation *InfoAnnotation) Keys() []utils.Symbol {
	keys := make([]utils.Symbol, len(annotation.Infos))
	for i, info := range annotation.Infos {
		keys[i] = info.ID
	}
	return keys
}

func headerLine(id string, number int32, t vcf.Type, description string) *vcf.FormatInformation {
	info := vcf.NewFormatInformation()
	info.ID = utils.Intern(id)
	info.Number = number
	info.Type = t
	info.Description = description
	return info
}

var (
	coverage = &InfoAnnotation{"Coverage", []*vcf.FormatInformation{
		headerLine("DP", 1, vcf.Integer, "Approximate read depth; some reads may have been filtered"),
	}}
	rmsMappingQuality = &InfoAnnotation{"RMSMappingQuality", []*vcf.FormatInformation{
		headerLine("RAW_MQandDP", 2, vcf.Integer, "Raw data (sum of squared MQ and total depth) for improved RMS Mapping Quality calculation. Incompatible with deprecated RAW_MQ formulation."),
		headerLine("RAW_MQ", 1, vcf.Float, "Raw data for RMS Mapping Quality"),
	}}
	readPosRankSum = &InfoAnnotation{"ReadPosRankSumTest", []*vcf.FormatInformation{
		headerLine("ReadPosRankSum", 1, vcf.Float, "Z-score from Wilcoxon rank sum test of Alt vs. Ref read position bias"),
	}}
	mappingQualityRankSum = &InfoAnnotation{"MappingQualityRankSumTest", []*vcf.FormatInformation{
		headerLine("MQRankSum", 1, vcf.Float, "Z-score From Wilcoxon rank sum test of Alt vs. Ref read mapping qualities"),
	}}
	baseQualityRankSum = &InfoAnnotation{"BaseQualityRankSumTest", []*vcf.FormatInformation{
		headerLine("BaseQRankSum", 1, vcf.Float, "Z-score from Wilcoxon rank sum test of Alt Vs. Ref base qualities"),
	}}
	fisherStrand = &InfoAnnotation{"FisherStrand", []*vcf.FormatInformation{
		headerLine("FS", 1, vcf.Float, "Phred-scaled p-value using Fisher's exact test to detect strand bias"),
	}}
	strandOddsRatio = &InfoAnnotation{"StrandOddsRatio", []*vcf.FormatInformation{
		headerLine("SOR", 1, vcf.Float, "Symmetric Odds Ratio of 2x2 contingency table to detect strand bias"),
	}}
	excessHet = &InfoAnnotation{"ExcessHet", []*vcf.FormatInformation{
		headerLine("ExcessHet", 1, vcf.Float, "Phred-scaled p-value for exact test of excess heterozygosity"),
	}}

	availableAnnotations = []*InfoAnnotation{
		coverage,
		rmsMappingQuality,
		readPosRankSum,
		mappingQualityRankSum,
		baseQualityRankSum,
		fisherStrand,
		strandOddsRatio,
		excessHet,
	}
)

// DefaultAnnotations are the annotations retained unless others are requested.
func DefaultAnnotations() []*InfoAnnotation {
	return []*InfoAnnotation{coverage, rmsMappingQuality, readPosRankSum, mappingQualityRankSum}
}

// AnnotationNames returns the names of all available annotations.
func AnnotationNames() []string {
	names := make([]string, len(availableAnnotations))
	for i, annotation := range availableAnnotations {
		names[i] = annotation.Name
	}
	return names
}

// LookupAnnotations returns the annotations with the given names, in
// the given order and without duplicates. Names are case-insensitive.
func LookupAnnotations(names []string) ([]*InfoAnnotation, error) {
	var result []*InfoAnnotation
	seen := make(map[*InfoAnnotation]bool)
	for _, name := range names {
		var found *InfoAnnotation
		for _, annotation := range availableAnnotations {
			if strings.EqualFold(annotation.Name, strings.TrimSpace(name)) {
				found = annotation
				break
			}
		}
		if found == nil {
			return nil, errors.Errorf("unknown annotation %v, available annotations are %v", name, strings.Join(AnnotationNames(), ", "))
		}
		if !seen[found] {
			seen[found] = true
			result = append(result, found)
		}
	}
	return result, nil
}
