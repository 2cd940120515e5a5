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

package bed

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
)

// Bed is a struct for representing the regions of a BED file. See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format1
type Bed struct {
	// Maps chromosome name onto bed regions.
	RegionMap map[utils.Symbol][]*Region
}

// A Region is a struct for representing intervals as defined in a BED
// file. Start is 0-based and End is exclusive.
type Region struct {
	Chrom          utils.Symbol
	Start          int32
	End            int32
	OptionalFields []interface{}
}

// Symbols for optional strand field of a Region.
var (
	// Strand forward.
	SF = utils.Intern("+")
	// Strand reverse.
	SR = utils.Intern("-")
)

// NewRegion allocates and initializes a new Region. Optional fields
// are given in order. If a "later" field is entered, then the
// "earlier" field was entered as well.
func NewRegion(chrom utils.Symbol, start int32, end int32, fields []string) (*Region, error) {
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid BED region %v:%v-%v", *chrom, start, end)
	}
	regionFields, err := initializeRegionFields(fields)
	if err != nil {
		return nil, err
	}
	return &Region{
		Chrom:          chrom,
		Start:          start,
		End:            end,
		OptionalFields: regionFields,
	}, nil
}

// Valid bed region optional fields.
const (
	brName = iota
	brScore
	brStrand
	brThickStart
	brThickEnd
	brItemRgb
	brBlockCount
	brBlockSizes
	brBlockStarts
)

func parseIntField(name, val string) (int, error) {
	value, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %v field", name)
	}
	return value, nil
}

func initializeRegionFields(fields []string) ([]interface{}, error) {
	brFields := make([]interface{}, len(fields))
	var err error
	for i, val := range fields {
		switch i {
		case brName:
			brFields[brName] = val
		case brScore:
			var score int
			if score, err = parseIntField("Score", val); err == nil && (score < 0 || score > 1000) {
				err = errors.Errorf("invalid Score field: %v", val)
			}
			brFields[brScore] = score
		case brStrand:
			switch val {
			case "+":
				brFields[brStrand] = SF
			case "-":
				brFields[brStrand] = SR
			case ".":
				brFields[brStrand] = nil
			default:
				err = errors.Errorf("invalid Strand field: %v", val)
			}
		case brThickStart:
			brFields[brThickStart], err = parseIntField("ThickStart", val)
		case brThickEnd:
			brFields[brThickEnd], err = parseIntField("ThickEnd", val)
		case brItemRgb:
			brFields[brItemRgb] = val
		case brBlockCount:
			brFields[brBlockCount], err = parseIntField("BlockCount", val)
		case brBlockSizes:
			brFields[brBlockSizes] = val
		case brBlockStarts:
			brFields[brBlockStarts] = val
		default:
			err = errors.Errorf("invalid optional field: %v out of 0-8", val)
		}
		if err != nil {
			return nil, err
		}
	}
	return brFields, nil
}

// NewBed allocates and initializes an empty bed.
func NewBed() *Bed {
	return &Bed{
		RegionMap: make(map[utils.Symbol][]*Region),
	}
}

// AddRegion adds a region to the bed region map.
func (bed *Bed) AddRegion(region *Region) {
	bed.RegionMap[region.Chrom] = append(bed.RegionMap[region.Chrom], region)
}

func (bed *Bed) sortRegions() {
	for _, regions := range bed.RegionMap {
		sort.SliceStable(regions, func(i, j int) bool {
			return regions[i].Start < regions[j].Start
		})
	}
}
