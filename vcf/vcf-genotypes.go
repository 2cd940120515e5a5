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

package vcf

import (
	"math"
	"strconv"

	"github.com/exascience/reblock/utils"
)

// IsCalled reports whether at least one allele of the genotype is called.
func (g *Genotype) IsCalled() bool {
	for _, allele := range g.GT {
		if allele >= 0 {
			return true
		}
	}
	return false
}

// IsNoCall reports whether no allele of the genotype is called.
func (g *Genotype) IsNoCall() bool {
	return !g.IsCalled()
}

func (g *Genotype) fullyCalled() bool {
	if len(g.GT) == 0 {
		return false
	}
	for _, allele := range g.GT {
		if allele < 0 {
			return false
		}
	}
	return true
}

// IsHomRef reports whether all alleles are called and are the reference.
func (g *Genotype) IsHomRef() bool {
	if !g.fullyCalled() {
		return false
	}
	for _, allele := range g.GT {
		if allele != 0 {
			return false
		}
	}
	return true
}

// IsHet reports whether all alleles are called and at least two differ.
func (g *Genotype) IsHet() bool {
	if !g.fullyCalled() {
		return false
	}
	for _, allele := range g.GT[1:] {
		if allele != g.GT[0] {
			return true
		}
	}
	return false
}

// IsHomVar reports whether all alleles are called and are the same
// alternate allele.
func (g *Genotype) IsHomVar() bool {
	return g.fullyCalled() && g.GT[0] != 0 && !g.IsHet()
}

// Ploidy is the number of alleles in the GT entry.
func (g *Genotype) Ploidy() int {
	return len(g.GT)
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(math.Round(v)), true
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}

func toInts(value interface{}) ([]int, bool) {
	list, ok := value.([]interface{})
	if !ok {
		if i, ok := toInt(value); ok {
			return []int{i}, true
		}
		return nil, false
	}
	result := make([]int, len(list))
	for i, entry := range list {
		if result[i], ok = toInt(entry); !ok {
			return nil, false
		}
	}
	return result, true
}

// GetInt returns the integer value of a FORMAT entry. It returns
// false if the entry is missing or not a number.
func (g *Genotype) GetInt(key utils.Symbol) (int, bool) {
	value, _ := g.Data.Get(key)
	return toInt(value)
}

// GetInts returns the integer list value of a FORMAT entry. It
// returns false if the entry is missing, or any element is missing or
// not a number.
func (g *Genotype) GetInts(key utils.Symbol) ([]int, bool) {
	value, _ := g.Data.Get(key)
	return toInts(value)
}

// Has reports whether the genotype has a non-missing FORMAT entry for key.
func (g *Genotype) Has(key utils.Symbol) bool {
	value, ok := g.Data.Get(key)
	return ok && value != nil
}

// InfoInt returns the integer value of an INFO entry.
func (v *Variant) InfoInt(key utils.Symbol) (int, bool) {
	value, _ := v.Info.Get(key)
	return toInt(value)
}

// IsFiltered reports whether the variant failed at least one filter.
func (v *Variant) IsFiltered() bool {
	return len(v.Filter) > 0 && !v.Pass()
}

// AlleleCount is the number of alleles, including the reference.
func (v *Variant) AlleleCount() int {
	return 1 + len(v.Alt)
}

// Allele returns the allele with the given index, 0 being the reference.
func (v *Variant) Allele(index int) string {
	if index == 0 {
		return v.Ref
	}
	return v.Alt[index-1]
}
