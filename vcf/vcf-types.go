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
	"strconv"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
)

// The supported VCF file format version.
const (
	FileFormatVersion           = "VCFv4.2"
	FileFormatVersionLine       = "##fileformat=VCFv4.2"
	fileFormatVersionLinePrefix = "##fileformat=VCFv4."
)

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for different VCF field types
type Type uint

// The different VCF field types
const (
	InvalidType Type = iota
	Integer          // represented as int (not int32, since that's the same as rune in Go)
	Float            // represented as float64
	Flag             // represented as bool with fixed value true
	Character        // represented as rune
	String           // represented as string
)

// Constants for format information Number entries.
const (
	NumberA int32 = -1 * (1 + iota)
	NumberR
	NumberG
	NumberDot
	InvalidNumber
)

// Commonly used VCF entries.
var (
	END     = utils.Intern("END")
	GT      = utils.Intern("GT")
	PASS    = utils.Intern("PASS")
	AD      = utils.Intern("AD")
	DP      = utils.Intern("DP")
	GQ      = utils.Intern("GQ")
	PL      = utils.Intern("PL")
	MinDP   = utils.Intern("MIN_DP")
	LowQual = utils.Intern("LowQual")
)

type (
	// MetaInformation in VCF files.
	MetaInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Fields      utils.StringMap
	}

	// FormatInformation in VCF files.
	FormatInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Number      int32  // > InvalidNumber
		Type        Type
		Fields      utils.StringMap
	}

	// Header section of a VCF files.
	Header struct {
		FileFormat string
		Infos      []*FormatInformation
		Formats    []*FormatInformation
		Meta       map[string][]interface{} // string or *MetaInformation
		Columns    []string
	}

	// Genotype is a structured representation of one sample column.
	Genotype struct {
		Phased bool
		GT     []int32        // < 0 for unknown entries
		Data   utils.SmallMap // all FORMAT entries except GT; values are nil (for missing entry), int, float64, rune, string, or []interface{}
	}

	// Variant line in a VCF file.
	Variant struct {
		Chrom          string
		Pos            int32    // < 0 if unknown
		ID             []string // nil/empty if missing
		Ref            string
		Alt            []string       // nil/empty if missing
		Qual           interface{}    // float64, or nil if missing
		Filter         []utils.Symbol // nil/empty if missing
		Info           utils.SmallMap // values are int, float64, bool, rune, string, or []interface{}
		GenotypeFormat []utils.Symbol
		GenotypeData   []Genotype
	}
)

// NewMetaInformation creates an empty instance.
func NewMetaInformation() *MetaInformation {
	return &MetaInformation{Fields: make(utils.StringMap)}
}

// NewFormatInformation creates an empty instance.
func NewFormatInformation() *FormatInformation {
	return &FormatInformation{Number: InvalidNumber, Fields: make(utils.StringMap)}
}

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		FileFormat: FileFormatVersionLine,
		Meta:       make(map[string][]interface{}),
		Columns:    append([]string(nil), DefaultHeaderColumns...),
	}
}

// Samples returns the sample names in the header.
func (header *Header) Samples() []string {
	if len(header.Columns) <= len(DefaultHeaderColumns)+1 {
		return nil
	}
	return header.Columns[len(DefaultHeaderColumns)+1:]
}

// Copy returns a deep copy of the variant. Genotype data and INFO
// lists can be modified in the copy without affecting the original.
func (v *Variant) Copy() *Variant {
	result := *v
	result.ID = append([]string(nil), v.ID...)
	result.Alt = append([]string(nil), v.Alt...)
	result.Filter = append([]utils.Symbol(nil), v.Filter...)
	result.Info = v.Info.Copy()
	result.GenotypeFormat = append([]utils.Symbol(nil), v.GenotypeFormat...)
	if v.GenotypeData != nil {
		result.GenotypeData = make([]Genotype, len(v.GenotypeData))
		for i := range v.GenotypeData {
			result.GenotypeData[i] = v.GenotypeData[i].Copy()
		}
	}
	return &result
}

// Copy returns a deep copy of the genotype.
func (g Genotype) Copy() Genotype {
	return Genotype{
		Phased: g.Phased,
		GT:     append([]int32(nil), g.GT...),
		Data:   g.Data.Copy(),
	}
}

// Start returns the start position of a VCF line in the reference.
func (v *Variant) Start() int32 {
	return v.Pos
}

// End returns the end position of a VCF line in the reference,
// determined either by the END field or len(v.Ref).
func (v *Variant) End() (int32, error) {
	if end, ok := v.Info.Get(END); ok {
		switch e := end.(type) {
		case int:
			return int32(e), nil
		case string:
			i, err := strconv.ParseInt(e, 10, 32)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid END value at %v:%v", v.Chrom, v.Pos)
			}
			v.Info.Set(END, int(i))
			return int32(i), nil
		default:
			return 0, errors.Errorf("invalid END value %v at %v:%v", end, v.Chrom, v.Pos)
		}
	}
	return v.Pos - 1 + int32(len(v.Ref)), nil
}

// SetEnd sets the end position of a VCF line in the reference by setting the END field.
// If the end position can be calculated from the start position and the length of Ref,
// delete the END field.
func (v *Variant) SetEnd(value int32) {
	if value == v.Pos-1+int32(len(v.Ref)) {
		v.Info, _ = v.Info.Delete(END)
	} else {
		v.Info.Set(END, int(value))
	}
}

// Pass determines whether the variant passed all filters.
func (v *Variant) Pass() bool {
	return len(v.Filter) == 1 && v.Filter[0] == PASS
}
