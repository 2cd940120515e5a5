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
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
)

// VariantParser parses VCF data lines using the typed INFO and FORMAT
// declarations of a header. Keys without a declaration are parsed as
// strings.
type VariantParser struct {
	infos, formats map[utils.Symbol]*FormatInformation
	NSamples       int
}

// NewVariantParser creates a VariantParser for the given VCF header.
func (header *Header) NewVariantParser() (*VariantParser, error) {
	vp := &VariantParser{
		infos:    make(map[utils.Symbol]*FormatInformation, len(header.Infos)),
		formats:  make(map[utils.Symbol]*FormatInformation, len(header.Formats)),
		NSamples: len(header.Samples()),
	}
	for _, info := range header.Infos {
		if info.Type == Flag && info.Number != 0 {
			return nil, errors.Errorf("INFO %v has Type Flag with Number != 0", *info.ID)
		}
		vp.infos[info.ID] = info
	}
	for _, format := range header.Formats {
		if format.Type == Flag {
			return nil, errors.Errorf("FORMAT %v has Type Flag", *format.ID)
		}
		vp.formats[format.ID] = format
	}
	return vp, nil
}

func parseScalar(s string, t Type) (interface{}, error) {
	if s == "." {
		return nil, nil
	}
	switch t {
	case Integer:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid Integer value %v", s)
		}
		return int(i), nil
	case Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid Float value %v", s)
		}
		return f, nil
	case Character:
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError || size != len(s) {
			return nil, errors.Errorf("invalid Character value %v", s)
		}
		return r, nil
	default:
		return s, nil
	}
}

func parseList(s string, t Type) (interface{}, error) {
	entries := strings.Split(s, ",")
	result := make([]interface{}, len(entries))
	for i, entry := range entries {
		value, err := parseScalar(entry, t)
		if err != nil {
			return nil, err
		}
		result[i] = value
	}
	return result, nil
}

// parseUntyped parses a value without a header declaration.
func parseUntyped(s string) (interface{}, error) {
	if strings.IndexByte(s, ',') < 0 {
		return parseScalar(s, String)
	}
	return parseList(s, String)
}

func parseTyped(format *FormatInformation, s string) (interface{}, error) {
	if format == nil {
		return parseUntyped(s)
	}
	if format.Number == 1 {
		return parseScalar(s, format.Type)
	}
	return parseList(s, format.Type)
}

func (vp *VariantParser) parseInfo(s string) (utils.SmallMap, error) {
	if s == "." || s == "" {
		return nil, nil
	}
	entries := strings.Split(s, ";")
	info := make(utils.SmallMap, 0, len(entries))
	for _, entry := range entries {
		key, value, hasValue := entry, "", false
		if i := strings.IndexByte(entry, '='); i >= 0 {
			key, value, hasValue = entry[:i], entry[i+1:], true
		}
		sym := utils.Intern(key)
		format := vp.infos[sym]
		var v interface{}
		var err error
		switch {
		case format != nil && format.Type == Flag, !hasValue:
			v = true
		default:
			v, err = parseTyped(format, value)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "in INFO entry %v", key)
		}
		info = append(info, utils.SmallMapEntry{Key: sym, Value: v})
	}
	return info, nil
}

// ParseGT parses a VCF GT entry such as 0/1, 1|0, ./. or 0.
func ParseGT(s string) (gt []int32, phased bool, err error) {
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != '/' && s[i] != '|' {
			continue
		}
		if i < len(s) && s[i] == '|' {
			phased = true
		}
		allele := s[start:i]
		if allele == "." {
			gt = append(gt, -1)
		} else {
			a, err := strconv.ParseInt(allele, 10, 32)
			if err != nil || a < 0 {
				return nil, false, errors.Errorf("invalid GT entry %v", s)
			}
			gt = append(gt, int32(a))
		}
		start = i + 1
	}
	return gt, phased, nil
}

func (vp *VariantParser) parseGenotype(format []utils.Symbol, s string) (g Genotype, err error) {
	entries := strings.Split(s, ":")
	if len(entries) > len(format) {
		return g, errors.Errorf("more sample entries than FORMAT keys in %v", s)
	}
	g.Data = make(utils.SmallMap, 0, len(entries))
	for j, entry := range entries {
		key := format[j]
		if key == GT {
			if g.GT, g.Phased, err = ParseGT(entry); err != nil {
				return g, err
			}
			continue
		}
		value, err := parseTyped(vp.formats[key], entry)
		if err != nil {
			return g, errors.Wrapf(err, "in FORMAT entry %v", *key)
		}
		g.Data = append(g.Data, utils.SmallMapEntry{Key: key, Value: value})
	}
	return g, nil
}

func splitOrNil(s string, separator string) []string {
	if s == "." || s == "" {
		return nil
	}
	return strings.Split(s, separator)
}

var passList = []utils.Symbol{PASS}

func parseFilter(s string) []utils.Symbol {
	switch s {
	case ".", "":
		return nil
	case "PASS":
		return passList
	}
	entries := strings.Split(s, ";")
	result := make([]utils.Symbol, len(entries))
	for i, entry := range entries {
		result[i] = utils.Intern(entry)
	}
	return result
}

// ParseVariant parses a VCF data line.
func (vp *VariantParser) ParseVariant(line string) (*Variant, error) {
	columns := strings.Split(line, "\t")
	expected := len(DefaultHeaderColumns)
	if vp.NSamples > 0 {
		expected += 1 + vp.NSamples
	}
	if len(columns) != expected {
		return nil, errors.Errorf("expected %v columns, found %v in VCF data line %v", expected, len(columns), line)
	}
	v := &Variant{
		Chrom:  columns[0],
		ID:     splitOrNil(columns[2], ";"),
		Ref:    columns[3],
		Alt:    splitOrNil(columns[4], ","),
		Filter: parseFilter(columns[6]),
	}
	if columns[1] == "." {
		v.Pos = -1
	} else {
		pos, err := strconv.ParseInt(columns[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid POS in VCF data line %v", line)
		}
		v.Pos = int32(pos)
	}
	if columns[5] != "." {
		qual, err := strconv.ParseFloat(columns[5], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid QUAL in VCF data line %v", line)
		}
		v.Qual = qual
	}
	var err error
	if v.Info, err = vp.parseInfo(columns[7]); err != nil {
		return nil, errors.Wrapf(err, "in VCF data line %v", line)
	}
	if vp.NSamples > 0 {
		for _, key := range strings.Split(columns[8], ":") {
			v.GenotypeFormat = append(v.GenotypeFormat, utils.Intern(key))
		}
		v.GenotypeData = make([]Genotype, vp.NSamples)
		for i, sample := range columns[9:] {
			if v.GenotypeData[i], err = vp.parseGenotype(v.GenotypeFormat, sample); err != nil {
				return nil, errors.Wrapf(err, "in VCF data line %v", line)
			}
		}
	}
	return v, nil
}

func formatFloat(out []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(out, "NaN"...)
	case math.IsInf(f, 1):
		return append(out, "Infinity"...)
	case math.IsInf(f, -1):
		return append(out, "-Infinity"...)
	}
	return strconv.AppendFloat(out, f, 'f', -1, 64)
}

func formatValue(out []byte, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return append(out, '.'), nil
	case int:
		return strconv.AppendInt(out, int64(v), 10), nil
	case float64:
		return formatFloat(out, v), nil
	case rune:
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], v)
		return append(out, buf[:n]...), nil
	case string:
		return append(out, v...), nil
	case []interface{}:
		if len(v) == 0 {
			return append(out, '.'), nil
		}
		for i, entry := range v {
			if i > 0 {
				out = append(out, ',')
			}
			var err error
			if out, err = formatValue(out, entry); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, errors.Errorf("invalid value type %T", value)
	}
}

func formatInfo(out []byte, info utils.SmallMap) ([]byte, error) {
	if len(info) == 0 {
		return append(out, '.'), nil
	}
	for i, entry := range info {
		if i > 0 {
			out = append(out, ';')
		}
		out = append(out, (*entry.Key)...)
		if flag, ok := entry.Value.(bool); ok {
			if !flag {
				return nil, errors.Errorf("unexpected false flag for INFO %v", *entry.Key)
			}
			continue
		}
		out = append(out, '=')
		var err error
		if out, err = formatValue(out, entry.Value); err != nil {
			return nil, errors.Wrapf(err, "in INFO %v", *entry.Key)
		}
	}
	return out, nil
}

// FormatGT appends the VCF representation of a genotype's GT entry.
func FormatGT(out []byte, g *Genotype) []byte {
	if len(g.GT) == 0 {
		return append(out, '.')
	}
	separator := byte('/')
	if g.Phased {
		separator = '|'
	}
	for i, allele := range g.GT {
		if i > 0 {
			out = append(out, separator)
		}
		if allele < 0 {
			out = append(out, '.')
		} else {
			out = strconv.AppendInt(out, int64(allele), 10)
		}
	}
	return out
}

// formatGenotype drops trailing missing entries, but always keeps GT.
func formatGenotype(out []byte, format []utils.Symbol, g *Genotype) ([]byte, error) {
	end := len(out)
	for i, key := range format {
		if i > 0 {
			out = append(out, ':')
		}
		if key == GT {
			out = FormatGT(out, g)
			end = len(out)
			continue
		}
		value, _ := g.Data.Get(key)
		var err error
		if out, err = formatValue(out, value); err != nil {
			return nil, errors.Wrapf(err, "in FORMAT %v", *key)
		}
		if value != nil {
			end = len(out)
		}
	}
	if end == 0 || out[end-1] == '\t' {
		return append(out[:end], '.'), nil
	}
	return out[:end], nil
}

// Format appends a VCF data line for the variant, including the
// trailing newline.
func (v *Variant) Format(out []byte) ([]byte, error) {
	out = append(append(out, v.Chrom...), '\t')
	if v.Pos < 0 {
		out = append(out, '.', '\t')
	} else {
		out = append(strconv.AppendInt(out, int64(v.Pos), 10), '\t')
	}
	out = appendList(out, v.ID, ';')
	out = append(append(out, v.Ref...), '\t')
	out = appendList(out, v.Alt, ',')
	if qual, ok := v.Qual.(float64); ok {
		out = append(formatFloat(out, qual), '\t')
	} else {
		out = append(out, '.', '\t')
	}
	if len(v.Filter) == 0 {
		out = append(out, '.')
	} else {
		for i, filter := range v.Filter {
			if i > 0 {
				out = append(out, ';')
			}
			out = append(out, (*filter)...)
		}
	}
	out = append(out, '\t')
	var err error
	if out, err = formatInfo(out, v.Info); err != nil {
		return nil, errors.Wrapf(err, "while formatting %v:%v", v.Chrom, v.Pos)
	}
	if len(v.GenotypeFormat) > 0 {
		out = append(out, '\t')
		for i, key := range v.GenotypeFormat {
			if i > 0 {
				out = append(out, ':')
			}
			out = append(out, (*key)...)
		}
		for i := range v.GenotypeData {
			out = append(out, '\t')
			if out, err = formatGenotype(out, v.GenotypeFormat, &v.GenotypeData[i]); err != nil {
				return nil, errors.Wrapf(err, "while formatting %v:%v", v.Chrom, v.Pos)
			}
		}
	}
	return append(out, '\n'), nil
}

func appendList(out []byte, list []string, separator byte) []byte {
	if len(list) == 0 {
		return append(out, '.', '\t')
	}
	for i, entry := range list {
		if i > 0 {
			out = append(out, separator)
		}
		out = append(out, entry...)
	}
	return append(out, '\t')
}
