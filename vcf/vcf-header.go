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
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
)

const (
	descriptionKey = "Description"
	idKey          = "ID"
	numberKey      = "Number"
	typeKey        = "Type"
)

// ParseMetaField parses one key=value pair in a structured VCF
// meta-information line. Quoted values are unescaped.
func (sc *StringScanner) ParseMetaField() (key, value string) {
	if sc.err != nil {
		return
	}
	sc.SkipSpace()
	start := sc.index
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == '=') {
			break
		}
	}
	key = sc.data[start:sc.index]
	sc.SkipSpace()
	if sc.peek() != '=' {
		sc.fail(errors.Errorf("invalid key=value pair in a VCF meta-information line: %v", sc.data))
		return
	}
	sc.index++
	if sc.peek() == '"' {
		sc.index++
		var buf strings.Builder
		for ; sc.index < len(sc.data); sc.index++ {
			c := sc.data[sc.index]
			if c == '"' {
				sc.index++
				return key, buf.String()
			}
			if c == '\\' && sc.index+1 < len(sc.data) {
				sc.index++
				c = sc.data[sc.index]
			}
			_ = buf.WriteByte(c)
		}
		sc.index = len(sc.data)
		sc.fail(errors.Errorf("missing closing \" in a VCF meta-information line: %v", sc.data))
		return key, buf.String()
	}
	start = sc.index
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == ',') || (c == '>') {
			return key, sc.data[start:sc.index]
		}
	}
	sc.fail(errors.Errorf("missing closing > in a VCF meta-information line: %v", sc.data))
	return key, sc.data[start:]
}

// parseFields parses the <key=value,...> part of a structured
// meta-information line, and calls field for each pair.
func (sc *StringScanner) parseFields(field func(key, value string)) {
	if sc.peek() != '<' {
		sc.fail(errors.Errorf("missing open angle bracket in a VCF meta-information line: %v", sc.data))
		return
	}
	sc.index++
	for sc.err == nil {
		field(sc.ParseMetaField())
		sc.SkipSpace()
		switch sc.peek() {
		case ',':
			sc.index++
		case '>':
			sc.index++
			return
		default:
			sc.fail(errors.Errorf("invalid syntax in a VCF meta-information line: %v", sc.data))
		}
	}
}

// ParseMetaInformation parses VCF meta information. Unstructured
// lines are returned as plain strings.
func (sc *StringScanner) ParseMetaInformation() interface{} {
	if sc.err != nil {
		return nil
	}
	if sc.peek() != '<' {
		start := sc.index
		sc.index = len(sc.data)
		return sc.data[start:]
	}
	meta := NewMetaInformation()
	sc.parseFields(func(key, value string) {
		switch key {
		case idKey:
			if meta.ID != nil {
				sc.fail(errors.Errorf("multiple IDs in a VCF meta-information line: %v", sc.data))
			}
			meta.ID = utils.Intern(value)
		case descriptionKey:
			if meta.Description != "" {
				sc.fail(errors.Errorf("multiple Descriptions in a VCF meta-information line: %v", sc.data))
			}
			meta.Description = value
		default:
			if !meta.Fields.SetUniqueEntry(key, value) {
				sc.fail(errors.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data))
			}
		}
	})
	if meta.ID == nil {
		sc.fail(errors.Errorf("missing ID in a VCF meta-information line: %v", sc.data))
	}
	return meta
}

func parseNumber(value string) (int32, error) {
	switch value {
	case "a", "A":
		return NumberA, nil
	case "r", "R":
		return NumberR, nil
	case "g", "G":
		return NumberG, nil
	case ".":
		return NumberDot, nil
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil || n < 0 {
		return InvalidNumber, errors.Errorf("invalid Number entry %v", value)
	}
	return int32(n), nil
}

var typeNames = map[string]Type{
	"Integer":   Integer,
	"Float":     Float,
	"Flag":      Flag,
	"Character": Character,
	"String":    String,
}

// ParseFormatInformation parses VCF INFO or FORMAT information
func (sc *StringScanner) ParseFormatInformation() *FormatInformation {
	if sc.err != nil {
		return nil
	}
	format := NewFormatInformation()
	sc.parseFields(func(key, value string) {
		switch key {
		case idKey:
			if format.ID != nil {
				sc.fail(errors.Errorf("multiple IDs in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			format.ID = utils.Intern(value)
		case descriptionKey:
			if format.Description != "" {
				sc.fail(errors.Errorf("multiple Descriptions in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			format.Description = value
		case numberKey:
			if format.Number > InvalidNumber {
				sc.fail(errors.Errorf("multiple Number entries in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			n, err := parseNumber(value)
			if err != nil {
				sc.fail(errors.Wrapf(err, "in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			format.Number = n
		case typeKey:
			if format.Type != InvalidType {
				sc.fail(errors.Errorf("multiple types in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			t, ok := typeNames[value]
			if !ok {
				sc.fail(errors.Errorf("unknown type in a VCF INFO/FORMAT meta-information line: %v", sc.data))
			}
			format.Type = t
		default:
			if !format.Fields.SetUniqueEntry(key, value) {
				sc.fail(errors.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data))
			}
		}
	})
	switch {
	case format.ID == nil:
		sc.fail(errors.Errorf("missing ID in a VCF INFO/FORMAT meta-information line: %v", sc.data))
	case format.Number <= InvalidNumber:
		sc.fail(errors.Errorf("missing number entry in a VCF INFO/FORMAT meta-information line: %v", sc.data))
	case format.Type == InvalidType:
		sc.fail(errors.Errorf("missing type in a VCF INFO/FORMAT meta-information line: %v", sc.data))
	}
	return format
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	switch {
	case err == nil:
		line = strings.TrimSuffix(line[:len(line)-1], "\r")
	case err == io.EOF && line != "":
		err = nil
	}
	return
}

// ParseHeader parses a VCF header, and leaves the reader positioned
// at the first data line.
func ParseHeader(reader *bufio.Reader) (hdr *Header, lines int, err error) {
	line, err := getLine(reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "while reading the first line of a VCF file")
	}
	lines++
	if !strings.HasPrefix(line, fileFormatVersionLinePrefix) {
		return nil, 0, errors.New("invalid first line in a VCF file")
	}
	hdr = NewHeader()
	hdr.FileFormat = line
	hdr.Columns = nil
	var sc StringScanner
	for {
		line, err = getLine(reader)
		if err != nil {
			return nil, 0, errors.Wrap(err, "unexpected end of VCF header")
		}
		lines++
		if !strings.HasPrefix(line, "##") {
			break
		}
		sc.Reset(line[2:])
		key, found := sc.readUntilByte('=')
		switch {
		case !found:
			return nil, 0, errors.Errorf("invalid syntax in a VCF header line: %v", line)
		case key == "fileformat":
			return nil, 0, errors.New("multiple file format meta-information lines in a VCF file")
		case key == "INFO":
			hdr.Infos = append(hdr.Infos, sc.ParseFormatInformation())
		case key == "FORMAT":
			hdr.Formats = append(hdr.Formats, sc.ParseFormatInformation())
		default:
			hdr.Meta[key] = append(hdr.Meta[key], sc.ParseMetaInformation())
		}
		if err := sc.Err(); err != nil {
			return nil, 0, err
		}
	}
	if !strings.HasPrefix(line, "#") {
		return nil, 0, errors.Errorf("missing column header line in a VCF file: %v", line)
	}
	hdr.Columns = strings.Split(line[1:], "\t")
	if len(hdr.Columns) < len(DefaultHeaderColumns) {
		return nil, 0, errors.Errorf("invalid column header line in a VCF file: %v", line)
	}
	for i, col := range DefaultHeaderColumns {
		if hdr.Columns[i] != col {
			return nil, 0, errors.Errorf("invalid column %v in a VCF column header line, expected %v", hdr.Columns[i], col)
		}
	}
	return hdr, lines, nil
}

// LookupInfo returns the INFO format information with the given ID, or nil.
func (header *Header) LookupInfo(id utils.Symbol) *FormatInformation {
	for _, info := range header.Infos {
		if info.ID == id {
			return info
		}
	}
	return nil
}

// LookupFormat returns the FORMAT format information with the given ID, or nil.
func (header *Header) LookupFormat(id utils.Symbol) *FormatInformation {
	for _, format := range header.Formats {
		if format.ID == id {
			return format
		}
	}
	return nil
}

func setFormatInformation(list []*FormatInformation, format *FormatInformation) []*FormatInformation {
	for i, f := range list {
		if f.ID == format.ID {
			list[i] = format
			return list
		}
	}
	return append(list, format)
}

// SetInfo adds the given INFO format information, replacing an
// existing entry with the same ID.
func (header *Header) SetInfo(info *FormatInformation) {
	header.Infos = setFormatInformation(header.Infos, info)
}

// SetFormat adds the given FORMAT format information, replacing an
// existing entry with the same ID.
func (header *Header) SetFormat(format *FormatInformation) {
	header.Formats = setFormatInformation(header.Formats, format)
}

// RemoveInfos removes the INFO format information with the given IDs.
func (header *Header) RemoveInfos(ids ...utils.Symbol) {
	infos := header.Infos[:0]
outer:
	for _, info := range header.Infos {
		for _, id := range ids {
			if info.ID == id {
				continue outer
			}
		}
		infos = append(infos, info)
	}
	header.Infos = infos
}

// RemoveMeta removes all meta-information lines whose key satisfies drop.
func (header *Header) RemoveMeta(drop func(key string) bool) {
	for key := range header.Meta {
		if drop(key) {
			delete(header.Meta, key)
		}
	}
}

// AddMeta appends a meta-information line, which is either a string
// or a *MetaInformation.
func (header *Header) AddMeta(key string, meta interface{}) {
	header.Meta[key] = append(header.Meta[key], meta)
}

// FormatString outputs a string to a VCF file, adding necessary double quotes and escapes
func FormatString(out io.ByteWriter, str string) error {
	_ = out.WriteByte('"')
	for i := 0; i < len(str); i++ {
		b := str[i]
		if b == '"' || b == '\\' {
			_ = out.WriteByte('\\')
		}
		_ = out.WriteByte(b)
	}
	return out.WriteByte('"')
}

func needsQuotes(s string) bool {
	return s == "" || strings.ContainsAny(s, "\" ,<>=")
}

func formatFields(out *bufio.Writer, fields utils.StringMap, quote func(key string) bool) {
	for _, key := range fields.SortedKeys() {
		value := fields[key]
		_ = out.WriteByte(',')
		_, _ = out.WriteString(key)
		_ = out.WriteByte('=')
		if quote(key) || needsQuotes(value) {
			_ = FormatString(out, value)
		} else {
			_, _ = out.WriteString(value)
		}
	}
}

func neverQuote(string) bool { return false }

// FormatMetaInformation outputs VCF meta information, which can be just a string or *MetaInformation
func FormatMetaInformation(out *bufio.Writer, meta interface{}) error {
	switch m := meta.(type) {
	case string:
		_, _ = out.WriteString(m)
		return out.WriteByte('\n')
	case *MetaInformation:
		_, _ = out.WriteString("<ID=")
		_, _ = out.WriteString(*m.ID)
		formatFields(out, m.Fields, neverQuote)
		if m.Description != "" {
			_, _ = out.WriteString(",Description=")
			_ = FormatString(out, m.Description)
		}
		_, err := out.WriteString(">\n")
		return err
	default:
		return errors.Errorf("invalid MetaInformation type %T", meta)
	}
}

// FormatFormatInformation outputs VCF info or format information
func FormatFormatInformation(out *bufio.Writer, format *FormatInformation, infoNotFormat bool) error {
	_, _ = out.WriteString("<ID=")
	_, _ = out.WriteString(*format.ID)
	_, _ = out.WriteString(",Number=")
	switch format.Number {
	case NumberA:
		_ = out.WriteByte('A')
	case NumberR:
		_ = out.WriteByte('R')
	case NumberG:
		_ = out.WriteByte('G')
	case NumberDot:
		_ = out.WriteByte('.')
	default:
		if format.Number < 0 {
			return errors.Errorf("unknown Number kind in a VCF meta-information line for %v", *format.ID)
		}
		_, _ = out.WriteString(strconv.FormatInt(int64(format.Number), 10))
	}
	_, _ = out.WriteString(",Type=")
	switch format.Type {
	case Integer:
		_, _ = out.WriteString("Integer")
	case Float:
		_, _ = out.WriteString("Float")
	case Flag:
		_, _ = out.WriteString("Flag")
	case Character:
		_, _ = out.WriteString("Character")
	case String:
		_, _ = out.WriteString("String")
	default:
		return errors.Errorf("invalid Type in a VCF meta-information line for %v", *format.ID)
	}
	formatFields(out, format.Fields, func(key string) bool {
		return infoNotFormat && (key == "Source" || key == "Version")
	})
	if format.Description != "" {
		_, _ = out.WriteString(",Description=")
		_ = FormatString(out, format.Description)
	}
	_, err := out.WriteString(">\n")
	return err
}

// Format outputs a VCF header. Meta-information lines are written
// in lexicographic key order.
func (header *Header) Format(out *bufio.Writer) error {
	_, _ = out.WriteString(header.FileFormat)
	_ = out.WriteByte('\n')
	for _, info := range header.Infos {
		_, _ = out.WriteString("##INFO=")
		if err := FormatFormatInformation(out, info, true); err != nil {
			return err
		}
	}
	for _, format := range header.Formats {
		_, _ = out.WriteString("##FORMAT=")
		if err := FormatFormatInformation(out, format, false); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(header.Meta))
	for key := range header.Meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, meta := range header.Meta[key] {
			_, _ = out.WriteString("##")
			_, _ = out.WriteString(key)
			_ = out.WriteByte('=')
			if err := FormatMetaInformation(out, meta); err != nil {
				return err
			}
		}
	}
	_ = out.WriteByte('#')
	_, _ = out.WriteString(strings.Join(header.Columns, "\t"))
	return out.WriteByte('\n')
}
