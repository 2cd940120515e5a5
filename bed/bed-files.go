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
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
)

// ParseBed parses a BED file, which may be gzip or BGZF compressed.
// The regions of each chromosome are sorted by start position.
func ParseBed(filename string) (bed *Bed, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening BED file %v", filename)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	r, closer, err := utils.HandleBGZF(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Wrapf(err, "while opening BED file %v", filename)
	}
	if closer != nil {
		defer func() {
			if cerr := closer.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
	}
	if bed, err = Parse(r); err != nil {
		return nil, errors.Wrapf(err, "while parsing BED file %v", filename)
	}
	return bed, nil
}

// Parse parses the regions of a BED file from r.
func Parse(r io.Reader) (*Bed, error) {
	bed := NewBed()
	scanner := bufio.NewScanner(r)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" ||
			strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") ||
			strings.HasPrefix(line, "browser") {
			continue
		}
		data := strings.Split(line, "\t")
		if len(data) < 3 {
			return nil, errors.Errorf("line %v: expected at least 3 columns, found %v", lineNumber, len(data))
		}
		start, err := strconv.ParseInt(data[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %v: invalid start", lineNumber)
		}
		end, err := strconv.ParseInt(data[2], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %v: invalid end", lineNumber)
		}
		region, err := NewRegion(utils.Intern(data[0]), int32(start), int32(end), data[3:])
		if err != nil {
			return nil, errors.Wrapf(err, "line %v", lineNumber)
		}
		bed.AddRegion(region)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	bed.sortRegions()
	return bed, nil
}
