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

package utils

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils/bgzf"
)

// HandleBGZF checks if the given reader produces a gzip file
// by looking at the initial byte. It then either returns
// a bgzf.Reader, or returns the given reader unchanged.
// HandleBGZF uses ReadByte und UnreadByte.
//
// The returned io.Closer is nil if the input is not compressed.
func HandleBGZF(buf *bufio.Reader) (io.Reader, io.Closer, error) {
	ok, err := bgzf.IsGzip(buf)
	if err == io.EOF {
		return buf, nil, nil
	} else if err != nil {
		return nil, nil, errors.Wrap(err, "while checking for BGZF input")
	}
	if !ok {
		return buf, nil, nil
	}
	r, err := bgzf.NewReader(buf)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}
