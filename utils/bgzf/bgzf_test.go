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

package bgzf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData() []byte {
	var buf bytes.Buffer
	for i := 0; i < 20000; i++ {
		fmt.Fprintf(&buf, "chr1\t%v\t.\tA\t<NON_REF>\t.\t.\tEND=%v\tGT:DP:GQ:PL\t0/0:%v:30:0,30,300\n", 10*i+1, 10*i+10, i%50)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	data := testData()
	require.Greater(t, len(data), 4*maxBlockData)

	var compressed bytes.Buffer
	writer, err := NewWriter(&compressed, flate.DefaultCompression)
	require.NoError(t, err)
	n, err := writer.Write(data[:1000])
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	n, err = writer.Write(data[1000:])
	require.NoError(t, err)
	assert.Equal(t, len(data)-1000, n)
	require.NoError(t, writer.Close())
	assert.True(t, bytes.HasSuffix(compressed.Bytes(), eofBlock))

	buf := bufio.NewReader(bytes.NewReader(compressed.Bytes()))
	ok, err := IsGzip(buf)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, isBGZF(buf))

	reader, err := NewReader(buf)
	require.NoError(t, err)
	result, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, data, result)
}

func TestEmpty(t *testing.T) {
	var compressed bytes.Buffer
	writer, err := NewWriter(&compressed, flate.BestSpeed)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Equal(t, eofBlock, compressed.Bytes())

	reader, err := NewReader(bufio.NewReader(&compressed))
	require.NoError(t, err)
	result, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestPlainGzip(t *testing.T) {
	data := testData()
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	buf := bufio.NewReader(&compressed)
	assert.False(t, isBGZF(buf))
	reader, err := NewReader(buf)
	require.NoError(t, err)
	result, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, data, result)
}

func TestNotGzip(t *testing.T) {
	ok, err := IsGzip(bufio.NewReader(bytes.NewReader([]byte("##fileformat=VCFv4.2\n"))))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewWriter(io.Discard, 42)
	assert.Error(t, err)
}
