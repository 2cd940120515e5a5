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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/reblock/vcf"
)

func TestNewGVCFWriterBands(t *testing.T) {
	for _, bands := range [][]int{nil, {0}, {101}, {20, 20}, {30, 20}, {-5, 20}} {
		_, err := NewGVCFWriter(bands)
		assert.Error(t, err, "%v", bands)
	}
	writer, err := NewGVCFWriter([]int{20, 100})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 20, 100}, writer.bounds)
	writer, err = NewGVCFWriter([]int{10, 50})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 50, 100}, writer.bounds)
	keys, values := writer.BlockHeaderLines()
	assert.Equal(t, []string{"GVCFBlock0-10", "GVCFBlock10-50", "GVCFBlock50-100"}, keys)
	assert.Equal(t, "minGQ=10(inclusive),maxGQ=50(exclusive)", values[1])
}

func TestReblockerNewGVCFWriter(t *testing.T) {
	config := DefaultConfig()
	config.GQBands = []int{10, 50}
	r := newTestReblocker(t, config, nil)
	fresh, err := NewGVCFWriter(config.GQBands)
	require.NoError(t, err)

	writer := r.NewGVCFWriter()
	assert.Equal(t, fresh, writer)
	_, err = writer.Add(nil, parseRecord(t, "chr1 100 . A <NON_REF> . . END=110 GT:DP:GQ:MIN_DP:PL 0/0:20:30:20:0,30,300"))
	require.NoError(t, err)
	assert.NotEqual(t, fresh, writer)
	assert.Equal(t, fresh, r.NewGVCFWriter(), "each writer starts without an open block")
}

func TestFindGQBand(t *testing.T) {
	writer, err := NewGVCFWriter([]int{20, 100})
	require.NoError(t, err)
	tests := []struct{ gq, min, max int }{
		{-5, 0, 20},
		{0, 0, 20},
		{19, 0, 20},
		{20, 20, 100},
		{99, 20, 100},
		{150, 20, 100},
	}
	for _, test := range tests {
		min, max := writer.findGQBand(test.gq)
		assert.Equal(t, [2]int{test.min, test.max}, [2]int{min, max}, "GQ %v", test.gq)
	}
}

func addAll(t *testing.T, writer *GVCFWriter, lines ...string) (result []*vcf.Variant) {
	for _, line := range lines {
		var err error
		result, err = writer.Add(result, parseRecord(t, line))
		require.NoError(t, err)
	}
	return writer.Flush(result)
}

func formatAll(t *testing.T, variants []*vcf.Variant) (lines []string) {
	for _, v := range variants {
		out, err := v.Format(nil)
		require.NoError(t, err)
		lines = append(lines, string(out[:len(out)-1]))
	}
	return
}

func TestGVCFWriterMerge(t *testing.T) {
	writer, err := NewGVCFWriter([]int{20, 100})
	require.NoError(t, err)
	result := addAll(t, writer,
		"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:PL 0/0:10:25:0,25,300",
		"chr1 103 . C <NON_REF> . . . GT:DP:GQ:PL 0/0:20:30:0,30,200",
		"chr1 104 . G <NON_REF> . . END=110 GT:DP:GQ:MIN_DP:PL 0/0:30:40:5:0,40,100",
		"chr1 111 . T G,<NON_REF> 500 . DP=30 GT:AD:DP:GQ:PL 0/1:15,15,0:30:99:500,0,500,545,590,1135",
		"chr1 112 . A <NON_REF> . . END=120 GT:DP:GQ:PL 0/0:8:5:0,5,50",
	)
	assert.Equal(t, []string{
		record("chr1 100 . A <NON_REF> . . END=110 GT:DP:GQ:MIN_DP:PL 0/0:20:25:5:0,25,100"),
		record("chr1 111 . T G,<NON_REF> 500 . DP=30 GT:AD:DP:GQ:PL 0/1:15,15,0:30:99:500,0,500,545,590,1135"),
		record("chr1 112 . A <NON_REF> . . END=120 GT:DP:GQ:MIN_DP:PL 0/0:8:5:8:0,5,50"),
	}, formatAll(t, result))
}

func TestGVCFWriterBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			"band change",
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:PL 0/0:10:10:0,10,100",
				"chr1 103 . A <NON_REF> . . END=105 GT:DP:GQ:PL 0/0:10:50:0,50,500",
			},
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:MIN_DP:PL 0/0:10:10:10:0,10,100",
				"chr1 103 . A <NON_REF> . . END=105 GT:DP:GQ:MIN_DP:PL 0/0:10:50:10:0,50,500",
			},
		},
		{
			"gap",
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:PL 0/0:10:50:0,50,500",
				"chr1 104 . A <NON_REF> . . END=105 GT:DP:GQ:PL 0/0:10:50:0,50,500",
			},
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:MIN_DP:PL 0/0:10:50:10:0,50,500",
				"chr1 104 . A <NON_REF> . . END=105 GT:DP:GQ:MIN_DP:PL 0/0:10:50:10:0,50,500",
			},
		},
		{
			"contig change",
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:PL 0/0:10:50:0,50,500",
				"chr2 103 . A <NON_REF> . . END=105 GT:DP:GQ:PL 0/0:10:50:0,50,500",
			},
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ:MIN_DP:PL 0/0:10:50:10:0,50,500",
				"chr2 103 . A <NON_REF> . . END=105 GT:DP:GQ:MIN_DP:PL 0/0:10:50:10:0,50,500",
			},
		},
		{
			"even median and missing GQ",
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:PL 0/0:10:0,60,500",
				"chr1 103 . A <NON_REF> . . END=105 GT:DP:PL 0/0:21:0,50,400",
			},
			[]string{
				"chr1 100 . A <NON_REF> . . END=105 GT:DP:GQ:MIN_DP:PL 0/0:16:50:10:0,50,400",
			},
		},
		{
			"covered by deletion",
			[]string{
				"chr1 200 . ATTT A,<NON_REF> 300 . DP=20 GT:AD:DP:GQ:PL 0/1:10,10,0:20:99:300,0,300,330,330,660",
				"chr1 201 . T <NON_REF> . . END=203 GT:DP:GQ:PL 0/0:10:50:0,50,500",
				"chr1 204 . A <NON_REF> . . END=205 GT:DP:GQ:PL 0/0:12:50:0,50,500",
			},
			[]string{
				"chr1 200 . ATTT A,<NON_REF> 300 . DP=20 GT:AD:DP:GQ:PL 0/1:10,10,0:20:99:300,0,300,330,330,660",
				"chr1 204 . A <NON_REF> . . END=205 GT:DP:GQ:MIN_DP:PL 0/0:12:50:12:0,50,500",
			},
		},
		{
			"not mergeable",
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ 0/0:10:50",
				"chr1 103 . A <NON_REF> . . END=105 GT:DP:GQ:PL ./.:10:50:0,50,500",
			},
			[]string{
				"chr1 100 . A <NON_REF> . . END=102 GT:DP:GQ 0/0:10:50",
				"chr1 103 . A <NON_REF> . . END=105 GT:DP:GQ:PL ./.:10:50:0,50,500",
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			writer, err := NewGVCFWriter([]int{20, 100})
			require.NoError(t, err)
			var want []string
			for _, line := range test.want {
				want = append(want, record(line))
			}
			assert.Equal(t, want, formatAll(t, addAll(t, writer, test.lines...)))
		})
	}
}
