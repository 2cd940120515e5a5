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
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/reblock/intervals"
	"github.com/exascience/reblock/vcf"
)

const gvcfBody = `chr1 1 . A <NON_REF> . . END=10 GT:DP:GQ:MIN_DP:PL 0/0:20:40:18:0,40,400
chr1 11 . A <NON_REF> . . END=20 GT:DP:GQ:MIN_DP:PL 0/0:22:45:20:0,45,450
chr1 21 . C T,<NON_REF> 5 . DP=10 GT:AD:DP:GQ:PL 0/1:8,2,0:10:10:10,0,200,40,210,250
chr1 22 . G A,<NON_REF> 500 . DP=30;ExcessHet=3.0 GT:AD:DP:GQ:PL 0/1:15,15,0:30:99:500,0,500,545,590,1135
chr1 23 . T <NON_REF> . . END=30 GT:DP:GQ:MIN_DP:PL 0/0:25:50:24:0,50,500
`

func gvcfInput() string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(gvcfBody), "\n") {
		lines = append(lines, record(line))
	}
	return strings.Join(lines, "\n") + "\n"
}

func runReblock(t *testing.T, r *Reblocker) []*vcf.Variant {
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	require.NoError(t, r.Reblock(testHeader(t), strings.NewReader(gvcfInput()), out, []string{"reblock"}))
	require.NoError(t, out.Flush())

	reader := bufio.NewReader(&buf)
	header, _, err := vcf.ParseHeader(reader)
	require.NoError(t, err)
	parser, err := header.NewVariantParser()
	require.NoError(t, err)
	var variants []*vcf.Variant
	for {
		line, err := reader.ReadString('\n')
		if line == "" {
			break
		}
		v, perr := parser.ParseVariant(strings.TrimSuffix(line, "\n"))
		require.NoError(t, perr)
		variants = append(variants, v)
		if err != nil {
			break
		}
	}
	return variants
}

func TestReblock(t *testing.T) {
	config := DefaultConfig()
	config.RGQThreshold = 20
	r := newTestReblocker(t, config, nil)
	variants := runReblock(t, r)
	require.Len(t, variants, 4)

	block := variants[0]
	end, _ := block.End()
	assert.Equal(t, [2]int32{1, 20}, [2]int32{block.Pos, end})
	assert.Equal(t, 21, genotypeInt(t, block, "DP"))
	assert.Equal(t, 18, genotypeInt(t, block, "MIN_DP"))
	assert.Equal(t, 40, genotypeInt(t, block, "GQ"))

	demoted := variants[1]
	end, _ = demoted.End()
	assert.Equal(t, [2]int32{21, 21}, [2]int32{demoted.Pos, end})
	assert.Equal(t, []string{NonRef}, demoted.Alt)
	assert.Equal(t, 0, genotypeInt(t, demoted, "GQ"))
	assert.Equal(t, 10, genotypeInt(t, demoted, "DP"))

	variant := variants[2]
	assert.Equal(t, int32(22), variant.Pos)
	assert.Equal(t, []string{"A", NonRef}, variant.Alt)
	assert.InDelta(t, 467.0, variant.Qual, 0.011)
	assert.Equal(t, []string{"DP", "MQ_DP"}, infoKeys(variant))
	assert.Equal(t, []int32{0, 1}, variant.GenotypeData[0].GT)

	last := variants[3]
	end, _ = last.End()
	assert.Equal(t, [2]int32{23, 30}, [2]int32{last.Pos, end})

	assert.Equal(t, Stats{Input: 5, Blocks: 3, Demoted: 1, Cleaned: 1}, r.Stats())
}

func TestReblockTargets(t *testing.T) {
	config := DefaultConfig()
	config.RGQThreshold = 20
	config.Targets = map[string][]intervals.Interval{"chr1": {{Start: 15, End: 21}}}
	r := newTestReblocker(t, config, nil)
	variants := runReblock(t, r)
	require.Len(t, variants, 2)
	assert.Equal(t, int32(11), variants[0].Pos)
	assert.Equal(t, int32(21), variants[1].Pos)
	assert.Equal(t, Stats{Input: 5, Dropped: 3, Blocks: 1, Demoted: 1}, r.Stats())
}

func TestReblockErrors(t *testing.T) {
	r := newTestReblocker(t, DefaultConfig(), nil)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	err := r.Reblock(testHeader(t), strings.NewReader(record("chr1 1 . A <NON_REF> . . END=x GT:PL 0/0:0,1,2")+"\n"), out, nil)
	assert.Error(t, err)

	header := testHeader(t)
	header.Columns = header.Columns[:len(vcf.DefaultHeaderColumns)]
	err = r.Reblock(header, strings.NewReader(""), out, nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil)
	assert.Error(t, err)
	config := DefaultConfig()
	config.RGQThreshold = -1
	_, err = New(config, NewPLGenotyper(), nil)
	assert.Error(t, err)
	config = DefaultConfig()
	config.GQBands = []int{50, 20}
	_, err = New(config, NewPLGenotyper(), nil)
	assert.Error(t, err)
}
