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

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

func TestOutputHeader(t *testing.T) {
	input := testHeader(t)
	config := DefaultConfig()
	config.GQBands = []int{10, 20, 60}
	r := newTestReblocker(t, config, nil)
	header := r.OutputHeader(input, []string{"reblock", "gvcf", "in.g.vcf", "out.g.vcf"})

	assert.NotNil(t, input.LookupInfo(utils.Intern("MLEAC")), "input header unchanged")
	assert.Contains(t, input.Meta, "GVCFBlock0-20")

	assert.Nil(t, header.LookupInfo(utils.Intern("MLEAC")))
	for _, id := range []string{"DP", "END", "QUALapprox", "VarDP", "MQ_DP", "RAW_MQandDP", "RAW_MQ", "ReadPosRankSum", "MQRankSum", "ExcessHet"} {
		assert.NotNil(t, header.LookupInfo(utils.Intern(id)), id)
	}
	assert.NotNil(t, header.LookupFormat(vcf.MinDP))
	assert.NotContains(t, header.Meta, "GVCFBlock0-20")
	for _, key := range []string{"GVCFBlock0-10", "GVCFBlock10-20", "GVCFBlock20-60", "GVCFBlock60-100"} {
		assert.Contains(t, header.Meta, key)
	}

	require.Len(t, header.Meta[CommandLineKey], 1)
	run := header.Meta[CommandLineKey][0].(*vcf.MetaInformation)
	assert.Equal(t, "reblock gvcf in.g.vcf out.g.vcf", run.Fields["CommandLine"])
	assert.Len(t, run.Fields["RunID"], 36)
	assert.Equal(t, utils.ProgramVersion, run.Fields["Version"])

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	require.NoError(t, header.Format(out))
	require.NoError(t, out.Flush())
	text := buf.String()
	assert.Contains(t, text, "\n##GVCFBlock20-60=minGQ=20(inclusive),maxGQ=60(exclusive)\n")
	assert.Contains(t, text, `##reblockCommandLine=<ID=ReblockGVCF,CommandLine="reblock gvcf in.g.vcf out.g.vcf",`)

	reparsed, _, err := vcf.ParseHeader(bufio.NewReader(strings.NewReader(text)))
	require.NoError(t, err)
	assert.Equal(t, header.Columns, reparsed.Columns)
	assert.Len(t, reparsed.Infos, len(header.Infos))
}
