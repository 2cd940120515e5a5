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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/vcf"
)

// CommandLineKey is the meta-information key recording the reblock run.
const CommandLineKey = "reblockCommandLine"

var obsoleteInfos = []utils.Symbol{
	utils.Intern("DS"),
	utils.Intern("HaplotypeScore"),
	utils.Intern("InbreedingCoeff"),
	utils.Intern("MLEAC"),
	utils.Intern("MLEAF"),
}

var (
	endInfo        = headerLine("END", 1, vcf.Integer, "Stop position of the interval")
	qualApproxInfo = headerLine("QUALapprox", 1, vcf.Integer, "Sum of PL[0] values; used to approximate the QUAL score")
	varDPInfo      = headerLine("VarDP", 1, vcf.Integer, "Depth over variant genotypes, or the site depth if no variant genotypes exist")
	mqDPInfo       = headerLine("MQ_DP", 1, vcf.Integer, "Depth over variant samples for better MQ calculation")
	minDPFormat    = headerLine("MIN_DP", 1, vcf.Integer, "Minimum DP observed within the GVCF block")
)

// OutputHeader returns the header of the reblocked output for the
// given input header. commandLine is recorded in the header, and the
// input header is not modified.
func (r *Reblocker) OutputHeader(input *vcf.Header, commandLine []string) *vcf.Header {
	header := &vcf.Header{
		FileFormat: input.FileFormat,
		Infos:      append([]*vcf.FormatInformation(nil), input.Infos...),
		Formats:    append([]*vcf.FormatInformation(nil), input.Formats...),
		Meta:       make(map[string][]interface{}, len(input.Meta)),
		Columns:    append([]string(nil), input.Columns...),
	}
	for key, meta := range input.Meta {
		header.Meta[key] = append([]interface{}(nil), meta...)
	}
	header.RemoveMeta(func(key string) bool {
		return strings.HasPrefix(key, GVCFBlockKey)
	})
	header.RemoveInfos(obsoleteInfos...)

	for _, annotation := range r.annotations {
		for _, info := range annotation.Infos {
			header.SetInfo(info)
		}
	}
	header.SetInfo(coverage.Infos[0])
	header.SetInfo(qualApproxInfo)
	header.SetInfo(varDPInfo)
	header.SetInfo(mqDPInfo)
	header.SetInfo(endInfo)
	header.SetFormat(minDPFormat)

	keys, values := r.writer.BlockHeaderLines()
	for i, key := range keys {
		header.AddMeta(key, values[i])
	}

	run := vcf.NewMetaInformation()
	run.ID = utils.Intern("ReblockGVCF")
	run.Fields["CommandLine"] = strings.Join(commandLine, " ")
	run.Fields["Version"] = utils.ProgramVersion
	run.Fields["Date"] = time.Now().Format(time.RFC1123)
	run.Fields["RunID"] = uuid.New().String()
	header.AddMeta(CommandLineKey, run)
	return header
}
