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
	"io"
	"log"

	"github.com/exascience/pargo/pipeline"
	"github.com/pkg/errors"

	"github.com/exascience/reblock/internal"
	"github.com/exascience/reblock/vcf"
)

// Reblock reads the data lines of a single-sample GVCF file with the
// given header from input, and writes the reblocked file, including
// its header, to output.
//
// Records are parsed and regenotyped in parallel, merged into
// reference blocks in their original order, and formatted in
// parallel again.
func (r *Reblocker) Reblock(header *vcf.Header, input io.Reader, output *bufio.Writer, commandLine []string) error {
	if samples := header.Samples(); len(samples) != 1 {
		return errors.Errorf("reblocking requires a single-sample GVCF file, found %v samples", len(samples))
	}
	parser, err := header.NewVariantParser()
	if err != nil {
		return err
	}
	if err := r.OutputHeader(header, commandLine).Format(output); err != nil {
		return errors.Wrap(err, "while writing the VCF header")
	}

	writer := r.NewGVCFWriter()
	var lastBlock []*vcf.Variant

	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input))
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			lines := data.([]string)
			variants := make([]*vcf.Variant, 0, len(lines))
			for _, line := range lines {
				if line == "" {
					continue
				}
				original, err := parser.ParseVariant(line)
				if err != nil {
					p.SetErr(errors.Wrap(err, "while parsing a VCF record"))
					return variants
				}
				result, err := r.Regenotype(original)
				if err != nil {
					p.SetErr(errors.Wrap(err, "while reblocking a VCF record"))
					return variants
				}
				if result != nil {
					variants = append(variants, result)
				}
			}
			return variants
		})),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			var merged []*vcf.Variant
			for _, v := range data.([]*vcf.Variant) {
				var err error
				if merged, err = writer.Add(merged, v); err != nil {
					p.SetErr(errors.Wrap(err, "while merging reference blocks"))
					return merged
				}
			}
			return merged
		}, func() {
			lastBlock = writer.Flush(nil)
		})),
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			return formatVariants(&p, data.([]*vcf.Variant))
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			buf := data.([]byte)
			if _, err := output.Write(buf); err != nil {
				p.SetErr(errors.Wrap(err, "while writing VCF records"))
			}
			internal.ReleaseByteBuffer(buf)
			return nil
		})),
	)
	p.Run()
	if err := p.Err(); err != nil {
		return err
	}
	for _, v := range lastBlock {
		buf, err := v.Format(internal.ReserveByteBuffer())
		if err != nil {
			return err
		}
		if _, err = output.Write(buf); err != nil {
			return errors.Wrap(err, "while writing VCF records")
		}
		internal.ReleaseByteBuffer(buf)
	}
	return nil
}

func formatVariants(p *pipeline.Pipeline, variants []*vcf.Variant) []byte {
	buf := internal.ReserveByteBuffer()
	for _, v := range variants {
		var err error
		if buf, err = v.Format(buf); err != nil {
			p.SetErr(err)
			return buf
		}
	}
	return buf
}

// ReblockFile reblocks the GVCF file named input into the file named
// output, and logs the record counts.
func (r *Reblocker) ReblockFile(input, output string, commandLine []string) (err error) {
	in, err := vcf.Open(input)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); err == nil {
			err = cerr
		}
	}()
	header, _, err := vcf.ParseHeader(in.Reader)
	if err != nil {
		return errors.Wrapf(err, "while reading the header of %v", input)
	}
	out, err := vcf.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if err = r.Reblock(header, in.Reader, out.Writer, commandLine); err != nil {
		return errors.Wrapf(err, "while reblocking %v", input)
	}
	stats := r.Stats()
	log.Printf("Reblocked %v records: %v reference blocks, %v demoted, %v high quality variants, %v dropped.\n",
		stats.Input, stats.Blocks, stats.Demoted, stats.Cleaned, stats.Dropped)
	return nil
}
