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
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/exascience/reblock/utils"
	"github.com/exascience/reblock/utils/bgzf"
)

// The possible file extensions for VCF files, or gz-compressed VCF files
const (
	VcfExt = ".vcf"
	GzExt  = ".gz"
)

const bufferSize = 1 << 16

// InputFile represents a VCF file for input.
type InputFile struct {
	*bufio.Reader
	closers []io.Closer
}

// OutputFile represents a VCF file for output.
type OutputFile struct {
	*bufio.Writer
	closers []io.Closer
}

// Open a VCF file for input.
//
// Gzip and BGZF compressed input is detected from the first byte of
// the file, independent of the filename extension. If the name is
// "/dev/stdin" or "-", the input is read from os.Stdin.
func Open(name string) (*InputFile, error) {
	input := &InputFile{}
	file := os.Stdin
	if name != "/dev/stdin" && name != "-" {
		var err error
		if file, err = os.Open(name); err != nil {
			return nil, errors.Wrapf(err, "while opening VCF file %v", name)
		}
		input.closers = append(input.closers, file)
	}
	buf := bufio.NewReaderSize(file, bufferSize)
	r, closer, err := utils.HandleBGZF(buf)
	if err != nil {
		_ = input.Close()
		return nil, errors.Wrapf(err, "while opening VCF file %v", name)
	}
	if closer == nil {
		input.Reader = buf
		return input, nil
	}
	input.closers = append([]io.Closer{closer}, input.closers...)
	input.Reader = bufio.NewReaderSize(r, bufferSize)
	return input, nil
}

// Create a VCF file for output.
//
// If the filename extension is .gz, the output is BGZF compressed.
// If the name is "/dev/stdout" or "-", the output is written to
// os.Stdout uncompressed.
func Create(name string) (*OutputFile, error) {
	output := &OutputFile{}
	if name == "/dev/stdout" || name == "-" {
		output.Writer = bufio.NewWriterSize(os.Stdout, bufferSize)
		return output, nil
	}
	file, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "while creating VCF file %v", name)
	}
	output.closers = append(output.closers, file)
	if filepath.Ext(name) != GzExt {
		output.Writer = bufio.NewWriterSize(file, bufferSize)
		return output, nil
	}
	bgzfWriter, err := bgzf.NewWriter(file, flate.DefaultCompression)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "while creating VCF file %v", name)
	}
	output.closers = append([]io.Closer{bgzfWriter}, output.closers...)
	output.Writer = bufio.NewWriterSize(bgzfWriter, bufferSize)
	return output, nil
}

func closeAll(closers []io.Closer) (err error) {
	for _, closer := range closers {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Close the VCF input file.
func (input *InputFile) Close() error {
	return closeAll(input.closers)
}

// Close the VCF output file, flushing all buffered output first.
func (output *OutputFile) Close() error {
	err := output.Flush()
	if cerr := closeAll(output.closers); err == nil {
		err = cerr
	}
	return err
}
