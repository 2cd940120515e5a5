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

// Package bgzf reads and writes BGZF compressed files in parallel.
//
// BGZF is a series of concatenated gzip members of at most 64KB each,
// so blocks can be inflated and deflated independently. Readers fall
// back to sequential gzip decompression for inputs that are gzip but
// not BGZF.
package bgzf

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/exascience/pargo/pipeline"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	fixedHeaderSize = 12
	footerSize      = 8

	// maxBlockSize is the maximum size of a BGZF block, compressed or not.
	maxBlockSize = 65536

	// maxBlockData bounds the payload of a written block so that its
	// compressed form always fits the 16-bit BSIZE field.
	maxBlockData = 0xff00
)

// eofBlock is the empty block that terminates every BGZF file.
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// IsGzip determines if the the given byte scanner produces
// a gzip file. It uses ReadByte and UnreadByte to check
// only the initial byte from the input.
func IsGzip(scanner io.ByteScanner) (bool, error) {
	b, err := scanner.ReadByte()
	if err != nil {
		return false, err
	}
	if err := scanner.UnreadByte(); err != nil {
		return false, err
	}
	return b == 0x1f, nil
}

type block struct {
	data []byte
	crc  uint32
	size uint32
}

var blockPool = sync.Pool{New: func() interface{} {
	return &block{data: make([]byte, 0, maxBlockSize)}
}}

func getBlock() *block {
	b := blockPool.Get().(*block)
	b.data = b.data[:0]
	return b
}

// bsize returns the total block size recorded in the BC subfield of
// a gzip extra field.
func bsize(extra []byte) (int, bool) {
	for i := 0; i+4 <= len(extra); {
		slen := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if extra[i] == 'B' && extra[i+1] == 'C' && slen == 2 && i+6 <= len(extra) {
			return int(binary.LittleEndian.Uint16(extra[i+4:i+6])) + 1, true
		}
		i += 4 + slen
	}
	return 0, false
}

// isBGZF peeks at the next gzip member header without consuming it.
func isBGZF(r *bufio.Reader) bool {
	hdr, err := r.Peek(fixedHeaderSize)
	if err != nil || hdr[0] != 0x1f || hdr[1] != 0x8b || hdr[3]&0x04 == 0 {
		return false
	}
	xlen := int(binary.LittleEndian.Uint16(hdr[10:12]))
	if hdr, err = r.Peek(fixedHeaderSize + xlen); err != nil {
		return false
	}
	_, ok := bsize(hdr[fixedHeaderSize:])
	return ok
}

func readBlock(r io.Reader) (*block, error) {
	var hdr [fixedHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "while reading BGZF block header")
	}
	if hdr[0] != 0x1f || hdr[1] != 0x8b || hdr[2] != 8 || hdr[3]&0x04 == 0 {
		return nil, errors.New("invalid BGZF block header")
	}
	extra := make([]byte, binary.LittleEndian.Uint16(hdr[10:12]))
	if _, err := io.ReadFull(r, extra); err != nil {
		return nil, errors.Wrap(err, "while reading BGZF extra field")
	}
	size, ok := bsize(extra)
	if !ok {
		return nil, errors.New("missing BC extra subfield in BGZF header")
	}
	n := size - fixedHeaderSize - len(extra) - footerSize
	if n < 0 {
		return nil, errors.Errorf("invalid BGZF block size %v", size)
	}
	b := getBlock()
	b.data = b.data[:n]
	if _, err := io.ReadFull(r, b.data); err != nil {
		return nil, errors.Wrap(err, "while reading BGZF block data")
	}
	var tail [footerSize]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return nil, errors.Wrap(err, "while reading BGZF block footer")
	}
	b.crc = binary.LittleEndian.Uint32(tail[0:4])
	b.size = binary.LittleEndian.Uint32(tail[4:8])
	if b.size > maxBlockSize {
		return nil, errors.Errorf("invalid uncompressed BGZF block size %v", b.size)
	}
	return b, nil
}

var inflaterPool sync.Pool

func inflate(compressed *block) (*block, error) {
	src := bytes.NewReader(compressed.data)
	var inflater io.ReadCloser
	if pooled := inflaterPool.Get(); pooled != nil {
		inflater = pooled.(io.ReadCloser)
		if err := inflater.(flate.Resetter).Reset(src, nil); err != nil {
			inflater = flate.NewReader(src)
		}
	} else {
		inflater = flate.NewReader(src)
	}
	defer inflaterPool.Put(inflater)
	b := getBlock()
	b.data = b.data[:compressed.size]
	if _, err := io.ReadFull(inflater, b.data); err != nil {
		return nil, errors.Wrap(err, "while inflating a BGZF block")
	}
	if crc32.ChecksumIEEE(b.data) != compressed.crc {
		return nil, errors.New("invalid CRC-32 value for a data block in a BGZF file")
	}
	blockPool.Put(compressed)
	return b, nil
}

// blockSource feeds compressed BGZF blocks into a pipeline.
type blockSource struct {
	r    *bufio.Reader
	ctx  context.Context
	err  error
	last uint32
	data interface{}
}

// Err implements the corresponding method of pipeline.Source
func (src *blockSource) Err() error {
	return src.err
}

// Prepare implements the corresponding method of pipeline.Source
func (src *blockSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the corresponding method of pipeline.Source
func (src *blockSource) Fetch(_ int) (fetched int) {
	src.data = nil
	if src.err != nil || src.ctx.Err() != nil {
		return 0
	}
	if _, err := src.r.Peek(1); err == io.EOF {
		if src.last != 0 {
			src.err = errors.New("invalid BGZF file: does not end in proper EOF marker")
		}
		return 0
	} else if err != nil {
		src.err = err
		return 0
	}
	b, err := readBlock(src.r)
	if err != nil {
		src.err = err
		return 0
	}
	src.last = b.size
	src.data = b
	return 1
}

// Data implements the corresponding method of pipeline.Source
func (src *blockSource) Data() interface{} {
	return src.data
}

// Reader inflates a BGZF file in parallel and delivers the blocks in
// file order.
type Reader struct {
	p       pipeline.Pipeline
	wait    sync.WaitGroup
	blocks  chan *block
	cancel  context.CancelFunc
	current *block
	offset  int
}

// NewReader returns a reader for the gzip data in r. BGZF input is
// inflated block-parallel by a *Reader, any other gzip input is
// handled by a sequential multistream gzip reader.
func NewReader(r *bufio.Reader) (io.ReadCloser, error) {
	if !isBGZF(r) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "in bgzf.NewReader")
		}
		return gz, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	reader := &Reader{
		blocks: make(chan *block, 1),
		cancel: cancel,
	}
	reader.p.Source(&blockSource{r: r, ctx: ctx})
	reader.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			b, err := inflate(data.(*block))
			if err != nil {
				reader.p.SetErr(err)
				return nil
			}
			return b
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			if b, ok := data.(*block); ok {
				select {
				case <-ctx.Done():
				case reader.blocks <- b:
				}
			}
			return nil
		})),
	)
	reader.wait.Add(1)
	go func() {
		defer reader.wait.Done()
		defer close(reader.blocks)
		reader.p.Run()
	}()
	return reader, nil
}

// Read implements the corresponding method of io.Reader
func (reader *Reader) Read(p []byte) (n int, err error) {
	for reader.current == nil || reader.offset == len(reader.current.data) {
		if reader.current != nil {
			blockPool.Put(reader.current)
			reader.current = nil
		}
		b, ok := <-reader.blocks
		if !ok {
			if err := reader.p.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		reader.current, reader.offset = b, 0
	}
	n = copy(p, reader.current.data[reader.offset:])
	reader.offset += n
	return n, nil
}

// Close implements the corresponding method of io.Closer
func (reader *Reader) Close() error {
	reader.cancel()
	for range reader.blocks {
	}
	reader.wait.Wait()
	return reader.p.Err()
}

// Writer deflates BGZF blocks in parallel.
type Writer struct {
	w      io.Writer
	p      pipeline.Pipeline
	wait   sync.WaitGroup
	buf    *block
	blocks chan *block
	done   chan struct{}
}

// bufferSource feeds filled write buffers into a pipeline.
type bufferSource struct {
	blocks <-chan *block
	data   interface{}
}

// Err implements the corresponding method of pipeline.Source
func (*bufferSource) Err() error {
	return nil
}

// Prepare implements the corresponding method of pipeline.Source
func (*bufferSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the corresponding method of pipeline.Source
func (src *bufferSource) Fetch(_ int) (fetched int) {
	if b, ok := <-src.blocks; ok {
		src.data = b
		return 1
	}
	src.data = nil
	return 0
}

// Data implements the corresponding method of pipeline.Source
func (src *bufferSource) Data() interface{} {
	return src.data
}

var deflaterPool sync.Pool

func deflate(b *block, level int) (*block, error) {
	out := getBlock()
	buf := bytes.NewBuffer(out.data)
	buf.Write([]byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
		0x42, 0x43, 0x02, 0x00, 0x00, 0x00,
	})
	var deflater *flate.Writer
	if pooled := deflaterPool.Get(); pooled != nil {
		deflater = pooled.(*flate.Writer)
		deflater.Reset(buf)
	} else {
		var err error
		if deflater, err = flate.NewWriter(buf, level); err != nil {
			return nil, errors.Wrap(err, "while creating a BGZF deflater")
		}
	}
	defer deflaterPool.Put(deflater)
	if _, err := deflater.Write(b.data); err != nil {
		return nil, errors.Wrap(err, "while deflating a BGZF block")
	}
	if err := deflater.Close(); err != nil {
		return nil, errors.Wrap(err, "while deflating a BGZF block")
	}
	var tail [footerSize]byte
	binary.LittleEndian.PutUint32(tail[0:4], crc32.ChecksumIEEE(b.data))
	binary.LittleEndian.PutUint32(tail[4:8], uint32(len(b.data)))
	buf.Write(tail[:])
	out.data = buf.Bytes()
	if len(out.data) > maxBlockSize {
		return nil, errors.Errorf("compressed BGZF block exceeds %v bytes", maxBlockSize)
	}
	binary.LittleEndian.PutUint16(out.data[16:18], uint16(len(out.data)-1))
	blockPool.Put(b)
	return out, nil
}

// NewWriter returns a Writer for the given io.Writer, using a flate
// compression level between flate.HuffmanOnly and flate.BestCompression.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	if _, err := flate.NewWriter(io.Discard, level); err != nil {
		return nil, errors.Wrap(err, "in bgzf.NewWriter")
	}
	writer := &Writer{
		w:      w,
		buf:    getBlock(),
		blocks: make(chan *block, 1),
		done:   make(chan struct{}),
	}
	writer.p.Source(&bufferSource{blocks: writer.blocks})
	writer.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			b, err := deflate(data.(*block), level)
			if err != nil {
				writer.p.SetErr(err)
				return nil
			}
			return b
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			if b, ok := data.(*block); ok {
				if _, err := w.Write(b.data); err != nil {
					writer.p.SetErr(errors.Wrap(err, "while writing a BGZF block"))
				}
				blockPool.Put(b)
			}
			return nil
		})),
	)
	writer.wait.Add(1)
	go func() {
		defer writer.wait.Done()
		defer close(writer.done)
		writer.p.Run()
	}()
	return writer, nil
}

func (writer *Writer) sendBlock() error {
	select {
	case writer.blocks <- writer.buf:
		writer.buf = getBlock()
		return nil
	case <-writer.done:
		if err := writer.p.Err(); err != nil {
			return err
		}
		return errors.New("BGZF writer pipeline terminated")
	}
}

// Write implements the corresponding method of io.Writer.
func (writer *Writer) Write(p []byte) (n int, err error) {
	n = len(p)
	for len(p) > 0 {
		room := maxBlockData - len(writer.buf.data)
		if len(p) < room {
			writer.buf.data = append(writer.buf.data, p...)
			break
		}
		writer.buf.data = append(writer.buf.data, p[:room]...)
		p = p[room:]
		if err = writer.sendBlock(); err != nil {
			return n - len(p), err
		}
	}
	return n, nil
}

// Close flushes pending data, waits for all blocks to be written,
// and terminates the file with the BGZF EOF marker. It does not close
// the underlying io.Writer.
func (writer *Writer) Close() error {
	if len(writer.buf.data) > 0 {
		if err := writer.sendBlock(); err != nil {
			close(writer.blocks)
			writer.wait.Wait()
			return err
		}
	}
	close(writer.blocks)
	writer.wait.Wait()
	if err := writer.p.Err(); err != nil {
		return err
	}
	_, err := writer.w.Write(eofBlock)
	return errors.Wrap(err, "while writing the BGZF EOF marker")
}
