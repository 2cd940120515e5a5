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
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/exascience/reblock/intervals"
	"github.com/exascience/reblock/vcf"
)

// Config holds the reblocking options.
type Config struct {
	// IncludeNonVariants keeps records that are not properly polymorphic.
	IncludeNonVariants bool
	// DropLowQuals removes low quality records and uncalled alternate
	// alleles instead of demoting them.
	DropLowQuals bool
	// RGQThreshold is the reference confidence below which called
	// variants are demoted to GQ0 reference records.
	RGQThreshold float64
	// DoQualApprox adds QUALapprox and VarDP to high quality variants.
	DoQualApprox bool
	// GQBands are the exclusive upper bounds of the reference block GQ bands.
	GQBands []int
	// Targets restricts the output to records overlapping the given
	// flattened intervals per contig, unless it is nil.
	Targets map[string][]intervals.Interval
}

// DefaultConfig returns the default reblocking options.
func DefaultConfig() Config {
	return Config{
		IncludeNonVariants: true,
		GQBands:            []int{20, 100},
	}
}

// Stats counts the records that went through a Reblocker.
type Stats struct {
	Input, Dropped, Blocks, Demoted, Cleaned int64
}

// A Reblocker rewrites the records of a single-sample GVCF file so that
// they can be merged into reference blocks. It is safe to call
// Regenotype concurrently.
type Reblocker struct {
	config      Config
	genotyper   Genotyper
	annotations []*InfoAnnotation
	writer      *GVCFWriter
	stats       Stats
}

// New returns a Reblocker, or an error if the configuration is invalid.
func New(config Config, genotyper Genotyper, annotations []*InfoAnnotation) (*Reblocker, error) {
	if genotyper == nil {
		return nil, errors.New("missing genotyper")
	}
	if config.RGQThreshold < 0 {
		return nil, errors.Errorf("invalid RGQ threshold %v, must not be negative", config.RGQThreshold)
	}
	writer, err := NewGVCFWriter(config.GQBands)
	if err != nil {
		return nil, errors.Wrap(err, "invalid GQ bands")
	}
	config.GQBands = append([]int(nil), config.GQBands...)
	return &Reblocker{
		config:      config,
		genotyper:   genotyper,
		annotations: annotations,
		writer:      writer,
	}, nil
}

// NewGVCFWriter returns a fresh block-merging writer for the
// reblocker's GQ bands.
func (r *Reblocker) NewGVCFWriter() *GVCFWriter {
	return newGVCFWriter(r.writer.bounds)
}

func (r *Reblocker) onTarget(v *vcf.Variant) (bool, error) {
	if r.config.Targets == nil {
		return true, nil
	}
	end, err := v.End()
	if err != nil {
		return false, err
	}
	return intervals.Overlap(r.config.Targets[v.Chrom], v.Pos, end), nil
}

// Regenotype returns the reblocked version of a record, or nil if the
// record is dropped.
func (r *Reblocker) Regenotype(original *vcf.Variant) (*vcf.Variant, error) {
	atomic.AddInt64(&r.stats.Input, 1)
	if ok, err := r.onTarget(original); err != nil {
		return nil, err
	} else if !ok {
		atomic.AddInt64(&r.stats.Dropped, 1)
		return nil, nil
	}
	disposition, result, err := r.Classify(original)
	if err != nil {
		return nil, err
	}
	switch disposition {
	case HomRefBlock:
		result = filterHomRefBlock(result, r.config.DropLowQuals, r.config.RGQThreshold)
		if result != nil {
			atomic.AddInt64(&r.stats.Blocks, 1)
		}
	case Demote:
		if result, err = lowQualVariantToGQ0HomRef(result, original, r.config.DropLowQuals); err != nil {
			return nil, err
		}
		if result != nil {
			atomic.AddInt64(&r.stats.Demoted, 1)
		}
	case Cleanup:
		if result, err = r.cleanUpHighQualityVariant(result, original); err != nil {
			return nil, err
		}
		if result != nil {
			atomic.AddInt64(&r.stats.Cleaned, 1)
		}
	default:
		result = nil
	}
	if result == nil {
		atomic.AddInt64(&r.stats.Dropped, 1)
	}
	return result, nil
}

// Stats returns a snapshot of the record counts.
func (r *Reblocker) Stats() Stats {
	return Stats{
		Input:   atomic.LoadInt64(&r.stats.Input),
		Dropped: atomic.LoadInt64(&r.stats.Dropped),
		Blocks:  atomic.LoadInt64(&r.stats.Blocks),
		Demoted: atomic.LoadInt64(&r.stats.Demoted),
		Cleaned: atomic.LoadInt64(&r.stats.Cleaned),
	}
}
