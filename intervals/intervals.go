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

package intervals

import (
	"sort"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"

	"github.com/exascience/reblock/bed"
)

// Interval is a closed range of 1-based positions on a contig.
type Interval struct {
	Start, End int32
}

// SortByStart sorts a slice of Interval by Start position.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
}

type stableIntervalSorter []Interval

func (s stableIntervalSorter) SequentialSort(i, j int) {
	SortByStart(s[i:j])
}

func (s stableIntervalSorter) NewTemp() psort.StableSorter {
	return stableIntervalSorter(make([]Interval, len(s)))
}

func (s stableIntervalSorter) Len() int {
	return len(s)
}

func (s stableIntervalSorter) Less(i, j int) bool {
	return s[i].Start < s[j].Start
}

func (s stableIntervalSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableIntervalSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortByStart sorts a slice of Interval by Start position using
// a parallel stable sort.
func ParallelSortByStart(intervals []Interval) {
	psort.StableSort(stableIntervalSorter(intervals))
}

// Extend makes interval1 larger if interval2 overlaps or touches it,
// by storing max(interval1.End, interval2.End) in interval1.End.
// Returns true if interval1 was extended or already covers
// interval2. interval2.Start >= interval1.Start must hold.
func (interval1 *Interval) Extend(interval2 Interval) bool {
	if interval2.Start > interval1.End+1 {
		return false
	}
	if interval2.End > interval1.End {
		interval1.End = interval2.End
	}
	return true
}

// Flatten merges overlapping and adjacent intervals into larger
// intervals. intervals must be sorted by Start before calling
// Flatten. The result is sorted by Start, no two intervals in the
// result overlap, and it shares memory with the argument.
func Flatten(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return intervals
	}
	i := 0
	for _, interval := range intervals[1:] {
		if !intervals[i].Extend(interval) {
			i++
			intervals[i] = interval
		}
	}
	return intervals[:i+1]
}

const parallelFlattenGrainSize = 0x1000

// ParallelFlatten is Flatten using a parallel algorithm.
func ParallelFlatten(intervals []Interval) []Interval {
	if len(intervals) < parallelFlattenGrainSize {
		return Flatten(intervals)
	}
	half := len(intervals) >> 1
	left, right := intervals[:half], intervals[half:]
	parallel.Do(
		func() { left = ParallelFlatten(left) },
		func() { right = ParallelFlatten(right) },
	)
	for len(right) > 0 && left[len(left)-1].Extend(right[0]) {
		right = right[1:]
	}
	return append(left, right...)
}

// Overlap determines whether the closed range [start, end] overlaps
// with any of the given intervals, which must be flattened.
func Overlap(intervals []Interval, start, end int32) bool {
	for left, right := 0, len(intervals)-1; left <= right; {
		mid := (left + right) / 2
		if intervals[mid].Start > end {
			right = mid - 1
		} else if intervals[mid].End < start {
			left = mid + 1
		} else {
			return true
		}
	}
	return false
}

// FromBed returns the flattened intervals per contig that correspond
// to the BED regions, converted to 1-based closed ranges. Empty
// regions are skipped.
func FromBed(bed *bed.Bed) map[string][]Interval {
	intervals := make(map[string][]Interval, len(bed.RegionMap))
	for chrom, regions := range bed.RegionMap {
		ivals := make([]Interval, 0, len(regions))
		for _, region := range regions {
			if region.End > region.Start {
				ivals = append(ivals, Interval{Start: region.Start + 1, End: region.End})
			}
		}
		ParallelSortByStart(ivals)
		intervals[*chrom] = ParallelFlatten(ivals)
	}
	return intervals
}

// FromBedFile returns the intervals that correspond to the entries
// of the BED file.
func FromBedFile(filename string) (map[string][]Interval, error) {
	bed, err := bed.ParseBed(filename)
	if err != nil {
		return nil, err
	}
	return FromBed(bed), nil
}
