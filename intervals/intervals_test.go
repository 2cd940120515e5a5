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
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/reblock/bed"
)

func makeLargeIntervalsSlice() (result []Interval) {
	result = make([]Interval, 0x30000)
	result[0].Start = 1
	result[0].End = 3
	for i := 1; i < len(result); i++ {
		if rand.Intn(100) < 20 {
			result[i].Start = result[i-1].End - 1
		} else {
			result[i].Start = result[i-1].End + 2
		}
		result[i].End = result[i].Start + 3
	}
	return result
}

var flattenTests = []struct {
	name     string
	in, want []Interval
}{
	{"overlapping", []Interval{{2, 3}, {3, 4}}, []Interval{{2, 4}}},
	{"adjacent", []Interval{{2, 3}, {4, 5}}, []Interval{{2, 5}}},
	{"separate", []Interval{{2, 3}, {5, 6}}, []Interval{{2, 3}, {5, 6}}},
	{"chain", []Interval{{2, 4}, {3, 5}, {4, 6}, {8, 9}}, []Interval{{2, 6}, {8, 9}}},
	{"same start", []Interval{{2, 3}, {2, 5}, {2, 4}, {2, 3}, {2, 6}, {2, 7}}, []Interval{{2, 7}}},
	{"contained", []Interval{{1, 10}, {2, 3}, {12, 13}}, []Interval{{1, 10}, {12, 13}}},
}

func checkFlat(t *testing.T, intervals []Interval) {
	for i := range intervals {
		require.LessOrEqual(t, intervals[i].Start, intervals[i].End)
		if i > 0 {
			require.Greater(t, intervals[i].Start, intervals[i-1].End+1)
		}
	}
}

func TestFlatten(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	for _, test := range flattenTests {
		t.Run(test.name, func(t *testing.T) {
			in := append([]Interval(nil), test.in...)
			assert.Equal(t, test.want, Flatten(in))
		})
	}
	checkFlat(t, Flatten(makeLargeIntervalsSlice()))
}

func TestParallelFlatten(t *testing.T) {
	assert.Empty(t, ParallelFlatten(nil))
	for _, test := range flattenTests {
		t.Run(test.name, func(t *testing.T) {
			in := append([]Interval(nil), test.in...)
			assert.Equal(t, test.want, ParallelFlatten(in))
		})
	}
	large := makeLargeIntervalsSlice()
	expected := Flatten(append([]Interval(nil), large...))
	assert.Equal(t, expected, ParallelFlatten(large))
}

func TestParallelSortByStart(t *testing.T) {
	intervals := makeLargeIntervalsSlice()
	rand.Shuffle(len(intervals), func(i, j int) {
		intervals[i], intervals[j] = intervals[j], intervals[i]
	})
	ParallelSortByStart(intervals)
	for i := 1; i < len(intervals); i++ {
		require.LessOrEqual(t, intervals[i-1].Start, intervals[i].Start)
	}
}

func BenchmarkFlatten(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		intervals := makeLargeIntervalsSlice()
		b.StartTimer()
		_ = Flatten(intervals)
	}
}

func BenchmarkParallelFlatten(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		intervals := makeLargeIntervalsSlice()
		b.StartTimer()
		_ = ParallelFlatten(intervals)
	}
}

func TestOverlap(t *testing.T) {
	intervals := []Interval{{2, 4}, {6, 8}}
	assert.False(t, Overlap(nil, 2, 3))
	assert.False(t, Overlap([]Interval{{1, 3}, {7, 8}}, 4, 6))
	assert.False(t, Overlap(intervals, 5, 5))
	assert.False(t, Overlap(intervals, 9, 12))
	for _, r := range [][2]int32{{1, 2}, {2, 3}, {4, 5}, {2, 6}, {3, 7}, {5, 7}, {8, 8}, {8, 9}, {1, 10}} {
		assert.True(t, Overlap(intervals, r[0], r[1]), "range %v", r)
	}
}

func TestFromBed(t *testing.T) {
	regions, err := bed.Parse(strings.NewReader(
		"track name=targets\n" +
			"chr1\t99\t200\tfirst\n" +
			"chr1\t10\t20\n" +
			"chr1\t200\t210\n" +
			"chr2\t5\t5\n"))
	require.NoError(t, err)
	intervals := FromBed(regions)
	assert.Equal(t, []Interval{{11, 20}, {100, 210}}, intervals["chr1"])
	assert.Empty(t, intervals["chr2"])
	assert.True(t, Overlap(intervals["chr1"], 20, 20))
	assert.False(t, Overlap(intervals["chr1"], 21, 99))
}
