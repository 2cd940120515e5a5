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

import "github.com/exascience/reblock/vcf"

// filterHomRefBlock passes through reference blocks, unless low
// quality blocks are dropped and the block's GQ is at or below the
// threshold, or zero. A missing GQ counts as -1. Uncalled blocks pass
// only if their PL vector favours the reference.
func filterHomRefBlock(v *vcf.Variant, dropLowQuals bool, rgqThreshold float64) *vcf.Variant {
	g := &v.GenotypeData[0]
	if dropLowQuals {
		gq, ok := g.GetInt(vcf.GQ)
		if !ok {
			gq = -1
		}
		if float64(gq) <= rgqThreshold || gq == 0 {
			return nil
		}
	}
	if g.IsCalled() {
		if g.IsHomRef() {
			return v
		}
		return nil
	}
	if pl, ok := g.GetInts(vcf.PL); ok && len(pl) > 0 && pl[0] == 0 {
		return v
	}
	return nil
}
