// Copyright 2025 vectir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lower

import (
	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

// rewriteTransposeEltWise unrolls a transpose into scalar extracts and
// inserts, one per element of the result.
func rewriteTransposeEltWise(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpTranspose {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	perm := op.IntsAttr("permutation")
	resType := op.Result(0).VectorType()

	result := r.CreateBroadcast(resType, zeroConstant(r, resType.DType()))
	pos := make([]int, resType.Rank())
	srcPos := make([]int, resType.Rank())
	for {
		// result[pos] = src[srcPos] with srcPos[perm[d]] = pos[d].
		for d, p := range perm {
			srcPos[p] = pos[d]
		}
		elem := r.CreateExtract(src, append([]int(nil), srcPos...))
		result = r.CreateInsert(elem, result, append([]int(nil), pos...))
		if !advance(pos, resType.Dims()) {
			break
		}
	}
	r.ReplaceOpWith(op, result)
	return nil
}

// advance steps pos through the row-major index space bounded by dims,
// reporting false after the last position.
func advance(pos, dims []int) bool {
	for d := len(pos) - 1; d >= 0; d-- {
		pos[d]++
		if pos[d] < dims[d] {
			return true
		}
		pos[d] = 0
	}
	return false
}

// rewriteTransposeToFlat maps a rank-2 transpose onto the flat transpose
// primitive. Higher ranks and non-swap permutations fall through to the
// elementwise lowering.
func rewriteTransposeToFlat(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpTranspose {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	vt := src.VectorType()
	perm := op.IntsAttr("permutation")
	if vt.Rank() != 2 || len(perm) != 2 || perm[0] != 1 || perm[1] != 0 {
		return rewrite.ErrNoMatch
	}
	r.ReplaceOpWith(op, r.CreateFlatTranspose(src))
	return nil
}
