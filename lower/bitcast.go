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

// Bitcasts only reinterpret the innermost dimension, so extracts and
// slices that leave the innermost dimension whole commute with them.
// Bubbling the bitcast toward the smaller value shrinks the data a
// bitcast touches and uncovers further extract folds.

// rewriteBubbleBitCastExtract rewrites extract(bitcast(x)) into
// bitcast(extract(x)) when the extract keeps the innermost dimension,
// that is, when its result is still a vector.
func rewriteBubbleBitCastExtract(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpExtract || op.Operand(0).DefKind() != vir.OpBitCast {
		return rewrite.ErrNoMatch
	}
	resType := op.Result(0).VectorType()
	if resType == nil {
		// A scalar extract consumes the reinterpreted innermost
		// dimension; the two do not commute.
		return rewrite.ErrNoMatch
	}
	pos := op.IntsAttr("position")
	inner := op.Operand(0).Def().Operand(0)
	ext := r.CreateExtract(inner, pos)
	r.ReplaceOpWith(op, r.CreateBitCast(resType, ext))
	return nil
}

// rewriteBubbleBitCastExtractSlice rewrites a strided slice of a bitcast
// into a bitcast of a strided slice when the slice keeps the innermost
// dimension whole.
func rewriteBubbleBitCastExtractSlice(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpExtractStridedSlice || op.Operand(0).DefKind() != vir.OpBitCast {
		return rewrite.ErrNoMatch
	}
	cast := op.Operand(0).Def()
	inner := cast.Operand(0)
	innerType := inner.VectorType()
	castType := op.Operand(0).VectorType()
	offsets := op.IntsAttr("offsets")
	sizes := op.IntsAttr("sizes")
	strides := op.IntsAttr("strides")
	last := len(offsets) - 1
	if offsets[last] != 0 || sizes[last] != castType.Dim(last) {
		return rewrite.ErrNoMatch
	}
	newSizes := append([]int(nil), sizes...)
	newSizes[last] = innerType.Dim(last)
	ext := r.CreateExtractStridedSlice(inner, offsets, newSizes, strides)
	r.ReplaceOpWith(op, r.CreateBitCast(op.Result(0).VectorType(), ext))
	return nil
}

// rewriteBubbleBitCastInsertSlice rewrites bitcast(insert_slice(s, d))
// into insert_slice(bitcast(s), bitcast(d)) when the insert is aligned
// on the innermost dimension, pushing the wide bitcast onto the two
// smaller operands.
func rewriteBubbleBitCastInsertSlice(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpBitCast || op.Operand(0).DefKind() != vir.OpInsertStridedSlice {
		return rewrite.ErrNoMatch
	}
	ins := op.Operand(0).Def()
	if len(ins.Result(0).Uses()) > 1 {
		// The inserted form is observed elsewhere; duplicating the
		// insert chain would grow the program.
		return rewrite.ErrNoMatch
	}
	src, dst := ins.Operand(0), ins.Operand(1)
	offsets := ins.IntsAttr("offsets")
	strides := ins.IntsAttr("strides")
	last := len(offsets) - 1
	if offsets[last] != 0 {
		return rewrite.ErrNoMatch
	}
	resType := op.Result(0).VectorType()
	srcType := src.VectorType()
	srcInner := vir.BitCastResultDim(srcType, resType.DType())
	if srcInner < 0 {
		return rewrite.ErrNoMatch
	}
	srcDims := append([]int(nil), srcType.Dims()...)
	srcDims[len(srcDims)-1] = srcInner
	newSrc := r.CreateBitCast(r.Context().Vector(resType.DType(), srcDims...), src)
	newDst := r.CreateBitCast(resType, dst)
	r.ReplaceOpWith(op, r.CreateInsertStridedSlice(newSrc, newDst, offsets, strides))
	return nil
}
