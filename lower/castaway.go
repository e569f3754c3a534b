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

// Leading unit dimensions carry no data; casting them away lets the
// lower-rank patterns fire. Each rewrite runs the trimmed operation and
// shape-casts the result back, so surrounding code keeps its types.

// leadingOnes counts the droppable leading unit dimensions of dims,
// always leaving at least one dimension.
func leadingOnes(dims []int) int {
	k := 0
	for k < len(dims)-1 && dims[k] == 1 {
		k++
	}
	return k
}

func trimmedVector(ctx *vir.Context, vt *vir.VectorType, k int) *vir.VectorType {
	return ctx.Vector(vt.DType(), vt.Dims()[k:]...)
}

// rewriteCastAwayTransferRead reads the trimmed vector and shape-casts
// it back up. Masked transfers keep their rank: dropping a dimension
// would drop its bounds check.
func rewriteCastAwayTransferRead(op *vir.Operation, r *rewrite.Rewriter) error {
	tr, ok := matchTransferRead(op)
	if !ok || op.BoolAttr("masked") {
		return rewrite.ErrNoMatch
	}
	k := leadingOnes(tr.vecType.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	trimmed := trimmedVector(r.Context(), tr.vecType, k)
	read := r.CreateTransferRead(trimmed, tr.mem, tr.indices, tr.padding, false)
	r.ReplaceOpWith(op, r.CreateShapeCast(tr.vecType, read))
	return nil
}

// rewriteCastAwayTransferWrite writes the trimmed vector.
func rewriteCastAwayTransferWrite(op *vir.Operation, r *rewrite.Rewriter) error {
	tw, ok := matchTransferWrite(op)
	if !ok || op.BoolAttr("masked") {
		return rewrite.ErrNoMatch
	}
	vt := tw.vec.VectorType()
	k := leadingOnes(vt.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	trimmed := trimmedVector(r.Context(), vt, k)
	r.CreateTransferWrite(r.CreateShapeCast(trimmed, tw.vec), tw.mem, tw.indices, false)
	r.ReplaceOpWith(op)
	return nil
}

// rewriteCastAwayBroadcast broadcasts into the trimmed shape.
func rewriteCastAwayBroadcast(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpBroadcast {
		return rewrite.ErrNoMatch
	}
	resType := op.Result(0).VectorType()
	k := leadingOnes(resType.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	trimmed := trimmedVector(r.Context(), resType, k)
	if st := src.VectorType(); st != nil && st.Rank() > trimmed.Rank() {
		return rewrite.ErrNoMatch
	}
	bc := r.CreateBroadcast(trimmed, src)
	r.ReplaceOpWith(op, r.CreateShapeCast(resType, bc))
	return nil
}

// rewriteCastAwayExtractSlice slices the trimmed source. The sliced
// extents over unit dimensions are necessarily unit themselves.
func rewriteCastAwayExtractSlice(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpExtractStridedSlice {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	vt := src.VectorType()
	k := leadingOnes(vt.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	offsets := op.IntsAttr("offsets")
	sizes := op.IntsAttr("sizes")
	strides := op.IntsAttr("strides")
	trimmed := trimmedVector(r.Context(), vt, k)
	ext := r.CreateExtractStridedSlice(r.CreateShapeCast(trimmed, src), offsets[k:], sizes[k:], strides[k:])
	r.ReplaceOpWith(op, r.CreateShapeCast(op.Result(0).VectorType(), ext))
	return nil
}

// rewriteCastAwayInsertSlice inserts trimmed source into trimmed
// destination.
func rewriteCastAwayInsertSlice(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpInsertStridedSlice {
		return rewrite.ErrNoMatch
	}
	src, dst := op.Operand(0), op.Operand(1)
	dt := dst.VectorType()
	k := leadingOnes(dt.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	offsets := op.IntsAttr("offsets")
	strides := op.IntsAttr("strides")
	st := src.VectorType()
	newSrc := r.CreateShapeCast(trimmedVector(r.Context(), st, k), src)
	newDst := r.CreateShapeCast(trimmedVector(r.Context(), dt, k), dst)
	ins := r.CreateInsertStridedSlice(newSrc, newDst, offsets[k:], strides[k:])
	r.ReplaceOpWith(op, r.CreateShapeCast(dt, ins))
	return nil
}

// rewriteCastAwayElementwise trims the lanewise arithmetic operations.
func rewriteCastAwayElementwise(op *vir.Operation, r *rewrite.Rewriter) error {
	switch op.Kind {
	case vir.OpMul, vir.OpCombine:
	default:
		return rewrite.ErrNoMatch
	}
	resType := op.Result(0).VectorType()
	if resType == nil {
		return rewrite.ErrNoMatch
	}
	k := leadingOnes(resType.Dims())
	if k == 0 {
		return rewrite.ErrNoMatch
	}
	trimmed := trimmedVector(r.Context(), resType, k)
	a := r.CreateShapeCast(trimmed, op.Operand(0))
	x := r.CreateShapeCast(trimmed, op.Operand(1))
	var res *vir.Value
	if op.Kind == vir.OpMul {
		res = r.CreateMul(a, x)
	} else {
		res = r.CreateCombine(op.KindAttr("kind"), a, x)
	}
	r.ReplaceOpWith(op, r.CreateShapeCast(resType, res))
	return nil
}
