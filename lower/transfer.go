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

// transferRead destructures an OpTransferRead's operand list.
type transferRead struct {
	mem     *vir.Value
	indices []*vir.Value
	padding *vir.Value
	vecType *vir.VectorType
}

func matchTransferRead(op *vir.Operation) (transferRead, bool) {
	var tr transferRead
	if op.Kind != vir.OpTransferRead {
		return tr, false
	}
	tr.mem = op.Operand(0)
	mt := tr.mem.Type().(*vir.MemRefType)
	tr.indices = op.Operands[1 : 1+mt.Rank()]
	tr.padding = op.Operand(1 + mt.Rank())
	tr.vecType = op.Result(0).VectorType()
	return tr, true
}

// transferWrite destructures an OpTransferWrite's operand list.
type transferWrite struct {
	vec     *vir.Value
	mem     *vir.Value
	indices []*vir.Value
}

func matchTransferWrite(op *vir.Operation) (transferWrite, bool) {
	var tw transferWrite
	if op.Kind != vir.OpTransferWrite {
		return tw, false
	}
	tw.vec = op.Operand(0)
	tw.mem = op.Operand(1)
	tw.indices = op.Operands[2:]
	return tw, true
}

// inBoundsCond builds the conjunction asserting that a vector of type vt
// anchored at indices fits inside mem: for every memref dimension,
// index + extent <= dim. Leading dimensions the vector does not cover
// have extent one, so their index alone must be in range.
func inBoundsCond(r *rewrite.Rewriter, mem *vir.Value, indices []*vir.Value, vt *vir.VectorType) *vir.Value {
	mt := mem.Type().(*vir.MemRefType)
	lead := mt.Rank() - vt.Rank()
	var cond *vir.Value
	for d := 0; d < mt.Rank(); d++ {
		extent := 1
		if d >= lead {
			extent = vt.Dim(d - lead)
		}
		end := r.CreateAddI(indices[d], r.CreateConstIndex(extent))
		c := r.CreateCmpLE(end, r.CreateDim(mem, d))
		if cond == nil {
			cond = c
		} else {
			cond = r.CreateAndI(cond, c)
		}
	}
	return cond
}

// splitMatchable reports whether op is a masked transfer the split
// strategies still need to handle. Transfers a split already produced
// carry the split marker and are left alone.
func splitMatchable(op *vir.Operation) bool {
	return op.BoolAttr("masked") && !op.BoolAttr("split")
}

// rewriteTransferSplitMask wraps a masked transfer in a bounds test: the
// in-bounds arm runs the fast unmasked transfer, the out-of-bounds arm
// keeps the masked one.
func rewriteTransferSplitMask(op *vir.Operation, r *rewrite.Rewriter) error {
	if !splitMatchable(op) {
		return rewrite.ErrNoMatch
	}
	if tr, ok := matchTransferRead(op); ok {
		cond := inBoundsCond(r, tr.mem, tr.indices, tr.vecType)
		ifOp := r.CreateIf(cond, tr.vecType)
		then := r.RegionBuilder(ifOp.Then)
		then.CreateYield(then.CreateTransferRead(tr.vecType, tr.mem, tr.indices, tr.padding, false))
		els := r.RegionBuilder(ifOp.Else)
		slow := els.CreateTransferRead(tr.vecType, tr.mem, tr.indices, tr.padding, true)
		slow.Def().Attrs["split"] = true
		els.CreateYield(slow)
		r.ReplaceOpWith(op, ifOp.Result(0))
		return nil
	}
	if tw, ok := matchTransferWrite(op); ok {
		cond := inBoundsCond(r, tw.mem, tw.indices, tw.vec.VectorType())
		ifOp := r.CreateIf(cond)
		then := r.RegionBuilder(ifOp.Then)
		then.CreateTransferWrite(tw.vec, tw.mem, tw.indices, false)
		then.CreateYield()
		els := r.RegionBuilder(ifOp.Else)
		els.CreateTransferWrite(tw.vec, tw.mem, tw.indices, true).Attrs["split"] = true
		els.CreateYield()
		r.ReplaceOpWith(op)
		return nil
	}
	return rewrite.ErrNoMatch
}

// rewriteTransferSplitCopy wraps a masked transfer in a bounds test with
// a staging-buffer slow path, removing masked transfers entirely: the
// out-of-bounds arm copies through a scratch buffer sized to the vector
// and runs the unmasked transfer against it.
func rewriteTransferSplitCopy(op *vir.Operation, r *rewrite.Rewriter) error {
	if !splitMatchable(op) {
		return rewrite.ErrNoMatch
	}
	ctx := r.Context()
	if tr, ok := matchTransferRead(op); ok {
		cond := inBoundsCond(r, tr.mem, tr.indices, tr.vecType)
		ifOp := r.CreateIf(cond, tr.vecType)
		then := r.RegionBuilder(ifOp.Then)
		then.CreateYield(then.CreateTransferRead(tr.vecType, tr.mem, tr.indices, tr.padding, false))
		els := r.RegionBuilder(ifOp.Else)
		staging := els.CreateAlloc(ctx.MemRef(tr.vecType.DType(), tr.vecType.Dims()...))
		els.CreateFill(staging, tr.padding)
		els.CreateCopyIn(tr.mem, staging, tr.indices)
		els.CreateYield(els.CreateTransferRead(tr.vecType, staging, zeroIndices(els, tr.vecType.Rank()), tr.padding, false))
		r.ReplaceOpWith(op, ifOp.Result(0))
		return nil
	}
	if tw, ok := matchTransferWrite(op); ok {
		vt := tw.vec.VectorType()
		cond := inBoundsCond(r, tw.mem, tw.indices, vt)
		ifOp := r.CreateIf(cond)
		then := r.RegionBuilder(ifOp.Then)
		then.CreateTransferWrite(tw.vec, tw.mem, tw.indices, false)
		then.CreateYield()
		els := r.RegionBuilder(ifOp.Else)
		staging := els.CreateAlloc(ctx.MemRef(vt.DType(), vt.Dims()...))
		els.CreateTransferWrite(tw.vec, staging, zeroIndices(els, vt.Rank()), false)
		els.CreateCopyOut(staging, tw.mem, tw.indices)
		els.CreateYield()
		r.ReplaceOpWith(op)
		return nil
	}
	return rewrite.ErrNoMatch
}

func zeroIndices(b *vir.Builder, n int) []*vir.Value {
	indices := make([]*vir.Value, n)
	for i := range indices {
		indices[i] = b.CreateConstIndex(0)
	}
	return indices
}

// rewriteTransferForceUnmasked strips the mask unconditionally: the
// caller asserts all transfers are in bounds.
func rewriteTransferForceUnmasked(op *vir.Operation, r *rewrite.Rewriter) error {
	if !op.BoolAttr("masked") {
		return rewrite.ErrNoMatch
	}
	if tr, ok := matchTransferRead(op); ok {
		r.ReplaceOpWith(op, r.CreateTransferRead(tr.vecType, tr.mem, tr.indices, tr.padding, false))
		return nil
	}
	if tw, ok := matchTransferWrite(op); ok {
		r.CreateTransferWrite(tw.vec, tw.mem, tw.indices, false)
		r.ReplaceOpWith(op)
		return nil
	}
	return rewrite.ErrNoMatch
}

// rewriteTransferReadToLoad lowers an unmasked transfer read whose
// vector spans whole trailing dimensions to a plain load.
func rewriteTransferReadToLoad(op *vir.Operation, r *rewrite.Rewriter) error {
	tr, ok := matchTransferRead(op)
	if !ok || op.BoolAttr("masked") {
		return rewrite.ErrNoMatch
	}
	r.ReplaceOpWith(op, r.CreateLoad(tr.vecType, tr.mem, tr.indices))
	return nil
}

// rewriteTransferWriteToStore lowers an unmasked transfer write to a
// plain store.
func rewriteTransferWriteToStore(op *vir.Operation, r *rewrite.Rewriter) error {
	tw, ok := matchTransferWrite(op)
	if !ok || op.BoolAttr("masked") {
		return rewrite.ErrNoMatch
	}
	r.CreateStore(tw.vec, tw.mem, tw.indices)
	r.ReplaceOpWith(op)
	return nil
}
