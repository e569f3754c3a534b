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

// rewriteFoldShapeCast removes identity shape casts and collapses
// chained ones.
func rewriteFoldShapeCast(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpShapeCast {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	if src.Type() == op.Result(0).Type() {
		r.ReplaceOpWith(op, src)
		return nil
	}
	if src.DefKind() == vir.OpShapeCast {
		r.ReplaceOpWith(op, r.CreateShapeCast(op.Result(0).VectorType(), src.Def().Operand(0)))
		return nil
	}
	return rewrite.ErrNoMatch
}

// rewriteFoldBitCast removes identity bitcasts and collapses chained
// ones when the end-to-end widths still divide.
func rewriteFoldBitCast(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpBitCast {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	resType := op.Result(0).VectorType()
	if src.Type() == op.Result(0).Type() {
		r.ReplaceOpWith(op, src)
		return nil
	}
	if src.DefKind() == vir.OpBitCast {
		root := src.Def().Operand(0)
		if vir.BitCastResultDim(root.VectorType(), resType.DType()) == resType.Dim(resType.Rank()-1) {
			r.ReplaceOpWith(op, r.CreateBitCast(resType, root))
			return nil
		}
	}
	return rewrite.ErrNoMatch
}

// rewriteFoldTransposeIdentity removes identity transposes and composes
// chained ones.
func rewriteFoldTransposeIdentity(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpTranspose {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	perm := op.IntsAttr("permutation")
	if vir.IsIdentityPerm(perm) {
		r.ReplaceOpWith(op, src)
		return nil
	}
	if src.DefKind() == vir.OpTranspose {
		innerPerm := src.Def().IntsAttr("permutation")
		composed := make([]int, len(perm))
		for d := range perm {
			composed[d] = innerPerm[perm[d]]
		}
		r.ReplaceOpWith(op, r.CreateTranspose(src.Def().Operand(0), composed))
		return nil
	}
	return rewrite.ErrNoMatch
}

// rewriteFoldTupleGet projects through a visible tuple construction.
func rewriteFoldTupleGet(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpTupleGet || op.Operand(0).DefKind() != vir.OpTuple {
		return rewrite.ErrNoMatch
	}
	r.ReplaceOpWith(op, op.Operand(0).Def().Operand(op.IntAttr("index")))
	return nil
}

// rewriteFoldExtractOfInsert resolves an extract against the insert it
// reads through: at the inserted position it yields the inserted value,
// at a provably disjoint position it reads the insert's destination.
func rewriteFoldExtractOfInsert(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpExtract || op.Operand(0).DefKind() != vir.OpInsert {
		return rewrite.ErrNoMatch
	}
	ins := op.Operand(0).Def()
	pos := op.IntsAttr("position")
	insPos := ins.IntsAttr("position")
	common := len(pos)
	if len(insPos) < common {
		common = len(insPos)
	}
	for d := 0; d < common; d++ {
		if pos[d] != insPos[d] {
			// Disjoint: the insert cannot have touched this element.
			r.ReplaceOpWith(op, r.CreateExtract(ins.Operand(1), pos))
			return nil
		}
	}
	if len(pos) == len(insPos) {
		r.ReplaceOpWith(op, ins.Operand(0))
		return nil
	}
	// One position prefixes the other; the extract sees a mix of
	// inserted and original data.
	return rewrite.ErrNoMatch
}
