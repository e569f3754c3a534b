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
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

// iterator classification within a contraction: a batch iterator appears
// in all three operands, a parallel one in one input and the
// accumulator, a contracted one in both inputs but not the accumulator.
type iterClass int

const (
	iterBatch iterClass = iota
	iterParallel
	iterContracted

	// iterAbsent marks iterator ids no operand reads. Peeling removes
	// map entries without renumbering, so gaps in the id space are
	// ordinary.
	iterAbsent
)

// contractInfo is the fully-validated view of a contraction operation.
// Building it is the match phase: any malformation (invalid maps,
// inconsistent extents, unsupported combining kind) makes the pattern
// report no-match instead of failing.
type contractInfo struct {
	lhs, rhs, acc          *vir.Value
	lhsMap, rhsMap, accMap vir.IndexMap
	kind                   vir.CombiningKind
	dtype                  dtypes.DType
	numIters               int
	extents                []int
	classes                []iterClass
}

func analyzeContract(op *vir.Operation) (contractInfo, bool) {
	var info contractInfo
	if op.Kind != vir.OpContract {
		return info, false
	}
	info.lhs, info.rhs, info.acc = op.Operand(0), op.Operand(1), op.Operand(2)
	info.lhsMap = op.MapAttr("lhs_map")
	info.rhsMap = op.MapAttr("rhs_map")
	info.accMap = op.MapAttr("acc_map")
	info.kind = op.KindAttr("kind")

	for _, m := range []vir.IndexMap{info.lhsMap, info.rhsMap, info.accMap} {
		for _, it := range m {
			if it >= info.numIters {
				info.numIters = it + 1
			}
		}
	}
	if !info.lhsMap.Valid(info.numIters) || !info.rhsMap.Valid(info.numIters) || !info.accMap.Valid(info.numIters) {
		return info, false
	}

	dt, ok := operandDType(info.acc)
	if !ok {
		return info, false
	}
	info.dtype = dt
	for _, v := range []*vir.Value{info.lhs, info.rhs} {
		if odt, ok := operandDType(v); !ok || odt != dt {
			return info, false
		}
	}
	if !info.kind.SupportsDType(dt) {
		return info, false
	}

	info.extents = make([]int, info.numIters)
	info.classes = make([]iterClass, info.numIters)
	for it := 0; it < info.numIters; it++ {
		inLhs := info.lhsMap.PositionOf(it) >= 0
		inRhs := info.rhsMap.PositionOf(it) >= 0
		inAcc := info.accMap.PositionOf(it) >= 0
		switch {
		case inLhs && inRhs && inAcc:
			info.classes[it] = iterBatch
		case inLhs && inRhs:
			info.classes[it] = iterContracted
		case inAcc && (inLhs || inRhs):
			info.classes[it] = iterParallel
		case !inLhs && !inRhs && !inAcc:
			info.classes[it] = iterAbsent
			info.extents[it] = 1
			continue
		default:
			// An iterator confined to a single operand has no defined
			// contraction meaning.
			return info, false
		}
		info.extents[it] = -1
		for _, side := range []struct {
			m vir.IndexMap
			v *vir.Value
		}{{info.lhsMap, info.lhs}, {info.rhsMap, info.rhs}, {info.accMap, info.acc}} {
			p := side.m.PositionOf(it)
			if p < 0 {
				continue
			}
			vt := side.v.VectorType()
			if vt == nil {
				return info, false
			}
			if info.extents[it] < 0 {
				info.extents[it] = vt.Dim(p)
			} else if info.extents[it] != vt.Dim(p) {
				return info, false
			}
		}
	}

	// Ranks must be fully explained by the maps.
	if len(info.lhsMap) != rankOf(info.lhs) || len(info.rhsMap) != rankOf(info.rhs) || len(info.accMap) != rankOf(info.acc) {
		return info, false
	}
	return info, true
}

func rankOf(v *vir.Value) int {
	if vt := v.VectorType(); vt != nil {
		return vt.Rank()
	}
	return 0
}

func operandDType(v *vir.Value) (dtypes.DType, bool) {
	switch t := v.Type().(type) {
	case *vir.ScalarType:
		return t.DType(), true
	case *vir.VectorType:
		return t.DType(), true
	default:
		return dtypes.InvalidDType, false
	}
}

func zeroConstant(r *rewrite.Rewriter, dtype dtypes.DType) *vir.Value {
	t := r.Context().Scalar(dtype)
	if dtype.IsFloat() {
		return r.CreateConstant(t, float64(0))
	}
	return r.CreateConstant(t, int64(0))
}

// frontIterator rotates iterator it to dimension 0 of operand v,
// inserting a transpose when it sits deeper, and returns the adjusted
// value and map. v must use it.
func frontIterator(r *rewrite.Rewriter, v *vir.Value, m vir.IndexMap, it int) (*vir.Value, vir.IndexMap) {
	p := m.PositionOf(it)
	if p == 0 {
		return v, m
	}
	perm := make([]int, len(m))
	perm[0] = p
	for d := 1; d <= p; d++ {
		perm[d] = d - 1
	}
	for d := p + 1; d < len(m); d++ {
		perm[d] = d
	}
	return r.CreateTranspose(v, perm), m.Permuted(perm)
}

// peelOperand extracts index i along dimension 0 when the operand uses
// iterator it, returning the reduced value and map unchanged otherwise.
func peelOperand(r *rewrite.Rewriter, v *vir.Value, m vir.IndexMap, it, i int) (*vir.Value, vir.IndexMap) {
	if m.PositionOf(it) < 0 {
		return v, m
	}
	v, m = frontIterator(r, v, m, it)
	return r.CreateExtract(v, []int{i}), m.WithoutDim(0)
}

// rewriteContractPeel progressively lowers a contraction: one
// application peels the leading accumulator iterator (batch or free)
// into an extract/recontract/insert sequence, or peels the leading
// contracted iterator into a sequential accumulation, or emits the
// dot-product base case when only elementwise work remains. The driver's
// fixed-point loop supplies the recursion.
func rewriteContractPeel(op *vir.Operation, r *rewrite.Rewriter) error {
	info, ok := analyzeContract(op)
	if !ok {
		return rewrite.ErrNoMatch
	}

	// Base cases first: all-scalar, and single contracted dimension.
	if len(info.accMap) == 0 {
		if len(info.lhsMap) == 0 {
			// No iterators left at all: a plain multiply-accumulate.
			prod := r.CreateMul(info.lhs, info.rhs)
			r.ReplaceOpWith(op, r.CreateCombine(info.kind, info.acc, prod))
			return nil
		}
		if len(info.lhsMap) == 1 {
			// One contracted iterator: the innermost dot product.
			prod := r.CreateMul(info.lhs, info.rhs)
			r.ReplaceOpWith(op, r.CreateReduction(info.kind, prod, info.acc))
			return nil
		}
		// Several contracted iterators: accumulate sequentially over the
		// leading one.
		it := info.lhsMap[0]
		lhs, lhsMap := info.lhs, info.lhsMap
		rhs, rhsMap := frontIterator(r, info.rhs, info.rhsMap, it)
		acc := info.acc
		for i := 0; i < info.extents[it]; i++ {
			subLhs := r.CreateExtract(lhs, []int{i})
			subRhs := r.CreateExtract(rhs, []int{i})
			acc = r.CreateContract(subLhs, subRhs, acc,
				lhsMap.WithoutDim(0), rhsMap.WithoutDim(0), info.accMap, info.kind)
		}
		r.ReplaceOpWith(op, acc)
		return nil
	}

	// Peel the leading accumulator iterator.
	it := info.accMap[0]
	accType := info.acc.VectorType()
	result := r.CreateBroadcast(accType, zeroConstant(r, info.dtype))
	lhs, lhsMap := info.lhs, info.lhsMap
	rhs, rhsMap := info.rhs, info.rhsMap
	if lhsMap.PositionOf(it) > 0 {
		lhs, lhsMap = frontIterator(r, lhs, lhsMap, it)
	}
	if rhsMap.PositionOf(it) > 0 {
		rhs, rhsMap = frontIterator(r, rhs, rhsMap, it)
	}
	for i := 0; i < info.extents[it]; i++ {
		subLhs, subLhsMap := peelOperand(r, lhs, lhsMap, it, i)
		subRhs, subRhsMap := peelOperand(r, rhs, rhsMap, it, i)
		subAcc := r.CreateExtract(info.acc, []int{i})
		sub := r.CreateContract(subLhs, subRhs, subAcc,
			subLhsMap, subRhsMap, info.accMap.WithoutDim(0), info.kind)
		result = r.CreateInsert(sub, result, []int{i})
	}
	r.ReplaceOpWith(op, result)
	return nil
}

// matmulForm matches the canonical two-dimensional contraction
// lhs[m,k] * rhs[k,n] -> acc[m,n], allowing the lhs and rhs dimension
// orders to be swapped. It reports the contracted iterator and whether
// each input needs a transpose to bring the contracted dimension first.
type matmulForm struct {
	info          contractInfo
	lhsContracted bool // contracted iterator already leads lhs
	rhsContracted bool // contracted iterator already leads rhs
}

func matchMatmulForm(op *vir.Operation) (matmulForm, bool) {
	var form matmulForm
	info, ok := analyzeContract(op)
	if !ok {
		return form, false
	}
	form.info = info
	if len(info.accMap) != 2 || len(info.lhsMap) != 2 || len(info.rhsMap) != 2 {
		return form, false
	}
	m, n := info.accMap[0], info.accMap[1]
	if info.classes[m] != iterParallel || info.classes[n] != iterParallel {
		return form, false
	}
	var k = -1
	for it := 0; it < info.numIters; it++ {
		if info.classes[it] == iterContracted {
			if k >= 0 {
				return form, false
			}
			k = it
		}
	}
	if k < 0 {
		return form, false
	}
	if info.lhsMap.PositionOf(m) < 0 || info.rhsMap.PositionOf(n) < 0 {
		return form, false
	}
	form.lhsContracted = info.lhsMap[0] == k
	form.rhsContracted = info.rhsMap[0] == k
	return form, true
}

// rewriteContractToMatmul maps the canonical row-major 2-D contraction
// with additive accumulation directly onto the matrix-multiply
// primitive. Anything else is left for the progressive peel.
func rewriteContractToMatmul(op *vir.Operation, r *rewrite.Rewriter) error {
	form, ok := matchMatmulForm(op)
	if !ok {
		return rewrite.ErrNoMatch
	}
	if form.info.kind != vir.CombiningAdd {
		return rewrite.ErrNoMatch
	}
	if form.lhsContracted || !form.rhsContracted {
		// The primitive wants lhs[m,k] and rhs[k,n] exactly; transposed
		// operand orders are left to the progressive peel.
		return rewrite.ErrNoMatch
	}
	mm := r.CreateMatmul(form.info.lhs, form.info.rhs)
	r.ReplaceOpWith(op, r.CreateCombine(vir.CombiningAdd, form.info.acc, mm))
	return nil
}

// rewriteContractToOuterProduct lowers the 2-D contraction base case to a
// sequence of rank-1 outer-product accumulations, one per contracted
// index.
func rewriteContractToOuterProduct(op *vir.Operation, r *rewrite.Rewriter) error {
	form, ok := matchMatmulForm(op)
	if !ok {
		return rewrite.ErrNoMatch
	}
	info := form.info
	lhs := info.lhs
	if !form.lhsContracted {
		lhs = r.CreateTranspose(lhs, []int{1, 0})
	}
	// The contracted dimension must lead rhs as well, so each extracted
	// rhs row spans the n dimension of the accumulator.
	rhs := info.rhs
	if !form.rhsContracted {
		rhs = r.CreateTranspose(rhs, []int{1, 0})
	}
	k := lhs.VectorType().Dim(0)
	acc := info.acc
	for i := 0; i < k; i++ {
		col := r.CreateExtract(lhs, []int{i})
		row := r.CreateExtract(rhs, []int{i})
		acc = r.CreateOuterProduct(info.kind, col, row, acc)
	}
	r.ReplaceOpWith(op, acc)
	return nil
}

// rewriteShapeCast2DDown flattens a rank-2 shape cast into per-row
// strided inserts over a rank-1 vector.
func rewriteShapeCast2DDown(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpShapeCast {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	srcType, resType := src.VectorType(), op.Result(0).VectorType()
	if srcType == nil || resType == nil || srcType.Rank() != 2 || resType.Rank() != 1 {
		return rewrite.ErrNoMatch
	}
	// A leading unit dimension makes the cast a pure reshape; that is
	// cast-away territory, not a data movement to expand.
	if srcType.Dim(0) == 1 {
		return rewrite.ErrNoMatch
	}
	rows, cols := srcType.Dim(0), srcType.Dim(1)
	result := r.CreateBroadcast(resType, zeroConstant(r, resType.DType()))
	for i := 0; i < rows; i++ {
		row := r.CreateExtract(src, []int{i})
		result = r.CreateInsertStridedSlice(row, result, []int{i * cols}, []int{1})
	}
	r.ReplaceOpWith(op, result)
	return nil
}

// rewriteShapeCast2DUp expands a rank-1 to rank-2 shape cast into
// strided extracts inserted row by row.
func rewriteShapeCast2DUp(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpShapeCast {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	srcType, resType := src.VectorType(), op.Result(0).VectorType()
	if srcType == nil || resType == nil || srcType.Rank() != 1 || resType.Rank() != 2 {
		return rewrite.ErrNoMatch
	}
	if resType.Dim(0) == 1 {
		return rewrite.ErrNoMatch
	}
	rows, cols := resType.Dim(0), resType.Dim(1)
	result := r.CreateBroadcast(resType, zeroConstant(r, resType.DType()))
	for i := 0; i < rows; i++ {
		row := r.CreateExtractStridedSlice(src, []int{i * cols}, []int{cols}, []int{1})
		result = r.CreateInsert(row, result, []int{i})
	}
	r.ReplaceOpWith(op, result)
	return nil
}
