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
	"testing"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/vectir/vectir/eval"
	"github.com/vectir/vectir/vir"
)

type contractCase struct {
	name                   string
	dtype                  dtypes.DType
	lhsDims, rhsDims       []int
	accDims                []int // nil means scalar accumulator
	lhsMap, rhsMap, accMap vir.IndexMap
	kind                   vir.CombiningKind
}

func (c contractCase) build(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, c.name)
	lhs := fn.AddArg(ctx.Vector(c.dtype, c.lhsDims...))
	rhs := fn.AddArg(ctx.Vector(c.dtype, c.rhsDims...))
	var acc *vir.Value
	if c.accDims == nil {
		acc = fn.AddArg(ctx.Scalar(c.dtype))
	} else {
		acc = fn.AddArg(ctx.Vector(c.dtype, c.accDims...))
	}
	b := vir.NewBuilder(fn)
	b.CreateReturn(b.CreateContract(lhs, rhs, acc, c.lhsMap, c.rhsMap, c.accMap, c.kind))
	return fn
}

func (c contractCase) args() []*eval.Tensor {
	var acc *eval.Tensor
	if c.accDims == nil {
		acc = seqTensor(c.dtype)
	} else {
		acc = seqTensor(c.dtype, c.accDims...)
	}
	return []*eval.Tensor{
		seqTensor(c.dtype, c.lhsDims...),
		seqTensor(c.dtype, c.rhsDims...),
		acc,
	}
}

var contractCases = []contractCase{
	{
		name:  "matmul_add",
		dtype: dtypes.Float32,
		lhsDims: []int{2, 4}, rhsDims: []int{4, 3}, accDims: []int{2, 3},
		lhsMap: vir.IndexMap{0, 2}, rhsMap: vir.IndexMap{2, 1}, accMap: vir.IndexMap{0, 1},
		kind: vir.CombiningAdd,
	},
	{
		name:  "matmul_max",
		dtype: dtypes.Float32,
		lhsDims: []int{2, 4}, rhsDims: []int{4, 3}, accDims: []int{2, 3},
		lhsMap: vir.IndexMap{0, 2}, rhsMap: vir.IndexMap{2, 1}, accMap: vir.IndexMap{0, 1},
		kind: vir.CombiningMax,
	},
	{
		// Iterators b, m, n, k over batched operands.
		name:  "batched_matmul",
		dtype: dtypes.Float32,
		lhsDims: []int{2, 2, 3}, rhsDims: []int{2, 3, 2}, accDims: []int{2, 2, 2},
		lhsMap: vir.IndexMap{0, 1, 3}, rhsMap: vir.IndexMap{0, 3, 2}, accMap: vir.IndexMap{0, 1, 2},
		kind: vir.CombiningAdd,
	},
	{
		// lhs stored k-major; the peel must transpose it.
		name:  "transposed_lhs",
		dtype: dtypes.Float32,
		lhsDims: []int{4, 2}, rhsDims: []int{4, 3}, accDims: []int{2, 3},
		lhsMap: vir.IndexMap{2, 0}, rhsMap: vir.IndexMap{2, 1}, accMap: vir.IndexMap{0, 1},
		kind: vir.CombiningAdd,
	},
	{
		name:  "dot_scalar_acc",
		dtype: dtypes.Float32,
		lhsDims: []int{5}, rhsDims: []int{5}, accDims: nil,
		lhsMap: vir.IndexMap{0}, rhsMap: vir.IndexMap{0}, accMap: vir.IndexMap{},
		kind: vir.CombiningAdd,
	},
	{
		name:  "int_matmul",
		dtype: dtypes.Int32,
		lhsDims: []int{2, 2}, rhsDims: []int{2, 2}, accDims: []int{2, 2},
		lhsMap: vir.IndexMap{0, 2}, rhsMap: vir.IndexMap{2, 1}, accMap: vir.IndexMap{0, 1},
		kind: vir.CombiningAdd,
	},
	{
		// Outer product: no contracted iterator at all.
		name:  "outer_no_contraction",
		dtype: dtypes.Float32,
		lhsDims: []int{3}, rhsDims: []int{2}, accDims: []int{3, 2},
		lhsMap: vir.IndexMap{0}, rhsMap: vir.IndexMap{1}, accMap: vir.IndexMap{0, 1},
		kind: vir.CombiningAdd,
	},
}

// TestContractLoweringEquivalence lowers every contraction case under
// every strategy and checks value equivalence against the unlowered
// program. No contraction may survive.
func TestContractLoweringEquivalence(t *testing.T) {
	strategies := []ContractLowering{ContractDot, ContractMatmul, ContractOuterProduct}
	for _, strat := range strategies {
		for _, c := range contractCases {
			t.Run(strat.String()+"/"+c.name, func(t *testing.T) {
				ctx := vir.NewContext()
				opts := Options{}.WithContractLowering(strat)
				fn := checkEquivalence(t, ctx, func() *vir.Func { return c.build(ctx) }, opts, c.args())
				if got := fn.CountKind(vir.OpContract); got != 0 {
					t.Errorf("%d contractions survived lowering:\n%s", got, fn)
				}
			})
		}
	}
}

// TestContractStrategyPrimitives checks that each specialized strategy
// actually reaches its primitive on the canonical 2-D form.
func TestContractStrategyPrimitives(t *testing.T) {
	canonical := contractCases[0] // matmul_add

	tests := []struct {
		strat ContractLowering
		kind  vir.OpKind
	}{
		{ContractMatmul, vir.OpMatmul},
		{ContractOuterProduct, vir.OpOuterProduct},
	}
	for _, tt := range tests {
		t.Run(tt.strat.String(), func(t *testing.T) {
			ctx := vir.NewContext()
			fn := canonical.build(ctx)
			applyAll(t, fn, ctx, Options{}.WithContractLowering(tt.strat))
			if got := fn.CountKind(tt.kind); got == 0 {
				t.Errorf("strategy %s produced no %s:\n%s", tt.strat, tt.kind, fn)
			}
		})
	}

	// The dot strategy must reach multiply/reduce instead.
	ctx := vir.NewContext()
	fn := canonical.build(ctx)
	applyAll(t, fn, ctx, Options{}.WithContractLowering(ContractDot))
	if fn.CountKind(vir.OpMatmul) != 0 || fn.CountKind(vir.OpOuterProduct) != 0 {
		t.Errorf("dot strategy reached a specialized primitive:\n%s", fn)
	}
	if fn.CountKind(vir.OpReduction) == 0 {
		t.Errorf("dot strategy produced no reduction:\n%s", fn)
	}
}

// TestShapeCastLowering checks the rank-2 up/down shape cast rewrites
// against direct evaluation.
func TestShapeCastLowering(t *testing.T) {
	ctx := vir.NewContext()
	build := func() *vir.Func {
		fn := vir.NewFunc(ctx, "roundtrip")
		in := fn.AddArg(ctx.Vector(dtypes.Float32, 3, 4))
		b := vir.NewBuilder(fn)
		flat := b.CreateShapeCast(ctx.Vector(dtypes.Float32, 12), in)
		b.CreateReturn(b.CreateShapeCast(ctx.Vector(dtypes.Float32, 3, 4), flat))
		return fn
	}
	fn := checkEquivalence(t, ctx, build, Options{}, []*eval.Tensor{seqTensor(dtypes.Float32, 3, 4)})
	if got := fn.CountKind(vir.OpShapeCast); got != 0 {
		t.Errorf("%d shape casts survived lowering:\n%s", got, fn)
	}

	// A single down cast cannot fold away; it must decompose into
	// strided slices instead.
	buildDown := func() *vir.Func {
		fn := vir.NewFunc(ctx, "flatten")
		in := fn.AddArg(ctx.Vector(dtypes.Float32, 3, 4))
		b := vir.NewBuilder(fn)
		b.CreateReturn(b.CreateShapeCast(ctx.Vector(dtypes.Float32, 12), in))
		return fn
	}
	fn = checkEquivalence(t, ctx, buildDown, Options{}, []*eval.Tensor{seqTensor(dtypes.Float32, 3, 4)})
	if got := fn.CountKind(vir.OpShapeCast); got != 0 {
		t.Errorf("%d shape casts survived the down lowering:\n%s", got, fn)
	}
	if fn.CountKind(vir.OpInsertStridedSlice) == 0 {
		t.Errorf("down cast produced no strided inserts:\n%s", fn)
	}
}
