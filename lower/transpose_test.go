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

func transposeFunc(ctx *vir.Context, dims []int, perm []int) func() *vir.Func {
	return func() *vir.Func {
		fn := vir.NewFunc(ctx, "transpose")
		in := fn.AddArg(ctx.Vector(dtypes.Float32, dims...))
		b := vir.NewBuilder(fn)
		b.CreateReturn(b.CreateTranspose(in, perm))
		return fn
	}
}

// TestTransposeLoweringEquivalence checks both strategies on rank-2 and
// rank-3 permutations against direct evaluation.
func TestTransposeLoweringEquivalence(t *testing.T) {
	cases := []struct {
		name string
		dims []int
		perm []int
	}{
		{"swap_2x3", []int{2, 3}, []int{1, 0}},
		{"swap_4x4", []int{4, 4}, []int{1, 0}},
		{"rotate_2x3x4", []int{2, 3, 4}, []int{2, 0, 1}},
	}
	for _, strat := range []TransposeLowering{TransposeEltWise, TransposeFlat2D} {
		for _, c := range cases {
			t.Run(strat.String()+"/"+c.name, func(t *testing.T) {
				ctx := vir.NewContext()
				opts := Options{}.WithTransposeLowering(strat)
				args := []*eval.Tensor{seqTensor(dtypes.Float32, c.dims...)}
				fn := checkEquivalence(t, ctx, transposeFunc(ctx, c.dims, c.perm), opts, args)
				if got := fn.CountKind(vir.OpTranspose); got != 0 {
					t.Errorf("%d transposes survived lowering:\n%s", got, fn)
				}
			})
		}
	}
}

// TestTransposeFlatReachesPrimitive checks the rank-2 fast path and the
// elementwise fallback for higher ranks.
func TestTransposeFlatReachesPrimitive(t *testing.T) {
	ctx := vir.NewContext()
	opts := Options{}.WithTransposeLowering(TransposeFlat2D)

	fn := transposeFunc(ctx, []int{2, 3}, []int{1, 0})()
	applyAll(t, fn, ctx, opts)
	if got, want := fn.CountKind(vir.OpFlatTranspose), 1; got != want {
		t.Errorf("CountKind(OpFlatTranspose) = %d, want %d:\n%s", got, want, fn)
	}
	if fn.CountKind(vir.OpExtract) != 0 {
		t.Errorf("rank-2 flat lowering fell back to elementwise:\n%s", fn)
	}

	fn = transposeFunc(ctx, []int{2, 3, 4}, []int{2, 0, 1})()
	applyAll(t, fn, ctx, opts)
	if fn.CountKind(vir.OpFlatTranspose) != 0 {
		t.Errorf("rank-3 transpose used the rank-2 primitive:\n%s", fn)
	}
	if fn.CountKind(vir.OpExtract) == 0 {
		t.Errorf("rank-3 transpose did not lower elementwise:\n%s", fn)
	}
}
