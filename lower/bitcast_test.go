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

	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

func applyBubbling(t *testing.T, fn *vir.Func, ctx *vir.Context) {
	t.Helper()
	var ps rewrite.PatternSet
	PopulateCanonicalizationPatterns(&ps, ctx, nil)
	PopulateBitCastBubblingPatterns(&ps, ctx, nil)
	converged, err := rewrite.Apply(fn, &ps)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !converged {
		t.Fatalf("Apply did not converge:\n%s", fn)
	}
}

// bitCastOperandType returns the operand type of the only bitcast in fn.
func bitCastOperandType(t *testing.T, fn *vir.Func) *vir.VectorType {
	t.Helper()
	var ops []*vir.Operation
	fn.Walk(func(op *vir.Operation) bool {
		if op.Kind == vir.OpBitCast {
			ops = append(ops, op)
		}
		return true
	})
	if len(ops) != 1 {
		t.Fatalf("found %d bitcasts, want 1:\n%s", len(ops), fn)
	}
	return ops[0].Operand(0).Type().(*vir.VectorType)
}

// TestBubbleBitCastThroughExtract checks that a bitcast feeding an
// extract sinks below it, so the cast applies to the extracted row only.
func TestBubbleBitCastThroughExtract(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "bubble_extract")
	in := fn.AddArg(ctx.Vector(dtypes.Int32, 2, 4))
	b := vir.NewBuilder(fn)
	cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 2, 2), in)
	b.CreateReturn(b.CreateExtract(cast, []int{0}))

	applyBubbling(t, fn, ctx)
	if got, want := bitCastOperandType(t, fn), ctx.Vector(dtypes.Int32, 4); got != want {
		t.Errorf("bitcast operand type = %s, want %s:\n%s", got, want, fn)
	}
}

// TestBubbleBitCastThroughExtractSlice checks the strided-slice variant:
// the slice keeps the full innermost dimension, so the cast commutes.
func TestBubbleBitCastThroughExtractSlice(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "bubble_extract_slice")
	in := fn.AddArg(ctx.Vector(dtypes.Int32, 4, 8))
	b := vir.NewBuilder(fn)
	cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 4, 4), in)
	b.CreateReturn(b.CreateExtractStridedSlice(cast, []int{1, 0}, []int{2, 4}, []int{1, 1}))

	applyBubbling(t, fn, ctx)
	if got, want := bitCastOperandType(t, fn), ctx.Vector(dtypes.Int32, 2, 8); got != want {
		t.Errorf("bitcast operand type = %s, want %s:\n%s", got, want, fn)
	}
}

// TestBubbleBitCastThroughInsertSlice checks that a bitcast of an insert
// result splits into casts of the inserted tile and the destination.
func TestBubbleBitCastThroughInsertSlice(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "bubble_insert_slice")
	dst := fn.AddArg(ctx.Vector(dtypes.Int32, 4, 8))
	src := fn.AddArg(ctx.Vector(dtypes.Int32, 2, 8))
	b := vir.NewBuilder(fn)
	ins := b.CreateInsertStridedSlice(src, dst, []int{1, 0}, []int{1, 1})
	b.CreateReturn(b.CreateBitCast(ctx.Vector(dtypes.Int64, 4, 4), ins))

	applyBubbling(t, fn, ctx)
	if got, want := fn.CountKind(vir.OpBitCast), 2; got != want {
		t.Errorf("CountKind(OpBitCast) = %d, want %d:\n%s", got, want, fn)
	}
	fn.Walk(func(op *vir.Operation) bool {
		if op.Kind == vir.OpInsertStridedSlice {
			if got, want := op.Result(0).Type(), vir.Type(ctx.Vector(dtypes.Int64, 4, 4)); got != want {
				t.Errorf("insert result type = %s, want %s:\n%s", got, want, fn)
			}
		}
		return true
	})
}

// bitCastElements sums the element counts of all bitcast results in fn.
func bitCastElements(fn *vir.Func) int {
	n := 0
	fn.Walk(func(op *vir.Operation) bool {
		if op.Kind == vir.OpBitCast {
			n += op.Result(0).Type().(*vir.VectorType).NumElements()
		}
		return true
	})
	return n
}

// TestBubbleBitCastShrinksThroughExtracts checks that sinking a bitcast
// below extracts never grows the total number of reinterpreted elements:
// each cast ends up on the smaller extracted value.
func TestBubbleBitCastShrinksThroughExtracts(t *testing.T) {
	cases := []struct {
		name  string
		build func(ctx *vir.Context) *vir.Func
	}{
		{"extract", func(ctx *vir.Context) *vir.Func {
			fn := vir.NewFunc(ctx, "shrink_extract")
			in := fn.AddArg(ctx.Vector(dtypes.Int32, 4, 4))
			b := vir.NewBuilder(fn)
			cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 4, 2), in)
			b.CreateReturn(b.CreateExtract(cast, []int{2}))
			return fn
		}},
		{"extract_slice", func(ctx *vir.Context) *vir.Func {
			fn := vir.NewFunc(ctx, "shrink_extract_slice")
			in := fn.AddArg(ctx.Vector(dtypes.Int32, 8, 8))
			b := vir.NewBuilder(fn)
			cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 8, 4), in)
			b.CreateReturn(b.CreateExtractStridedSlice(cast, []int{2, 0}, []int{3, 4}, []int{1, 1}))
			return fn
		}},
		{"extract_then_slice", func(ctx *vir.Context) *vir.Func {
			fn := vir.NewFunc(ctx, "shrink_chain")
			in := fn.AddArg(ctx.Vector(dtypes.Int32, 2, 4, 8))
			b := vir.NewBuilder(fn)
			cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 2, 4, 4), in)
			row := b.CreateExtract(cast, []int{1})
			b.CreateReturn(b.CreateExtractStridedSlice(row, []int{0, 0}, []int{2, 4}, []int{1, 1}))
			return fn
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := vir.NewContext()
			fn := c.build(ctx)
			before := bitCastElements(fn)
			applyBubbling(t, fn, ctx)
			if after := bitCastElements(fn); after >= before {
				t.Errorf("bitcast elements %d -> %d, want a decrease:\n%s", before, after, fn)
			}
		})
	}
}

// TestBubbleBitCastBlockedByPartialInnerDim checks that slicing into the
// innermost dimension pins the bitcast in place.
func TestBubbleBitCastBlockedByPartialInnerDim(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "bubble_blocked")
	in := fn.AddArg(ctx.Vector(dtypes.Int32, 4, 8))
	b := vir.NewBuilder(fn)
	cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 4, 4), in)
	b.CreateReturn(b.CreateExtractStridedSlice(cast, []int{0, 0}, []int{2, 2}, []int{1, 1}))

	before := fn.String()
	applyBubbling(t, fn, ctx)
	if got := fn.String(); got != before {
		t.Errorf("bubbling changed a pinned bitcast:\nbefore:\n%s\nafter:\n%s", before, got)
	}
}

// TestBubbleBitCastIdempotent reapplies the patterns to an already
// bubbled function and expects no further changes.
func TestBubbleBitCastIdempotent(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "bubble_twice")
	in := fn.AddArg(ctx.Vector(dtypes.Int32, 2, 4))
	b := vir.NewBuilder(fn)
	cast := b.CreateBitCast(ctx.Vector(dtypes.Int64, 2, 2), in)
	b.CreateReturn(b.CreateExtract(cast, []int{1}))

	applyBubbling(t, fn, ctx)
	stable := fn.String()
	applyBubbling(t, fn, ctx)
	if got := fn.String(); got != stable {
		t.Errorf("second application changed the function:\nfirst:\n%s\nsecond:\n%s", stable, got)
	}
}
