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

// maskedReadFunc reads vector<4xf32> from a memref<10xf32> at a fixed
// offset with padding -1 and doubles it.
func maskedReadFunc(ctx *vir.Context, off int) func() *vir.Func {
	return func() *vir.Func {
		fn := vir.NewFunc(ctx, "masked_read")
		mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 10))
		b := vir.NewBuilder(fn)
		idx := b.CreateConstIndex(off)
		pad := b.CreateConstant(ctx.Scalar(dtypes.Float32), -1.0)
		v := b.CreateTransferRead(ctx.Vector(dtypes.Float32, 4), mem, []*vir.Value{idx}, pad, true)
		b.CreateReturn(b.CreateCombine(vir.CombiningAdd, v, v))
		return fn
	}
}

// maskedCopyFunc moves vector<4xf32> from one offset of a memref<10xf32>
// to another, both sides masked, so the buffer mutation is observable.
func maskedCopyFunc(ctx *vir.Context, readOff, writeOff int) func() *vir.Func {
	return func() *vir.Func {
		fn := vir.NewFunc(ctx, "masked_copy")
		mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 10))
		b := vir.NewBuilder(fn)
		rIdx := b.CreateConstIndex(readOff)
		wIdx := b.CreateConstIndex(writeOff)
		pad := b.CreateConstant(ctx.Scalar(dtypes.Float32), 0.0)
		v := b.CreateTransferRead(ctx.Vector(dtypes.Float32, 4), mem, []*vir.Value{rIdx}, pad, true)
		b.CreateTransferWrite(v, mem, []*vir.Value{wIdx}, true)
		b.CreateReturn()
		return fn
	}
}

// unguardedMaskedTransfers counts masked transfers that did not come out
// of a split, i.e. ones still on an unconditional path.
func unguardedMaskedTransfers(fn *vir.Func) int {
	n := 0
	fn.Walk(func(op *vir.Operation) bool {
		switch op.Kind {
		case vir.OpTransferRead, vir.OpTransferWrite:
			if op.BoolAttr("masked") && !op.BoolAttr("split") {
				n++
			}
		}
		return true
	})
	return n
}

// TestTransferSplitEquivalence runs the mask and copy-fallback splits on
// in-bounds and out-of-bounds offsets and checks values and final buffer
// state against the unsplit program.
func TestTransferSplitEquivalence(t *testing.T) {
	offsets := []struct {
		name              string
		readOff, writeOff int
	}{
		{"in_bounds", 2, 6},
		{"read_oob", 8, 0},
		{"write_oob", 0, 8},
		{"both_oob", 7, 9},
	}
	for _, strat := range []TransferSplit{TransferSplitMask, TransferSplitCopyFallback} {
		for _, c := range offsets {
			t.Run(strat.String()+"/"+c.name, func(t *testing.T) {
				ctx := vir.NewContext()
				opts := Options{}.WithTransferSplit(strat)

				args := []*eval.Tensor{seqTensor(dtypes.Float32, 10)}
				fn := checkEquivalence(t, ctx, maskedReadFunc(ctx, c.readOff), opts, args)
				if got := unguardedMaskedTransfers(fn); got != 0 {
					t.Errorf("%d unguarded masked transfers after read split:\n%s", got, fn)
				}

				args = []*eval.Tensor{seqTensor(dtypes.Float32, 10)}
				fn = checkEquivalence(t, ctx, maskedCopyFunc(ctx, c.readOff, c.writeOff), opts, args)
				if got := unguardedMaskedTransfers(fn); got != 0 {
					t.Errorf("%d unguarded masked transfers after write split:\n%s", got, fn)
				}
			})
		}
	}
}

// maskedReadRowFunc reads vector<4xf32> from a row of a memref<2x8xf32>
// with padding -1 and doubles it. The vector covers only the trailing
// dimension, so the row index alone can put the access out of bounds.
func maskedReadRowFunc(ctx *vir.Context, row, col int) func() *vir.Func {
	return func() *vir.Func {
		fn := vir.NewFunc(ctx, "masked_read_row")
		mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 2, 8))
		b := vir.NewBuilder(fn)
		indices := []*vir.Value{b.CreateConstIndex(row), b.CreateConstIndex(col)}
		pad := b.CreateConstant(ctx.Scalar(dtypes.Float32), -1.0)
		v := b.CreateTransferRead(ctx.Vector(dtypes.Float32, 4), mem, indices, pad, true)
		b.CreateReturn(b.CreateCombine(vir.CombiningAdd, v, v))
		return fn
	}
}

// maskedWriteRowFunc writes a broadcast vector<4xf32> into a row of a
// memref<2x8xf32>, masked.
func maskedWriteRowFunc(ctx *vir.Context, row, col int) func() *vir.Func {
	return func() *vir.Func {
		fn := vir.NewFunc(ctx, "masked_write_row")
		mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 2, 8))
		b := vir.NewBuilder(fn)
		indices := []*vir.Value{b.CreateConstIndex(row), b.CreateConstIndex(col)}
		v := b.CreateBroadcast(ctx.Vector(dtypes.Float32, 4), b.CreateConstant(ctx.Scalar(dtypes.Float32), 9.0))
		b.CreateTransferWrite(v, mem, indices, true)
		b.CreateReturn()
		return fn
	}
}

// TestTransferSplitRankReduced checks that splitting a transfer whose
// vector covers fewer dimensions than the memref still guards the
// leading indices: a bad row index must take the slow path even when
// the column span fits.
func TestTransferSplitRankReduced(t *testing.T) {
	offsets := []struct {
		name     string
		row, col int
	}{
		{"in_bounds", 1, 2},
		{"row_oob", 5, 0},
		{"col_oob", 0, 6},
		{"row_and_col_oob", 3, 7},
	}
	for _, strat := range []TransferSplit{TransferSplitMask, TransferSplitCopyFallback} {
		for _, c := range offsets {
			t.Run(strat.String()+"/"+c.name, func(t *testing.T) {
				ctx := vir.NewContext()
				opts := Options{}.WithTransferSplit(strat)

				args := []*eval.Tensor{seqTensor(dtypes.Float32, 2, 8)}
				fn := checkEquivalence(t, ctx, maskedReadRowFunc(ctx, c.row, c.col), opts, args)
				if got := unguardedMaskedTransfers(fn); got != 0 {
					t.Errorf("%d unguarded masked transfers after read split:\n%s", got, fn)
				}

				args = []*eval.Tensor{seqTensor(dtypes.Float32, 2, 8)}
				fn = checkEquivalence(t, ctx, maskedWriteRowFunc(ctx, c.row, c.col), opts, args)
				if got := unguardedMaskedTransfers(fn); got != 0 {
					t.Errorf("%d unguarded masked transfers after write split:\n%s", got, fn)
				}
			})
		}
	}
}

// TestTransferForceUnmasked checks that the force-unmasked strategy strips
// masking outright. Only in-bounds offsets are legal under it, so the
// equivalence run stays in bounds.
func TestTransferForceUnmasked(t *testing.T) {
	ctx := vir.NewContext()
	opts := Options{}.WithTransferSplit(TransferSplitForceUnmasked)

	args := []*eval.Tensor{seqTensor(dtypes.Float32, 10)}
	fn := checkEquivalence(t, ctx, maskedCopyFunc(ctx, 1, 5), opts, args)
	fn.Walk(func(op *vir.Operation) bool {
		switch op.Kind {
		case vir.OpTransferRead, vir.OpTransferWrite:
			if op.BoolAttr("masked") {
				t.Errorf("masked transfer survived force-unmasked:\n%s", fn)
			}
		case vir.OpIf:
			t.Errorf("force-unmasked introduced a conditional:\n%s", fn)
		}
		return true
	})
}

// TestTransferUnmaskedToPrimitives checks that unmasked transfers end up
// as raw loads and stores.
func TestTransferUnmaskedToPrimitives(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "unmasked")
	mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 10))
	b := vir.NewBuilder(fn)
	idx := b.CreateConstIndex(2)
	pad := b.CreateConstant(ctx.Scalar(dtypes.Float32), 0.0)
	v := b.CreateTransferRead(ctx.Vector(dtypes.Float32, 4), mem, []*vir.Value{idx}, pad, false)
	b.CreateTransferWrite(v, mem, []*vir.Value{b.CreateConstIndex(6)}, false)
	b.CreateReturn()

	applyAll(t, fn, ctx, Options{})
	if got := fn.CountKind(vir.OpTransferRead) + fn.CountKind(vir.OpTransferWrite); got != 0 {
		t.Errorf("%d transfers survived lowering:\n%s", got, fn)
	}
	if fn.CountKind(vir.OpLoad) != 1 || fn.CountKind(vir.OpStore) != 1 {
		t.Errorf("expected one load and one store:\n%s", fn)
	}
}
