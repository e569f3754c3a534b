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

func TestOptionsSettersCopy(t *testing.T) {
	base := Options{}
	modified := base.WithContractLowering(ContractMatmul).
		WithTransposeLowering(TransposeFlat2D).
		WithTransferSplit(TransferSplitCopyFallback)
	if base != (Options{}) {
		t.Errorf("base options mutated: %+v", base)
	}
	want := Options{Contract: ContractMatmul, Transpose: TransposeFlat2D, Split: TransferSplitCopyFallback}
	if modified != want {
		t.Errorf("modified = %+v, want %+v", modified, want)
	}
}

func TestStrategyStringRoundTrip(t *testing.T) {
	for _, l := range []ContractLowering{ContractDot, ContractMatmul, ContractOuterProduct} {
		got, err := ParseContractLowering(l.String())
		if err != nil || got != l {
			t.Errorf("ParseContractLowering(%q) = %v, %v; want %v", l.String(), got, err, l)
		}
	}
	for _, l := range []TransposeLowering{TransposeEltWise, TransposeFlat2D} {
		got, err := ParseTransposeLowering(l.String())
		if err != nil || got != l {
			t.Errorf("ParseTransposeLowering(%q) = %v, %v; want %v", l.String(), got, err, l)
		}
	}
	for _, s := range []TransferSplit{TransferSplitNone, TransferSplitMask, TransferSplitCopyFallback, TransferSplitForceUnmasked} {
		got, err := ParseTransferSplit(s.String())
		if err != nil || got != s {
			t.Errorf("ParseTransferSplit(%q) = %v, %v; want %v", s.String(), got, err, s)
		}
	}
	if _, err := ParseContractLowering("vertical"); err == nil {
		t.Error("ParseContractLowering accepted an unknown strategy")
	}
	if _, err := ParseTransposeLowering(""); err == nil {
		t.Error("ParseTransposeLowering accepted an empty strategy")
	}
	if _, err := ParseTransferSplit("maybe"); err == nil {
		t.Error("ParseTransferSplit accepted an unknown strategy")
	}
}

// TestNativeOptionsValid only pins the invariants that hold on any host:
// the selected strategies must round-trip through their string forms.
func TestNativeOptionsValid(t *testing.T) {
	opts := NativeOptions()
	if _, err := ParseContractLowering(opts.Contract.String()); err != nil {
		t.Errorf("native contract strategy %v: %v", opts.Contract, err)
	}
	if _, err := ParseTransposeLowering(opts.Transpose.String()); err != nil {
		t.Errorf("native transpose strategy %v: %v", opts.Transpose, err)
	}
	if _, err := ParseTransferSplit(opts.Split.String()); err != nil {
		t.Errorf("native split strategy %v: %v", opts.Split, err)
	}
}

// TestExcludePredicateBlocksRewrites registers every family with an
// exclude-all predicate and expects the program to pass through intact.
func TestExcludePredicateBlocksRewrites(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "excluded")
	in := fn.AddArg(ctx.Vector(dtypes.Float32, 2, 3))
	b := vir.NewBuilder(fn)
	b.CreateReturn(b.CreateTranspose(in, []int{1, 0}))
	before := fn.String()

	var ps rewrite.PatternSet
	PopulateAllLoweringPatterns(&ps, ctx, Options{}, func(*vir.Operation) bool { return true })
	converged, err := rewrite.Apply(fn, &ps)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !converged {
		t.Fatalf("Apply did not converge:\n%s", fn)
	}
	if got := fn.String(); got != before {
		t.Errorf("excluded patterns still rewrote:\nbefore:\n%s\nafter:\n%s", before, got)
	}
}

// TestPrimitiveProgramIsFixedPoint runs the full pattern set over a
// program already made of primitives and expects no change.
func TestPrimitiveProgramIsFixedPoint(t *testing.T) {
	ctx := vir.NewContext()
	fn := vir.NewFunc(ctx, "primitives")
	a := fn.AddArg(ctx.Vector(dtypes.Float32, 4))
	x := fn.AddArg(ctx.Vector(dtypes.Float32, 4))
	acc := fn.AddArg(ctx.Scalar(dtypes.Float32))
	b := vir.NewBuilder(fn)
	b.CreateReturn(b.CreateReduction(vir.CombiningAdd, b.CreateMul(a, x), acc))
	before := fn.NumOps()

	applyAll(t, fn, ctx, Options{}.WithContractLowering(ContractMatmul))
	if got := fn.NumOps(); got != before {
		t.Errorf("NumOps = %d after lowering a primitive-only program, want %d:\n%s", got, before, fn)
	}
}
