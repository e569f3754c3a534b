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
	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

// applyAll lowers fn in place with every pattern family under opts and
// fails the test if the driver errors or misses the fixed point.
func applyAll(t *testing.T, fn *vir.Func, ctx *vir.Context, opts Options) {
	t.Helper()
	var ps rewrite.PatternSet
	PopulateAllLoweringPatterns(&ps, ctx, opts, nil)
	PopulateTransferLoweringPatterns(&ps, ctx, nil)
	converged, err := rewrite.Apply(fn, &ps)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !converged {
		t.Fatalf("Apply did not reach a fixed point:\n%s", fn)
	}
}

// seqTensor fills a tensor with small integer-valued data, so float
// results compare exactly regardless of reduction order.
func seqTensor(dtype dtypes.DType, dims ...int) *eval.Tensor {
	t := eval.NewTensor(dtype, dims...)
	if f := t.Floats(); f != nil {
		for i := range f {
			f[i] = float64(i%7 + 1)
		}
	} else {
		for i := range t.Ints() {
			t.Ints()[i] = int64(i%5 + 1)
		}
	}
	return t
}

// runOrFail evaluates fn over fresh copies of args and returns the
// results plus the argument copies, so callers can inspect memref
// buffers the program wrote.
func runOrFail(t *testing.T, fn *vir.Func, args []*eval.Tensor) ([]*eval.Tensor, []*eval.Tensor) {
	t.Helper()
	copies := make([]*eval.Tensor, len(args))
	for i, a := range args {
		copies[i] = a.Clone()
	}
	out, err := eval.Run(fn, copies)
	if err != nil {
		t.Fatalf("Run(%s): %v\n%s", fn.Name, err, fn)
	}
	return out, copies
}

// sameTensor compares dtype, shape and every lane.
func sameTensor(a, b *eval.Tensor) bool {
	if a.DType() != b.DType() || a.Rank() != b.Rank() {
		return false
	}
	for d := range a.Dims() {
		if a.Dims()[d] != b.Dims()[d] {
			return false
		}
	}
	if a.Floats() != nil {
		for i, v := range a.Floats() {
			if b.Floats()[i] != v {
				return false
			}
		}
		return true
	}
	for i, v := range a.Ints() {
		if b.Ints()[i] != v {
			return false
		}
	}
	return true
}

// checkEquivalence builds the program twice, lowers one copy and
// verifies both evaluate identically over args.
func checkEquivalence(t *testing.T, ctx *vir.Context, build func() *vir.Func, opts Options, args []*eval.Tensor) *vir.Func {
	t.Helper()
	reference := build()
	want, wantArgs := runOrFail(t, reference, args)

	fn := build()
	applyAll(t, fn, ctx, opts)
	got, gotArgs := runOrFail(t, fn, args)

	if len(got) != len(want) {
		t.Fatalf("lowered %s returned %d values, want %d", fn.Name, len(got), len(want))
	}
	for i := range want {
		if !sameTensor(got[i], want[i]) {
			t.Errorf("lowered %s result %d diverges:\ngot  %v %v\nwant %v %v\nlowered:\n%s",
				fn.Name, i, got[i].Floats(), got[i].Ints(), want[i].Floats(), want[i].Ints(), fn)
		}
	}
	for i := range wantArgs {
		if !sameTensor(gotArgs[i], wantArgs[i]) {
			t.Errorf("lowered %s left arg %d in a diverging state:\ngot  %v %v\nwant %v %v\nlowered:\n%s",
				fn.Name, i, gotArgs[i].Floats(), gotArgs[i].Ints(), wantArgs[i].Floats(), wantArgs[i].Ints(), fn)
		}
	}
	return fn
}
