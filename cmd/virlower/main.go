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

// Command virlower prints a demo program before and after progressive
// lowering, under a selectable strategy configuration.
//
// Usage:
//
//	virlower -demo contract -contract outerproduct
//	virlower -demo transfer -split mask
//	virlower -demo transpose -transpose flat
//	virlower -demo slices
//	virlower -demo bitcast
//	virlower -native            # strategies picked from the host CPU
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/vectir/vectir/lower"
	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

var (
	demo         = flag.String("demo", "contract", "Demo program (contract, transpose, transfer, slices, bitcast)")
	contractFlag = flag.String("contract", "dot", "Contraction strategy (dot, matmul, outerproduct)")
	transpose    = flag.String("transpose", "eltwise", "Transpose strategy (eltwise, flat)")
	split        = flag.String("split", "none", "Transfer split strategy (none, mask, copy, force-unmasked)")
	native       = flag.Bool("native", false, "Derive strategies from the host CPU, overriding the strategy flags")
	maxIters     = flag.Int("max-iterations", 0, "Fixed-point iteration cap (0 uses the default)")
)

func main() {
	flag.Parse()

	opts, err := parseOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx := vir.NewContext()
	fn, err := buildDemo(ctx, *demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("// before")
	fmt.Println(fn)

	var ps rewrite.PatternSet
	lower.PopulateAllLoweringPatterns(&ps, ctx, opts, nil)
	lower.PopulateTransferLoweringPatterns(&ps, ctx, nil)

	var applyOpts []rewrite.ApplyOption
	if *maxIters > 0 {
		applyOpts = append(applyOpts, rewrite.WithMaxIterations(*maxIters))
	}
	converged, err := rewrite.Apply(fn, &ps, applyOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !converged {
		fmt.Fprintln(os.Stderr, "Warning: iteration cap reached before a fixed point")
	}

	fmt.Println("// after")
	fmt.Println(fn)
}

func parseOptions() (lower.Options, error) {
	if *native {
		return lower.NativeOptions(), nil
	}
	var opts lower.Options
	c, err := lower.ParseContractLowering(*contractFlag)
	if err != nil {
		return opts, err
	}
	t, err := lower.ParseTransposeLowering(*transpose)
	if err != nil {
		return opts, err
	}
	s, err := lower.ParseTransferSplit(*split)
	if err != nil {
		return opts, err
	}
	return opts.WithContractLowering(c).WithTransposeLowering(t).WithTransferSplit(s), nil
}

func buildDemo(ctx *vir.Context, name string) (*vir.Func, error) {
	switch name {
	case "contract":
		return demoContract(ctx), nil
	case "transpose":
		return demoTranspose(ctx), nil
	case "transfer":
		return demoTransfer(ctx), nil
	case "slices":
		return demoSlices(ctx), nil
	case "bitcast":
		return demoBitCast(ctx), nil
	default:
		return nil, fmt.Errorf("unknown demo %q", name)
	}
}

// demoContract is a 2x4 * 4x3 matrix product with additive
// accumulation.
func demoContract(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, "matmul_2x4x3")
	lhs := fn.AddArg(ctx.Vector(dtypes.Float32, 2, 4))
	rhs := fn.AddArg(ctx.Vector(dtypes.Float32, 4, 3))
	acc := fn.AddArg(ctx.Vector(dtypes.Float32, 2, 3))
	b := vir.NewBuilder(fn)
	res := b.CreateContract(lhs, rhs, acc,
		vir.IndexMap{0, 2}, vir.IndexMap{2, 1}, vir.IndexMap{0, 1}, vir.CombiningAdd)
	b.CreateReturn(res)
	return fn
}

// demoTranspose swaps the dimensions of a 2x3 vector.
func demoTranspose(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, "transpose_2x3")
	in := fn.AddArg(ctx.Vector(dtypes.Float32, 2, 3))
	b := vir.NewBuilder(fn)
	b.CreateReturn(b.CreateTranspose(in, []int{1, 0}))
	return fn
}

// demoTransfer reads a masked 4-vector at a runtime offset, doubles it
// and writes it back masked.
func demoTransfer(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, "saxpy_edge")
	mem := fn.AddArg(ctx.MemRef(dtypes.Float32, 10))
	off := fn.AddArg(ctx.Index())
	b := vir.NewBuilder(fn)
	vt := ctx.Vector(dtypes.Float32, 4)
	pad := b.CreateConstant(ctx.Scalar(dtypes.Float32), float64(0))
	v := b.CreateTransferRead(vt, mem, []*vir.Value{off}, pad, true)
	doubled := b.CreateCombine(vir.CombiningAdd, v, v)
	b.CreateTransferWrite(doubled, mem, []*vir.Value{off}, true)
	b.CreateReturn()
	return fn
}

// demoSlices tiles a 4x4 vector into 2x2 blocks and reassembles it.
func demoSlices(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, "retile_4x4")
	in := fn.AddArg(ctx.Vector(dtypes.Float32, 4, 4))
	b := vir.NewBuilder(fn)
	sizes := []int{2, 2}
	strides := []int{1, 1}
	tiles := b.CreateExtractSlices(in, sizes, strides)
	out := b.CreateInsertSlices(in.VectorType(), tiles, sizes, strides)
	b.CreateReturn(out)
	return fn
}

// demoBitCast extracts a row out of a widened reinterpretation.
func demoBitCast(ctx *vir.Context) *vir.Func {
	fn := vir.NewFunc(ctx, "reinterpret_row")
	in := fn.AddArg(ctx.Vector(dtypes.Int32, 2, 4))
	b := vir.NewBuilder(fn)
	wide := b.CreateBitCast(ctx.Vector(dtypes.Int64, 2, 2), in)
	b.CreateReturn(b.CreateExtract(wide, []int{0}))
	return fn
}
