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

// Package eval interprets programs directly, one operation at a time.
// It is the reference semantics the lowerings are tested against: a
// program and its lowered form must evaluate to the same values.
package eval

import (
	"math"

	"github.com/pkg/errors"

	"github.com/vectir/vectir/vir"
)

// machine binds program values to tensors while a function runs.
type machine struct {
	env map[*vir.Value]any // *Tensor or []*Tensor for tuples
}

// Run interprets fn over args, one *Tensor per function argument, and
// returns the operands of the return operation. Memref-typed argument
// tensors are written in place; vector and scalar arguments are never
// mutated.
func Run(fn *vir.Func, args []*Tensor) ([]*Tensor, error) {
	if len(args) != len(fn.Args) {
		return nil, errors.Errorf("run %s: %d args for %d parameters", fn.Name, len(args), len(fn.Args))
	}
	m := &machine{env: map[*vir.Value]any{}}
	for i, arg := range fn.Args {
		m.env[arg] = args[i]
	}
	results, returned, err := m.runRegion(&fn.Body)
	if err != nil {
		return nil, errors.WithMessagef(err, "run %s", fn.Name)
	}
	if !returned {
		return nil, errors.Errorf("run %s: missing return", fn.Name)
	}
	return results, nil
}

// runRegion executes ops in order. It returns the terminator's operand
// tensors and whether the terminator was a return (as opposed to a
// yield or a missing terminator).
func (m *machine) runRegion(r *vir.Region) ([]*Tensor, bool, error) {
	for _, op := range r.Ops {
		switch op.Kind {
		case vir.OpReturn, vir.OpYield:
			vals := make([]*Tensor, len(op.Operands))
			for i, v := range op.Operands {
				t, err := m.tensor(v)
				if err != nil {
					return nil, false, err
				}
				vals[i] = t
			}
			return vals, op.Kind == vir.OpReturn, nil
		}
		if err := m.evalOp(op); err != nil {
			return nil, false, errors.WithMessagef(err, "evaluating %s", op.Kind)
		}
	}
	return nil, false, nil
}

func (m *machine) tensor(v *vir.Value) (*Tensor, error) {
	t, ok := m.env[v].(*Tensor)
	if !ok {
		return nil, errors.Errorf("value has no tensor binding")
	}
	return t, nil
}

func (m *machine) tuple(v *vir.Value) ([]*Tensor, error) {
	t, ok := m.env[v].([]*Tensor)
	if !ok {
		return nil, errors.Errorf("value has no tuple binding")
	}
	return t, nil
}

// index reads an index-typed scalar operand.
func (m *machine) index(v *vir.Value) (int, error) {
	t, err := m.tensor(v)
	if err != nil {
		return 0, err
	}
	if t.Rank() != 0 || t.i == nil {
		return 0, errors.Errorf("operand is not an index scalar")
	}
	return int(t.i[0]), nil
}

func (m *machine) indices(vals []*vir.Value) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := m.index(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func combineF(kind vir.CombiningKind, a, x float64) float64 {
	switch kind {
	case vir.CombiningAdd:
		return a + x
	case vir.CombiningMul:
		return a * x
	case vir.CombiningMin:
		return math.Min(a, x)
	case vir.CombiningMax:
		return math.Max(a, x)
	}
	return math.NaN()
}

func combineI(kind vir.CombiningKind, a, x int64) int64 {
	switch kind {
	case vir.CombiningAdd:
		return a + x
	case vir.CombiningMul:
		return a * x
	case vir.CombiningMin:
		if x < a {
			return x
		}
		return a
	case vir.CombiningMax:
		if x > a {
			return x
		}
		return a
	case vir.CombiningAnd:
		return a & x
	case vir.CombiningOr:
		return a | x
	case vir.CombiningXor:
		return a ^ x
	}
	return 0
}

// combineInto folds x into t at off with kind.
func combineInto(kind vir.CombiningKind, t *Tensor, off int, xf float64, xi int64) {
	if t.f != nil {
		t.f[off] = combineF(kind, t.f[off], xf)
	} else {
		t.i[off] = combineI(kind, t.i[off], xi)
	}
}

// advance steps pos through the row-major space bounded by dims. An
// empty space visits the single rank-0 position once.
func advance(pos, dims []int) bool {
	for d := len(pos) - 1; d >= 0; d-- {
		pos[d]++
		if pos[d] < dims[d] {
			return true
		}
		pos[d] = 0
	}
	return false
}

func (m *machine) evalOp(op *vir.Operation) error {
	switch op.Kind {
	case vir.OpConstant:
		t := typeTensor(op.Result(0).Type())
		switch v := op.Attrs["value"].(type) {
		case int64:
			t.i[0] = v
		case float64:
			t.f[0] = v
		}
		m.env[op.Result(0)] = t
		return nil

	case vir.OpDim:
		mem, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		t := typeTensor(op.Result(0).Type())
		t.i[0] = int64(mem.dims[op.IntAttr("index")])
		m.env[op.Result(0)] = t
		return nil

	case vir.OpAddI, vir.OpCmpLE, vir.OpAndI:
		a, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		x, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		t := typeTensor(op.Result(0).Type())
		switch op.Kind {
		case vir.OpAddI:
			t.i[0] = a.i[0] + x.i[0]
		case vir.OpCmpLE:
			if a.i[0] <= x.i[0] {
				t.i[0] = 1
			}
		case vir.OpAndI:
			t.i[0] = a.i[0] & x.i[0]
		}
		m.env[op.Result(0)] = t
		return nil

	case vir.OpContract:
		return m.evalContract(op)

	case vir.OpTranspose:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		perm := op.IntsAttr("permutation")
		res := typeTensor(op.Result(0).Type())
		pos := make([]int, res.Rank())
		srcPos := make([]int, res.Rank())
		for {
			for d, p := range perm {
				srcPos[p] = pos[d]
			}
			f, i := src.get(src.offset(srcPos))
			res.set(res.offset(pos), f, i)
			if !advance(pos, res.dims) {
				break
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpFlatTranspose:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		res := typeTensor(op.Result(0).Type())
		for i := 0; i < src.dims[0]; i++ {
			for j := 0; j < src.dims[1]; j++ {
				f, n := src.get(src.offset([]int{i, j}))
				res.set(res.offset([]int{j, i}), f, n)
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpTransferRead:
		return m.evalTransferRead(op)

	case vir.OpTransferWrite:
		return m.evalTransferWrite(op)

	case vir.OpLoad:
		return m.evalLoad(op)

	case vir.OpStore:
		return m.evalStore(op)

	case vir.OpExtractSlices:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		var parts []*Tensor
		for _, tile := range vir.TileGrid(src.dims, op.IntsAttr("sizes")) {
			parts = append(parts, subBlock(src, tile.Offsets, tile.Sizes))
		}
		m.env[op.Result(0)] = parts
		return nil

	case vir.OpInsertSlices:
		parts, err := m.tuple(op.Operand(0))
		if err != nil {
			return err
		}
		res := typeTensor(op.Result(0).Type())
		for i, tile := range vir.TileGrid(res.dims, op.IntsAttr("sizes")) {
			writeBlock(res, parts[i], tile.Offsets)
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpTuple:
		parts := make([]*Tensor, len(op.Operands))
		for i, v := range op.Operands {
			t, err := m.tensor(v)
			if err != nil {
				return err
			}
			parts[i] = t
		}
		m.env[op.Result(0)] = parts
		return nil

	case vir.OpTupleGet:
		parts, err := m.tuple(op.Operand(0))
		if err != nil {
			return err
		}
		m.env[op.Result(0)] = parts[op.IntAttr("index")]
		return nil

	case vir.OpBitCast:
		// Reinterpreting lane bits needs a typed byte representation
		// this interpreter does not keep. Lower bitcasts away first.
		return errors.Errorf("bitcast is not evaluable")

	case vir.OpShapeCast:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		res := src.Clone()
		res.dims = append([]int(nil), op.Result(0).VectorType().Dims()...)
		m.env[op.Result(0)] = res
		return nil

	case vir.OpExtract:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		pos := op.IntsAttr("position")
		sizes := make([]int, len(src.dims))
		for d := range sizes {
			sizes[d] = 1
			if d >= len(pos) {
				sizes[d] = src.dims[d]
			}
		}
		offsets := append(append([]int(nil), pos...), make([]int, len(src.dims)-len(pos))...)
		block := subBlock(src, offsets, sizes)
		block.dims = append([]int(nil), src.dims[len(pos):]...)
		m.env[op.Result(0)] = block
		return nil

	case vir.OpInsert:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		dst, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		pos := op.IntsAttr("position")
		res := dst.Clone()
		block := src.Clone()
		block.dims = append(onesPrefix(len(pos)), src.dims...)
		offsets := append(append([]int(nil), pos...), make([]int, res.Rank()-len(pos))...)
		writeBlock(res, block, offsets)
		m.env[op.Result(0)] = res
		return nil

	case vir.OpExtractStridedSlice:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		m.env[op.Result(0)] = subBlock(src, op.IntsAttr("offsets"), op.IntsAttr("sizes"))
		return nil

	case vir.OpInsertStridedSlice:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		dst, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		res := dst.Clone()
		writeBlock(res, src, op.IntsAttr("offsets"))
		m.env[op.Result(0)] = res
		return nil

	case vir.OpBroadcast:
		src, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		res := typeTensor(op.Result(0).Type())
		lead := res.Rank() - src.Rank()
		pos := make([]int, res.Rank())
		for {
			f, i := src.get(src.offset(pos[lead:]))
			res.set(res.offset(pos), f, i)
			if !advance(pos, res.dims) {
				break
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpMul:
		a, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		x, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		res := a.Clone()
		for off := 0; off < res.NumElements(); off++ {
			if res.f != nil {
				res.f[off] *= x.f[off]
			} else {
				res.i[off] *= x.i[off]
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpCombine:
		a, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		x, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		kind := op.KindAttr("kind")
		if !kind.SupportsDType(a.dtype) {
			return errors.Errorf("%s does not support %s", kind, a.dtype)
		}
		res := a.Clone()
		for off := 0; off < res.NumElements(); off++ {
			xf, xi := x.get(off)
			combineInto(kind, res, off, xf, xi)
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpReduction:
		vec, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		kind := op.KindAttr("kind")
		if !kind.SupportsDType(vec.dtype) {
			return errors.Errorf("%s does not support %s", kind, vec.dtype)
		}
		res := NewTensor(vec.dtype)
		f, i := vec.get(0)
		res.set(0, f, i)
		for off := 1; off < vec.NumElements(); off++ {
			xf, xi := vec.get(off)
			combineInto(kind, res, 0, xf, xi)
		}
		if len(op.Operands) == 2 {
			acc, err := m.tensor(op.Operand(1))
			if err != nil {
				return err
			}
			folded := acc.Clone()
			xf, xi := res.get(0)
			combineInto(kind, folded, 0, xf, xi)
			res = folded
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpOuterProduct:
		lhs, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		rhs, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		acc, err := m.tensor(op.Operand(2))
		if err != nil {
			return err
		}
		kind := op.KindAttr("kind")
		if !kind.SupportsDType(acc.dtype) {
			return errors.Errorf("%s does not support %s", kind, acc.dtype)
		}
		res := acc.Clone()
		for i := 0; i < lhs.dims[0]; i++ {
			for j := 0; j < rhs.dims[0]; j++ {
				off := res.offset([]int{i, j})
				lf, li := lhs.get(i)
				rf, ri := rhs.get(j)
				combineInto(kind, res, off, lf*rf, li*ri)
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpMatmul:
		lhs, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		rhs, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		res := typeTensor(op.Result(0).Type())
		for i := 0; i < lhs.dims[0]; i++ {
			for j := 0; j < rhs.dims[1]; j++ {
				off := res.offset([]int{i, j})
				for k := 0; k < lhs.dims[1]; k++ {
					lf, li := lhs.get(lhs.offset([]int{i, k}))
					rf, ri := rhs.get(rhs.offset([]int{k, j}))
					combineInto(vir.CombiningAdd, res, off, lf*rf, li*ri)
				}
			}
		}
		m.env[op.Result(0)] = res
		return nil

	case vir.OpAlloc:
		m.env[op.Result(0)] = typeTensor(op.Result(0).Type())
		return nil

	case vir.OpFill:
		mem, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		value, err := m.tensor(op.Operand(1))
		if err != nil {
			return err
		}
		mem.fillFrom(value)
		return nil

	case vir.OpCopyIn:
		return m.evalCopyIn(op)

	case vir.OpCopyOut:
		return m.evalCopyOut(op)

	case vir.OpIf:
		cond, err := m.tensor(op.Operand(0))
		if err != nil {
			return err
		}
		region := op.Else
		if cond.i[0] != 0 {
			region = op.Then
		}
		vals, returned, err := m.runRegion(region)
		if err != nil {
			return err
		}
		if returned {
			return errors.Errorf("return inside a conditional region")
		}
		if len(vals) != len(op.Results) {
			return errors.Errorf("conditional yielded %d values for %d results", len(vals), len(op.Results))
		}
		for i, v := range vals {
			m.env[op.Results[i]] = v
		}
		return nil

	default:
		return errors.Errorf("%s is not evaluable", op.Kind)
	}
}

// typeTensor allocates a zero tensor shaped like t. Memref and vector
// types carry dims, scalars do not.
func typeTensor(t vir.Type) *Tensor {
	switch tt := t.(type) {
	case *vir.ScalarType:
		return NewTensor(tt.DType())
	case *vir.VectorType:
		return NewTensor(tt.DType(), tt.Dims()...)
	case *vir.MemRefType:
		return NewTensor(tt.DType(), tt.Dims()...)
	}
	panic(errors.Errorf("no tensor representation for %s", t))
}

// subBlock copies the block at offsets with the given sizes.
func subBlock(src *Tensor, offsets, sizes []int) *Tensor {
	res := NewTensor(src.dtype, sizes...)
	pos := make([]int, len(sizes))
	srcPos := make([]int, len(sizes))
	for {
		for d := range pos {
			srcPos[d] = offsets[d] + pos[d]
		}
		f, i := src.get(src.offset(srcPos))
		res.set(res.offset(pos), f, i)
		if !advance(pos, sizes) {
			break
		}
	}
	return res
}

// writeBlock writes all of block into dst at offsets. block's rank must
// equal dst's.
func writeBlock(dst, block *Tensor, offsets []int) {
	pos := make([]int, block.Rank())
	dstPos := make([]int, block.Rank())
	for {
		for d := range pos {
			dstPos[d] = offsets[d] + pos[d]
		}
		f, i := block.get(block.offset(pos))
		dst.set(dst.offset(dstPos), f, i)
		if !advance(pos, block.dims) {
			break
		}
	}
}

func (m *machine) evalContract(op *vir.Operation) error {
	lhs, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	rhs, err := m.tensor(op.Operand(1))
	if err != nil {
		return err
	}
	acc, err := m.tensor(op.Operand(2))
	if err != nil {
		return err
	}
	lhsMap := op.MapAttr("lhs_map")
	rhsMap := op.MapAttr("rhs_map")
	accMap := op.MapAttr("acc_map")
	kind := op.KindAttr("kind")
	if !kind.SupportsDType(acc.dtype) {
		return errors.Errorf("%s does not support %s", kind, acc.dtype)
	}

	numIters := 0
	for _, mp := range []vir.IndexMap{lhsMap, rhsMap, accMap} {
		for _, it := range mp {
			if it >= numIters {
				numIters = it + 1
			}
		}
	}
	extents := make([]int, numIters)
	for it := range extents {
		extents[it] = 1
		for _, side := range []struct {
			mp vir.IndexMap
			t  *Tensor
		}{{lhsMap, lhs}, {rhsMap, rhs}, {accMap, acc}} {
			if p := side.mp.PositionOf(it); p >= 0 {
				extents[it] = side.t.dims[p]
			}
		}
	}
	var contracted []int
	for it := 0; it < numIters; it++ {
		if accMap.PositionOf(it) < 0 {
			contracted = append(contracted, it)
		}
	}
	contractedDims := make([]int, len(contracted))
	for i, it := range contracted {
		contractedDims[i] = extents[it]
	}

	res := acc.Clone()
	iter := make([]int, numIters)
	project := func(mp vir.IndexMap, t *Tensor) int {
		idx := make([]int, len(mp))
		for d, it := range mp {
			idx[d] = iter[it]
		}
		return t.offset(idx)
	}
	accPos := make([]int, len(accMap))
	for {
		// One accumulator element: reduce the product over the
		// contracted space, then fold into the accumulator with kind.
		cpos := make([]int, len(contracted))
		first := true
		var redF float64
		var redI int64
		for {
			for i, it := range contracted {
				iter[it] = cpos[i]
			}
			lf, li := lhs.get(project(lhsMap, lhs))
			rf, ri := rhs.get(project(rhsMap, rhs))
			pf, pi := lf*rf, li*ri
			if first {
				redF, redI = pf, pi
				first = false
			} else if res.f != nil {
				redF = combineF(kind, redF, pf)
			} else {
				redI = combineI(kind, redI, pi)
			}
			if !advance(cpos, contractedDims) {
				break
			}
		}
		combineInto(kind, res, res.offset(iterProject(accMap, iter, accPos)), redF, redI)
		if !advanceIters(iter, extents, accMap) {
			break
		}
	}
	m.env[op.Result(0)] = res
	return nil
}

func iterProject(mp vir.IndexMap, iter, out []int) []int {
	for d, it := range mp {
		out[d] = iter[it]
	}
	return out
}

// advanceIters odometer-steps only the iterators accMap reads; the
// contracted iterators are swept by the inner loop.
func advanceIters(iter, extents []int, accMap vir.IndexMap) bool {
	for d := len(accMap) - 1; d >= 0; d-- {
		it := accMap[d]
		iter[it]++
		if iter[it] < extents[it] {
			return true
		}
		iter[it] = 0
	}
	return false
}

// evalTransferRead reads one element per vector position: the base
// indices plus the vector offset over the trailing memref dimensions.
func (m *machine) evalTransferRead(op *vir.Operation) error {
	mem, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[1 : 1+mem.Rank()])
	if err != nil {
		return err
	}
	padding, err := m.tensor(op.Operand(1 + mem.Rank()))
	if err != nil {
		return err
	}
	masked := op.BoolAttr("masked")
	res := typeTensor(op.Result(0).Type())
	lead := mem.Rank() - res.Rank()
	pos := make([]int, res.Rank())
	memPos := make([]int, mem.Rank())
	for {
		copy(memPos, base)
		for d := range pos {
			memPos[lead+d] = base[lead+d] + pos[d]
		}
		if mem.inBounds(memPos) {
			f, i := mem.get(mem.offset(memPos))
			res.set(res.offset(pos), f, i)
		} else if masked {
			f, i := padding.get(0)
			res.set(res.offset(pos), f, i)
		} else {
			return errors.Errorf("unmasked read at %v is out of bounds for %v", memPos, mem.dims)
		}
		if !advance(pos, res.dims) {
			break
		}
	}
	m.env[op.Result(0)] = res
	return nil
}

func (m *machine) evalTransferWrite(op *vir.Operation) error {
	vec, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	mem, err := m.tensor(op.Operand(1))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[2:])
	if err != nil {
		return err
	}
	masked := op.BoolAttr("masked")
	lead := mem.Rank() - vec.Rank()
	pos := make([]int, vec.Rank())
	memPos := make([]int, mem.Rank())
	for {
		copy(memPos, base)
		for d := range pos {
			memPos[lead+d] = base[lead+d] + pos[d]
		}
		if mem.inBounds(memPos) {
			f, i := vec.get(vec.offset(pos))
			mem.set(mem.offset(memPos), f, i)
		} else if !masked {
			return errors.Errorf("unmasked write at %v is out of bounds for %v", memPos, mem.dims)
		}
		if !advance(pos, vec.dims) {
			break
		}
	}
	return nil
}

func (m *machine) evalLoad(op *vir.Operation) error {
	mem, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[1:])
	if err != nil {
		return err
	}
	res := typeTensor(op.Result(0).Type())
	lead := mem.Rank() - res.Rank()
	pos := make([]int, res.Rank())
	memPos := make([]int, mem.Rank())
	for {
		copy(memPos, base)
		for d := range pos {
			memPos[lead+d] = base[lead+d] + pos[d]
		}
		if !mem.inBounds(memPos) {
			return errors.Errorf("load at %v is out of bounds for %v", memPos, mem.dims)
		}
		f, i := mem.get(mem.offset(memPos))
		res.set(res.offset(pos), f, i)
		if !advance(pos, res.dims) {
			break
		}
	}
	m.env[op.Result(0)] = res
	return nil
}

func (m *machine) evalStore(op *vir.Operation) error {
	vec, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	mem, err := m.tensor(op.Operand(1))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[2:])
	if err != nil {
		return err
	}
	lead := mem.Rank() - vec.Rank()
	pos := make([]int, vec.Rank())
	memPos := make([]int, mem.Rank())
	for {
		copy(memPos, base)
		for d := range pos {
			memPos[lead+d] = base[lead+d] + pos[d]
		}
		if !mem.inBounds(memPos) {
			return errors.Errorf("store at %v is out of bounds for %v", memPos, mem.dims)
		}
		f, i := vec.get(vec.offset(pos))
		mem.set(mem.offset(memPos), f, i)
		if !advance(pos, vec.dims) {
			break
		}
	}
	return nil
}

// evalCopyIn fills dst from src starting at base, clamped to src's
// bounds: out-of-range elements keep dst's prior contents.
func (m *machine) evalCopyIn(op *vir.Operation) error {
	src, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	dst, err := m.tensor(op.Operand(1))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[2:])
	if err != nil {
		return err
	}
	lead := src.Rank() - dst.Rank()
	pos := make([]int, dst.Rank())
	srcPos := make([]int, src.Rank())
	for {
		copy(srcPos, base)
		for d := range pos {
			srcPos[lead+d] = base[lead+d] + pos[d]
		}
		if src.inBounds(srcPos) {
			f, i := src.get(src.offset(srcPos))
			dst.set(dst.offset(pos), f, i)
		}
		if !advance(pos, dst.dims) {
			break
		}
	}
	return nil
}

// evalCopyOut writes all of src into dst starting at base, clamped to
// dst's bounds.
func (m *machine) evalCopyOut(op *vir.Operation) error {
	src, err := m.tensor(op.Operand(0))
	if err != nil {
		return err
	}
	dst, err := m.tensor(op.Operand(1))
	if err != nil {
		return err
	}
	base, err := m.indices(op.Operands[2:])
	if err != nil {
		return err
	}
	lead := dst.Rank() - src.Rank()
	pos := make([]int, src.Rank())
	dstPos := make([]int, dst.Rank())
	for {
		copy(dstPos, base)
		for d := range pos {
			dstPos[lead+d] = base[lead+d] + pos[d]
		}
		if dst.inBounds(dstPos) {
			f, i := src.get(src.offset(pos))
			dst.set(dst.offset(dstPos), f, i)
		}
		if !advance(pos, src.dims) {
			break
		}
	}
	return nil
}

func onesPrefix(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
