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

package vir

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Builder constructs operations at an insertion point inside a region and
// maintains use lists. Create methods infer result types and panic on
// type mismatches: a mismatch is a programming error in the caller, not a
// program-shape condition (patterns check shapes before building).
type Builder struct {
	fn     *Func
	region *Region
	ip     int // insertion index into region.Ops
}

// NewBuilder returns a builder appending to the end of the function body.
func NewBuilder(fn *Func) *Builder {
	return &Builder{fn: fn, region: &fn.Body, ip: len(fn.Body.Ops)}
}

// Context returns the type-interning context.
func (b *Builder) Context() *Context { return b.fn.ctx }

// Func returns the function being built.
func (b *Builder) Func() *Func { return b.fn }

// SetInsertionPointBefore places new operations immediately before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.region = op.region
	b.ip = indexOf(op.region, op)
}

// SetInsertionPointToEnd places new operations at the end of region.
func (b *Builder) SetInsertionPointToEnd(r *Region) {
	b.region = r
	b.ip = len(r.Ops)
}

// RegionBuilder returns a builder appending to the end of r.
func (b *Builder) RegionBuilder(r *Region) *Builder {
	return &Builder{fn: b.fn, region: r, ip: len(r.Ops)}
}

func indexOf(r *Region, op *Operation) int {
	for i, o := range r.Ops {
		if o == op {
			return i
		}
	}
	panic(errors.Errorf("operation %s not found in its region", op.Kind))
}

// insert wires operand uses and splices the operation into the region.
func (b *Builder) insert(op *Operation) *Operation {
	for _, v := range op.Operands {
		v.uses = append(v.uses, op)
	}
	op.region = b.region
	b.region.Ops = append(b.region.Ops, nil)
	copy(b.region.Ops[b.ip+1:], b.region.Ops[b.ip:])
	b.region.Ops[b.ip] = op
	b.ip++
	return op
}

func (b *Builder) newOp(kind OpKind, operands []*Value, resultTypes ...Type) *Operation {
	op := &Operation{Kind: kind, Operands: operands, Attrs: map[string]any{}}
	for i, t := range resultTypes {
		op.Results = append(op.Results, b.fn.newValue(t, op, i))
	}
	return op
}

func removeUse(v *Value, op *Operation) {
	for i, u := range v.uses {
		if u == op {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// ReplaceAllUses rewires every use of old to use new instead.
func (b *Builder) ReplaceAllUses(old, new *Value) {
	if old == new {
		return
	}
	for _, user := range append([]*Operation(nil), old.uses...) {
		for i, operand := range user.Operands {
			if operand == old {
				user.Operands[i] = new
				new.uses = append(new.uses, user)
			}
		}
	}
	old.uses = nil
}

// ReplaceOp substitutes op's results with the given values and erases op.
// The replacement count must match the result count.
func (b *Builder) ReplaceOp(op *Operation, with ...*Value) {
	if len(with) != len(op.Results) {
		panic(errors.Errorf("replacing %s: got %d values for %d results",
			op.Kind, len(with), len(op.Results)))
	}
	for i, res := range op.Results {
		b.ReplaceAllUses(res, with[i])
	}
	b.Erase(op)
}

// Erase removes op from its region. The operation must have no remaining
// result uses.
func (b *Builder) Erase(op *Operation) {
	for _, res := range op.Results {
		if res.HasUses() {
			panic(errors.Errorf("erasing %s with live uses", op.Kind))
		}
	}
	for _, operand := range op.Operands {
		removeUse(operand, op)
	}
	// Nested region operations die with their owner.
	for _, r := range []*Region{op.Then, op.Else} {
		if r == nil {
			continue
		}
		for _, inner := range r.Ops {
			for _, res := range inner.Results {
				res.uses = nil
			}
			for _, operand := range inner.Operands {
				removeUse(operand, inner)
			}
			inner.erased = true
		}
		r.Ops = nil
	}
	i := indexOf(op.region, op)
	op.region.Ops = append(op.region.Ops[:i], op.region.Ops[i+1:]...)
	if op.region == b.region && i < b.ip {
		b.ip--
	}
	op.erased = true
}

// --- Scalar and index operations ---

// CreateConstant materializes a scalar constant. value must be int64 for
// integer and boolean dtypes, float64 for floating dtypes.
func (b *Builder) CreateConstant(t *ScalarType, value any) *Value {
	switch value.(type) {
	case int64, float64:
	default:
		panic(errors.Errorf("constant value must be int64 or float64, got %T", value))
	}
	op := b.newOp(OpConstant, nil, t)
	op.Attrs["value"] = value
	b.insert(op)
	return op.Result(0)
}

// CreateConstIndex materializes an index-typed constant.
func (b *Builder) CreateConstIndex(v int) *Value {
	return b.CreateConstant(b.Context().Index(), int64(v))
}

// CreateDim reads the extent of memref dimension d.
func (b *Builder) CreateDim(mem *Value, d int) *Value {
	mt := mustMemRef(mem, "dim")
	if d < 0 || d >= mt.Rank() {
		panic(errors.Errorf("dim %d out of range for %s", d, mt))
	}
	op := b.newOp(OpDim, []*Value{mem}, b.Context().Index())
	op.Attrs["index"] = d
	b.insert(op)
	return op.Result(0)
}

// CreateAddI adds two index scalars.
func (b *Builder) CreateAddI(a, x *Value) *Value {
	op := b.newOp(OpAddI, []*Value{a, x}, b.Context().Index())
	b.insert(op)
	return op.Result(0)
}

// CreateCmpLE compares two index scalars (a <= x).
func (b *Builder) CreateCmpLE(a, x *Value) *Value {
	op := b.newOp(OpCmpLE, []*Value{a, x}, b.Context().Bool())
	b.insert(op)
	return op.Result(0)
}

// CreateAndI conjoins two bool scalars.
func (b *Builder) CreateAndI(a, x *Value) *Value {
	op := b.newOp(OpAndI, []*Value{a, x}, b.Context().Bool())
	b.insert(op)
	return op.Result(0)
}

// --- High-level vector operations ---

// CreateContract builds a contraction. The maps must be projected
// permutations over a shared iteration space; shape consistency across
// operands is the verifier's concern, but the builder checks map arity.
func (b *Builder) CreateContract(lhs, rhs, acc *Value, lhsMap, rhsMap, accMap IndexMap, kind CombiningKind) *Value {
	if len(lhsMap) != operandRank(lhs) || len(rhsMap) != operandRank(rhs) || len(accMap) != operandRank(acc) {
		panic(errors.Errorf("contract: indexing map arity does not match operand ranks"))
	}
	op := b.newOp(OpContract, []*Value{lhs, rhs, acc}, acc.Type())
	op.Attrs["lhs_map"] = lhsMap
	op.Attrs["rhs_map"] = rhsMap
	op.Attrs["acc_map"] = accMap
	op.Attrs["kind"] = kind
	b.insert(op)
	return op.Result(0)
}

func operandRank(v *Value) int {
	if vt := v.VectorType(); vt != nil {
		return vt.Rank()
	}
	return 0
}

// CreateTranspose permutes the dimensions of a vector.
func (b *Builder) CreateTranspose(vec *Value, perm []int) *Value {
	vt := mustVector(vec, "transpose")
	if len(perm) != vt.Rank() || !IsPermutation(perm) {
		panic(errors.Errorf("transpose: %v is not a permutation of rank %d", perm, vt.Rank()))
	}
	dims := make([]int, vt.Rank())
	for i, p := range perm {
		dims[i] = vt.Dim(p)
	}
	op := b.newOp(OpTranspose, []*Value{vec}, b.Context().Vector(vt.DType(), dims...))
	op.Attrs["permutation"] = append([]int(nil), perm...)
	b.insert(op)
	return op.Result(0)
}

// CreateTransferRead builds a structured read of vecType from mem.
// indices has one entry per memref dimension; padding supplies the value
// of out-of-bounds lanes when masked is true.
func (b *Builder) CreateTransferRead(vecType *VectorType, mem *Value, indices []*Value, padding *Value, masked bool) *Value {
	mt := mustMemRef(mem, "transfer_read")
	if len(indices) != mt.Rank() {
		panic(errors.Errorf("transfer_read: %d indices for %s", len(indices), mt))
	}
	if vecType.Rank() > mt.Rank() {
		panic(errors.Errorf("transfer_read: vector rank %d exceeds memref rank %d", vecType.Rank(), mt.Rank()))
	}
	operands := append([]*Value{mem}, indices...)
	operands = append(operands, padding)
	op := b.newOp(OpTransferRead, operands, vecType)
	op.Attrs["masked"] = masked
	b.insert(op)
	return op.Result(0)
}

// CreateTransferWrite builds a structured write of vec into mem.
func (b *Builder) CreateTransferWrite(vec, mem *Value, indices []*Value, masked bool) *Operation {
	vt := mustVector(vec, "transfer_write")
	mt := mustMemRef(mem, "transfer_write")
	if len(indices) != mt.Rank() {
		panic(errors.Errorf("transfer_write: %d indices for %s", len(indices), mt))
	}
	if vt.Rank() > mt.Rank() {
		panic(errors.Errorf("transfer_write: vector rank %d exceeds memref rank %d", vt.Rank(), mt.Rank()))
	}
	operands := append([]*Value{vec, mem}, indices...)
	op := b.newOp(OpTransferWrite, operands)
	op.Attrs["masked"] = masked
	b.insert(op)
	return op
}

// CreateExtractSlices tiles vec into a tuple of sub-vectors. sizes gives
// the tile extent per dimension; strides must be all ones.
func (b *Builder) CreateExtractSlices(vec *Value, sizes, strides []int) *Value {
	vt := mustVector(vec, "extract_slices")
	checkTiling(vt, sizes, strides)
	var members []Type
	for _, tile := range TileGrid(vt.Dims(), sizes) {
		members = append(members, b.Context().Vector(vt.DType(), tile.Sizes...))
	}
	op := b.newOp(OpExtractSlices, []*Value{vec}, b.Context().Tuple(members...))
	op.Attrs["sizes"] = append([]int(nil), sizes...)
	op.Attrs["strides"] = append([]int(nil), strides...)
	b.insert(op)
	return op.Result(0)
}

// CreateInsertSlices reassembles a vector of type vecType from the tuple
// produced by the matching tiling.
func (b *Builder) CreateInsertSlices(vecType *VectorType, tuple *Value, sizes, strides []int) *Value {
	if _, ok := tuple.Type().(*TupleType); !ok {
		panic(errors.Errorf("insert_slices: operand is %s, want tuple", tuple.Type()))
	}
	checkTiling(vecType, sizes, strides)
	op := b.newOp(OpInsertSlices, []*Value{tuple}, vecType)
	op.Attrs["sizes"] = append([]int(nil), sizes...)
	op.Attrs["strides"] = append([]int(nil), strides...)
	b.insert(op)
	return op.Result(0)
}

func checkTiling(vt *VectorType, sizes, strides []int) {
	if len(sizes) != vt.Rank() || len(strides) != vt.Rank() {
		panic(errors.Errorf("tiling arity %d/%d does not match rank %d", len(sizes), len(strides), vt.Rank()))
	}
	for d, s := range sizes {
		if s < 1 || s > vt.Dim(d) {
			panic(errors.Errorf("tile size %d out of range for dimension %d of %s", s, d, vt))
		}
	}
	for _, s := range strides {
		if s != 1 {
			panic(errors.Errorf("only unit strides are supported, got %v", strides))
		}
	}
}

// CreateTuple aggregates values into a tuple.
func (b *Builder) CreateTuple(vals ...*Value) *Value {
	types := make([]Type, len(vals))
	for i, v := range vals {
		types[i] = v.Type()
	}
	op := b.newOp(OpTuple, append([]*Value(nil), vals...), b.Context().Tuple(types...))
	b.insert(op)
	return op.Result(0)
}

// CreateTupleGet projects member i out of a tuple.
func (b *Builder) CreateTupleGet(tuple *Value, i int) *Value {
	tt, ok := tuple.Type().(*TupleType)
	if !ok || i < 0 || i >= tt.Size() {
		panic(errors.Errorf("tuple_get: index %d invalid for %s", i, tuple.Type()))
	}
	op := b.newOp(OpTupleGet, []*Value{tuple}, tt.Member(i))
	op.Attrs["index"] = i
	b.insert(op)
	return op.Result(0)
}

// CreateBitCast reinterprets vec's element width. The innermost dimension
// of resultType must equal the source's scaled by the element size ratio.
func (b *Builder) CreateBitCast(resultType *VectorType, vec *Value) *Value {
	vt := mustVector(vec, "bitcast")
	if BitCastResultDim(vt, resultType.DType()) != resultType.Dim(resultType.Rank()-1) ||
		vt.Rank() != resultType.Rank() {
		panic(errors.Errorf("bitcast: %s cannot reinterpret as %s", vt, resultType))
	}
	op := b.newOp(OpBitCast, []*Value{vec}, resultType)
	b.insert(op)
	return op.Result(0)
}

// BitCastResultDim returns the innermost dimension extent a bitcast of vt
// to elements of dst would produce, or -1 when the widths do not divide.
func BitCastResultDim(vt *VectorType, dst dtypes.DType) int {
	srcBits := vt.DType().Size() * 8
	dstBits := dst.Size() * 8
	inner := vt.Dim(vt.Rank() - 1)
	if srcBits*inner%dstBits != 0 {
		return -1
	}
	return srcBits * inner / dstBits
}

// CreateShapeCast reinterprets vec's dimensions. Element count and dtype
// must be preserved.
func (b *Builder) CreateShapeCast(resultType *VectorType, vec *Value) *Value {
	vt := mustVector(vec, "shape_cast")
	if vt.NumElements() != resultType.NumElements() || vt.DType() != resultType.DType() {
		panic(errors.Errorf("shape_cast: %s cannot reshape to %s", vt, resultType))
	}
	op := b.newOp(OpShapeCast, []*Value{vec}, resultType)
	b.insert(op)
	return op.Result(0)
}

// --- Primitive operations ---

// CreateExtract drops the leading len(pos) dimensions of vec at the given
// position, producing a lower-rank vector or, when all dimensions are
// consumed, a scalar.
func (b *Builder) CreateExtract(vec *Value, pos []int) *Value {
	vt := mustVector(vec, "extract")
	if len(pos) == 0 || len(pos) > vt.Rank() {
		panic(errors.Errorf("extract: position arity %d invalid for %s", len(pos), vt))
	}
	for d, p := range pos {
		if p < 0 || p >= vt.Dim(d) {
			panic(errors.Errorf("extract: position %v out of range for %s", pos, vt))
		}
	}
	var resType Type
	if len(pos) == vt.Rank() {
		resType = b.Context().Scalar(vt.DType())
	} else {
		resType = b.Context().Vector(vt.DType(), vt.Dims()[len(pos):]...)
	}
	op := b.newOp(OpExtract, []*Value{vec}, resType)
	op.Attrs["position"] = append([]int(nil), pos...)
	b.insert(op)
	return op.Result(0)
}

// CreateInsert writes src (a lower-rank vector or scalar) into dst at the
// given position, producing the updated vector.
func (b *Builder) CreateInsert(src, dst *Value, pos []int) *Value {
	vt := mustVector(dst, "insert")
	if len(pos) == 0 || len(pos) > vt.Rank() {
		panic(errors.Errorf("insert: position arity %d invalid for %s", len(pos), vt))
	}
	op := b.newOp(OpInsert, []*Value{src, dst}, vt)
	op.Attrs["position"] = append([]int(nil), pos...)
	b.insert(op)
	return op.Result(0)
}

// CreateExtractStridedSlice extracts the contiguous sub-vector described
// by full-rank offsets and sizes; strides must be all ones.
func (b *Builder) CreateExtractStridedSlice(vec *Value, offsets, sizes, strides []int) *Value {
	vt := mustVector(vec, "extract_strided_slice")
	checkSlice(vt, offsets, sizes, strides)
	op := b.newOp(OpExtractStridedSlice, []*Value{vec}, b.Context().Vector(vt.DType(), sizes...))
	op.Attrs["offsets"] = append([]int(nil), offsets...)
	op.Attrs["sizes"] = append([]int(nil), sizes...)
	op.Attrs["strides"] = append([]int(nil), strides...)
	b.insert(op)
	return op.Result(0)
}

// CreateInsertStridedSlice writes src into dst at offsets, producing the
// updated vector.
func (b *Builder) CreateInsertStridedSlice(src, dst *Value, offsets, strides []int) *Value {
	st := mustVector(src, "insert_strided_slice")
	dt := mustVector(dst, "insert_strided_slice")
	checkSlice(dt, offsets, st.Dims(), strides)
	op := b.newOp(OpInsertStridedSlice, []*Value{src, dst}, dt)
	op.Attrs["offsets"] = append([]int(nil), offsets...)
	op.Attrs["strides"] = append([]int(nil), strides...)
	b.insert(op)
	return op.Result(0)
}

func checkSlice(vt *VectorType, offsets, sizes, strides []int) {
	if len(offsets) != vt.Rank() || len(sizes) != vt.Rank() || len(strides) != vt.Rank() {
		panic(errors.Errorf("slice arity does not match rank %d", vt.Rank()))
	}
	for d := range offsets {
		if offsets[d] < 0 || sizes[d] < 1 || offsets[d]+sizes[d] > vt.Dim(d) {
			panic(errors.Errorf("slice [%v..+%v] out of range for %s", offsets, sizes, vt))
		}
		if strides[d] != 1 {
			panic(errors.Errorf("only unit strides are supported, got %v", strides))
		}
	}
}

// CreateBroadcast replicates a scalar or stretches a lower-rank vector
// into resultType by prepending dimensions.
func (b *Builder) CreateBroadcast(resultType *VectorType, src *Value) *Value {
	switch st := src.Type().(type) {
	case *ScalarType:
		if st.DType() != resultType.DType() {
			panic(errors.Errorf("broadcast: dtype mismatch %s vs %s", st, resultType))
		}
	case *VectorType:
		if st.DType() != resultType.DType() || st.Rank() > resultType.Rank() {
			panic(errors.Errorf("broadcast: %s does not broadcast to %s", st, resultType))
		}
		for i := 0; i < st.Rank(); i++ {
			if st.Dim(st.Rank()-1-i) != resultType.Dim(resultType.Rank()-1-i) {
				panic(errors.Errorf("broadcast: trailing dims of %s do not match %s", st, resultType))
			}
		}
	default:
		panic(errors.Errorf("broadcast: unsupported source %s", src.Type()))
	}
	op := b.newOp(OpBroadcast, []*Value{src}, resultType)
	b.insert(op)
	return op.Result(0)
}

// CreateMul multiplies two equal-typed vectors or scalars elementwise.
func (b *Builder) CreateMul(a, x *Value) *Value {
	if a.Type() != x.Type() {
		panic(errors.Errorf("mul: operand types differ: %s vs %s", a.Type(), x.Type()))
	}
	op := b.newOp(OpMul, []*Value{a, x}, a.Type())
	b.insert(op)
	return op.Result(0)
}

// CreateCombine merges two equal-typed values lanewise with kind.
func (b *Builder) CreateCombine(kind CombiningKind, a, x *Value) *Value {
	if a.Type() != x.Type() {
		panic(errors.Errorf("combine: operand types differ: %s vs %s", a.Type(), x.Type()))
	}
	op := b.newOp(OpCombine, []*Value{a, x}, a.Type())
	op.Attrs["kind"] = kind
	b.insert(op)
	return op.Result(0)
}

// CreateReduction folds a rank-1 vector to a scalar with kind. acc, when
// non-nil, seeds the fold.
func (b *Builder) CreateReduction(kind CombiningKind, vec *Value, acc *Value) *Value {
	vt := mustVector(vec, "reduction")
	if vt.Rank() != 1 {
		panic(errors.Errorf("reduction: operand must be rank 1, got %s", vt))
	}
	operands := []*Value{vec}
	if acc != nil {
		operands = append(operands, acc)
	}
	op := b.newOp(OpReduction, operands, b.Context().Scalar(vt.DType()))
	op.Attrs["kind"] = kind
	b.insert(op)
	return op.Result(0)
}

// CreateOuterProduct accumulates the outer product of two rank-1 vectors
// into acc with kind.
func (b *Builder) CreateOuterProduct(kind CombiningKind, lhs, rhs, acc *Value) *Value {
	lt := mustVector(lhs, "outerproduct")
	rt := mustVector(rhs, "outerproduct")
	at := mustVector(acc, "outerproduct")
	if lt.Rank() != 1 || rt.Rank() != 1 || at.Rank() != 2 ||
		at.Dim(0) != lt.Dim(0) || at.Dim(1) != rt.Dim(0) {
		panic(errors.Errorf("outerproduct: shapes %s x %s -> %s are inconsistent", lt, rt, at))
	}
	op := b.newOp(OpOuterProduct, []*Value{lhs, rhs, acc}, at)
	op.Attrs["kind"] = kind
	b.insert(op)
	return op.Result(0)
}

// CreateMatmul multiplies a [m,k] by a [k,n] vector over add/mul.
func (b *Builder) CreateMatmul(lhs, rhs *Value) *Value {
	lt := mustVector(lhs, "matmul")
	rt := mustVector(rhs, "matmul")
	if lt.Rank() != 2 || rt.Rank() != 2 || lt.Dim(1) != rt.Dim(0) {
		panic(errors.Errorf("matmul: shapes %s x %s are inconsistent", lt, rt))
	}
	op := b.newOp(OpMatmul, []*Value{lhs, rhs}, b.Context().Vector(lt.DType(), lt.Dim(0), rt.Dim(1)))
	b.insert(op)
	return op.Result(0)
}

// CreateFlatTranspose transposes a rank-2 vector with the specialized
// primitive.
func (b *Builder) CreateFlatTranspose(vec *Value) *Value {
	vt := mustVector(vec, "flat_transpose")
	if vt.Rank() != 2 {
		panic(errors.Errorf("flat_transpose: operand must be rank 2, got %s", vt))
	}
	op := b.newOp(OpFlatTranspose, []*Value{vec}, b.Context().Vector(vt.DType(), vt.Dim(1), vt.Dim(0)))
	op.Attrs["rows"] = vt.Dim(0)
	op.Attrs["columns"] = vt.Dim(1)
	b.insert(op)
	return op.Result(0)
}

// CreateLoad reads a whole vector from mem; bounds are caller-asserted.
func (b *Builder) CreateLoad(vecType *VectorType, mem *Value, indices []*Value) *Value {
	mt := mustMemRef(mem, "load")
	if len(indices) != mt.Rank() {
		panic(errors.Errorf("load: %d indices for %s", len(indices), mt))
	}
	op := b.newOp(OpLoad, append([]*Value{mem}, indices...), vecType)
	b.insert(op)
	return op.Result(0)
}

// CreateStore writes a whole vector to mem; bounds are caller-asserted.
func (b *Builder) CreateStore(vec, mem *Value, indices []*Value) *Operation {
	mt := mustMemRef(mem, "store")
	if len(indices) != mt.Rank() {
		panic(errors.Errorf("store: %d indices for %s", len(indices), mt))
	}
	op := b.newOp(OpStore, append([]*Value{vec, mem}, indices...))
	b.insert(op)
	return op
}

// CreateAlloc allocates a zero-initialized scratch buffer.
func (b *Builder) CreateAlloc(t *MemRefType) *Value {
	op := b.newOp(OpAlloc, nil, t)
	b.insert(op)
	return op.Result(0)
}

// CreateFill sets every element of mem to value.
func (b *Builder) CreateFill(mem, value *Value) *Operation {
	mustMemRef(mem, "fill")
	op := b.newOp(OpFill, []*Value{mem, value})
	b.insert(op)
	return op
}

// CreateCopyIn copies a dst-shaped region of src at indices into dst at
// the origin, clamped to src's bounds.
func (b *Builder) CreateCopyIn(src, dst *Value, indices []*Value) *Operation {
	st := mustMemRef(src, "copy_in")
	mustMemRef(dst, "copy_in")
	if len(indices) != st.Rank() {
		panic(errors.Errorf("copy_in: %d indices for %s", len(indices), st))
	}
	op := b.newOp(OpCopyIn, append([]*Value{src, dst}, indices...))
	b.insert(op)
	return op
}

// CreateCopyOut copies all of src into dst at indices, clamped to dst's
// bounds.
func (b *Builder) CreateCopyOut(src, dst *Value, indices []*Value) *Operation {
	mustMemRef(src, "copy_out")
	dt := mustMemRef(dst, "copy_out")
	if len(indices) != dt.Rank() {
		panic(errors.Errorf("copy_out: %d indices for %s", len(indices), dt))
	}
	op := b.newOp(OpCopyOut, append([]*Value{src, dst}, indices...))
	b.insert(op)
	return op
}

// CreateIf builds a two-armed conditional with the given result types.
// Both regions start empty; populate them through RegionBuilder and
// terminate each with CreateYield.
func (b *Builder) CreateIf(cond *Value, resultTypes ...Type) *Operation {
	op := b.newOp(OpIf, []*Value{cond}, resultTypes...)
	op.Then = &Region{Owner: op}
	op.Else = &Region{Owner: op}
	b.insert(op)
	return op
}

// CreateYield terminates an if region with the given values.
func (b *Builder) CreateYield(vals ...*Value) *Operation {
	op := b.newOp(OpYield, append([]*Value(nil), vals...))
	b.insert(op)
	return op
}

// CreateReturn terminates the function with the given observable values.
func (b *Builder) CreateReturn(vals ...*Value) *Operation {
	op := b.newOp(OpReturn, append([]*Value(nil), vals...))
	b.insert(op)
	return op
}

func mustVector(v *Value, what string) *VectorType {
	vt := v.VectorType()
	if vt == nil {
		panic(errors.Errorf("%s: operand is %s, want vector", what, v.Type()))
	}
	return vt
}

func mustMemRef(v *Value, what string) *MemRefType {
	mt, ok := v.Type().(*MemRefType)
	if !ok {
		panic(errors.Errorf("%s: operand is %s, want memref", what, v.Type()))
	}
	return mt
}
