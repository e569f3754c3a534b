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

import "fmt"

// OpKind identifies an operation. The set is closed: patterns dispatch on
// it with a tagged switch whose default arm means "not applicable".
type OpKind int

const (
	// High-level vector operations, progressively lowered away.

	// OpContract is a generalized multi-dimensional contraction:
	// result[acc idx] = kind-accumulate over contracted iterators of
	// lhs[lhs idx] * rhs[rhs idx]. Operands: lhs, rhs, acc. Attributes:
	// "lhs_map", "rhs_map", "acc_map" (IndexMap), "kind" (CombiningKind).
	OpContract OpKind = iota

	// OpTranspose permutes vector dimensions. Operand: vector.
	// Attribute: "permutation" ([]int).
	OpTranspose

	// OpTransferRead is a structured, possibly-masked bulk read.
	// Operands: memref, one index per memref dimension, padding scalar.
	// Attribute: "masked" (bool). The vector covers the trailing memref
	// dimensions. When masked, out-of-bounds lanes read the padding
	// value; when unmasked, bounds are a caller-asserted guarantee.
	OpTransferRead

	// OpTransferWrite is the write counterpart. Operands: vector, memref,
	// one index per memref dimension. Attribute: "masked" (bool).
	// When masked, out-of-bounds lanes are dropped.
	OpTransferWrite

	// OpExtractSlices splits a vector into a tuple of tiles.
	// Operand: vector. Attributes: "sizes", "strides" ([]int, unit
	// strides only). Result: tuple of vectors in row-major tile order.
	OpExtractSlices

	// OpInsertSlices reassembles a vector from a tuple of tiles.
	// Operand: tuple. Attributes: "sizes", "strides" ([]int).
	OpInsertSlices

	// OpTuple builds a positionally-indexed aggregate from vectors.
	OpTuple

	// OpTupleGet projects member "index" (int attribute) out of a tuple.
	OpTupleGet

	// OpBitCast reinterprets element width: the innermost dimension is
	// scaled by the size ratio of the element types, bits unchanged.
	OpBitCast

	// OpShapeCast reinterprets dimension extents without moving data;
	// element count and element type are preserved.
	OpShapeCast

	// Primitive operations: the targets of lowering.

	// OpExtract drops leading dimensions at a fixed "position" ([]int
	// attribute), producing a lower-rank vector or a scalar.
	OpExtract

	// OpInsert writes a lower-rank vector or scalar into a fixed
	// "position" of a larger vector, producing the updated vector.
	OpInsert

	// OpExtractStridedSlice extracts a contiguous sub-vector.
	// Attributes: "offsets", "sizes", "strides" ([]int, unit strides).
	OpExtractStridedSlice

	// OpInsertStridedSlice writes a sub-vector at "offsets" into a
	// destination vector, producing the updated vector.
	OpInsertStridedSlice

	// OpBroadcast replicates a scalar, or stretches a lower-rank vector
	// by prepending dimensions.
	OpBroadcast

	// OpMul is the pairwise elementwise product of two equal-typed
	// vectors or scalars.
	OpMul

	// OpCombine merges two equal-typed values lanewise with a
	// CombiningKind ("kind" attribute).
	OpCombine

	// OpReduction folds a rank-1 vector to a scalar with a CombiningKind
	// ("kind" attribute); an optional second operand seeds the fold.
	OpReduction

	// OpOuterProduct is the rank-1 outer-product-accumulate primitive:
	// res[i][j] = kind(acc[i][j], lhs[i]*rhs[j]). Operands: lhs, rhs,
	// acc. Attribute: "kind".
	OpOuterProduct

	// OpMatmul is the 2-D matrix-multiply primitive over add/mul.
	OpMatmul

	// OpFlatTranspose is the specialized 2-D transpose primitive.
	OpFlatTranspose

	// OpLoad reads a whole vector from a memref at given indices,
	// bounds asserted by the caller. Operands: memref, indices.
	OpLoad

	// OpStore writes a whole vector. Operands: vector, memref, indices.
	OpStore

	// Scalar and structural operations.

	// OpConstant materializes a scalar constant ("value" attribute:
	// int64 or float64).
	OpConstant

	// OpDim reads the extent of memref dimension "index" (int attribute).
	OpDim

	// OpAddI adds two index scalars.
	OpAddI

	// OpCmpLE compares two index scalars, producing a bool scalar.
	OpCmpLE

	// OpAndI is the boolean conjunction of two bool scalars.
	OpAndI

	// OpAlloc allocates a zero-initialized scratch memref.
	OpAlloc

	// OpFill sets every element of a memref to a scalar value.
	// Operands: memref, scalar.
	OpFill

	// OpCopyIn copies a dst-shaped region from src starting at the given
	// indices into dst at the origin, clamped to the bounds of src.
	// Operands: src memref, dst memref, indices into src.
	OpCopyIn

	// OpCopyOut copies the whole of src into dst starting at the given
	// indices, clamped to the bounds of dst.
	// Operands: src memref, dst memref, indices into dst.
	OpCopyOut

	// OpIf selects between two regions on a bool scalar operand. Each
	// region ends with OpYield; the yielded values become the results.
	OpIf

	// OpYield terminates an OpIf region.
	OpYield

	// OpReturn terminates a Func and names its observable results.
	OpReturn
)

var opKindNames = map[OpKind]string{
	OpContract:            "contract",
	OpTranspose:           "transpose",
	OpTransferRead:        "transfer_read",
	OpTransferWrite:       "transfer_write",
	OpExtractSlices:       "extract_slices",
	OpInsertSlices:        "insert_slices",
	OpTuple:               "tuple",
	OpTupleGet:            "tuple_get",
	OpBitCast:             "bitcast",
	OpShapeCast:           "shape_cast",
	OpExtract:             "extract",
	OpInsert:              "insert",
	OpExtractStridedSlice: "extract_strided_slice",
	OpInsertStridedSlice:  "insert_strided_slice",
	OpBroadcast:           "broadcast",
	OpMul:                 "mul",
	OpCombine:             "combine",
	OpReduction:           "reduction",
	OpOuterProduct:        "outerproduct",
	OpMatmul:              "matmul",
	OpFlatTranspose:       "flat_transpose",
	OpLoad:                "load",
	OpStore:               "store",
	OpConstant:            "constant",
	OpDim:                 "dim",
	OpAddI:                "addi",
	OpCmpLE:               "cmple",
	OpAndI:                "andi",
	OpAlloc:               "alloc",
	OpFill:                "fill",
	OpCopyIn:              "copy_in",
	OpCopyOut:             "copy_out",
	OpIf:                  "if",
	OpYield:               "yield",
	OpReturn:              "return",
}

// String returns the textual mnemonic of the kind.
func (k OpKind) String() string {
	if s, ok := opKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Value is an SSA value: a function argument or an operation result.
type Value struct {
	typ Type

	// def is the producing operation, nil for function arguments.
	def *Operation

	// index is the result position within def.
	index int

	// uses are the operations consuming this value. Maintained by the
	// builder; an operation appears once per operand slot that uses it.
	uses []*Operation
}

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// Def returns the producing operation, or nil for function arguments.
func (v *Value) Def() *Operation { return v.def }

// Uses returns the consuming operations. The returned slice is shared
// and must not be modified.
func (v *Value) Uses() []*Operation { return v.uses }

// HasUses reports whether any operation consumes this value. The slice
// lowering uses it as the "escapes" predicate on aggregate results.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

// DefKind returns the OpKind of the defining operation, or -1 for
// function arguments. It keeps pattern match code to one-liners.
func (v *Value) DefKind() OpKind {
	if v.def == nil {
		return OpKind(-1)
	}
	return v.def.Kind
}

// VectorType returns the value's type as a *VectorType, or nil when the
// value is not a vector.
func (v *Value) VectorType() *VectorType {
	vt, _ := v.typ.(*VectorType)
	return vt
}

// Region is an ordered list of operations: either a Func body or one arm
// of an OpIf.
type Region struct {
	Ops []*Operation

	// Owner is the operation holding this region, nil for a Func body.
	Owner *Operation
}

// Operation is a single IR node: a kind tag, typed operands and results,
// and an attribute map. OpIf additionally carries two regions.
type Operation struct {
	Kind     OpKind
	Operands []*Value
	Results  []*Value
	Attrs    map[string]any

	// Then and Else are only non-nil on OpIf.
	Then *Region
	Else *Region

	// region is the containing region; erased is set when the operation
	// has been removed from its region.
	region *Region
	erased bool
}

// Erased reports whether the operation has been removed from its region.
func (op *Operation) Erased() bool { return op.erased }

// Result returns result i.
func (op *Operation) Result(i int) *Value { return op.Results[i] }

// Operand returns operand i.
func (op *Operation) Operand(i int) *Value { return op.Operands[i] }

// IntAttr returns the int attribute name, or 0 when absent.
func (op *Operation) IntAttr(name string) int {
	v, _ := op.Attrs[name].(int)
	return v
}

// BoolAttr returns the bool attribute name, or false when absent.
func (op *Operation) BoolAttr(name string) bool {
	v, _ := op.Attrs[name].(bool)
	return v
}

// IntsAttr returns the []int attribute name, or nil when absent.
func (op *Operation) IntsAttr(name string) []int {
	v, _ := op.Attrs[name].([]int)
	return v
}

// KindAttr returns the CombiningKind attribute name.
func (op *Operation) KindAttr(name string) CombiningKind {
	v, _ := op.Attrs[name].(CombiningKind)
	return v
}

// MapAttr returns the IndexMap attribute name, or nil when absent.
func (op *Operation) MapAttr(name string) IndexMap {
	v, _ := op.Attrs[name].(IndexMap)
	return v
}

// HasSideEffects reports whether the operation writes memory or
// terminates a region; such operations are never removed as dead.
func (op *Operation) HasSideEffects() bool {
	switch op.Kind {
	case OpTransferWrite, OpStore, OpFill, OpCopyIn, OpCopyOut, OpYield, OpReturn:
		return true
	case OpIf:
		// An if is as effectful as its regions.
		for _, r := range []*Region{op.Then, op.Else} {
			if r == nil {
				continue
			}
			for _, inner := range r.Ops {
				if inner.HasSideEffects() && inner.Kind != OpYield {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// Func is a program: named, with typed arguments and a single body region.
type Func struct {
	Name string
	Args []*Value
	Body Region

	ctx *Context
}

// NewFunc returns an empty function. Argument values are created with
// AddArg before any operations are built.
func NewFunc(ctx *Context, name string) *Func {
	return &Func{Name: name, ctx: ctx}
}

// Context returns the type-interning context the function was built with.
func (f *Func) Context() *Context { return f.ctx }

// AddArg appends a function argument of the given type and returns its
// value.
func (f *Func) AddArg(t Type) *Value {
	v := &Value{typ: t}
	f.Args = append(f.Args, v)
	return v
}

// newValue allocates a result value for op.
func (f *Func) newValue(t Type, op *Operation, index int) *Value {
	return &Value{typ: t, def: op, index: index}
}

// Walk visits every operation in the function, including operations
// nested in if regions, in program order. Returning false from visit
// stops the walk.
func (f *Func) Walk(visit func(*Operation) bool) {
	walkRegion(&f.Body, visit)
}

func walkRegion(r *Region, visit func(*Operation) bool) bool {
	for _, op := range r.Ops {
		if !visit(op) {
			return false
		}
		if op.Kind == OpIf {
			if !walkRegion(op.Then, visit) {
				return false
			}
			if !walkRegion(op.Else, visit) {
				return false
			}
		}
	}
	return true
}

// NumOps returns the total operation count, including nested regions.
func (f *Func) NumOps() int {
	n := 0
	f.Walk(func(*Operation) bool {
		n++
		return true
	})
	return n
}

// CountKind returns how many operations of the given kind the function
// contains, including nested regions.
func (f *Func) CountKind(kind OpKind) int {
	n := 0
	f.Walk(func(op *Operation) bool {
		if op.Kind == kind {
			n++
		}
		return true
	})
	return n
}
