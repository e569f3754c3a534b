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

// Package vir defines the vector intermediate representation: types,
// operations, attributes and a builder for constructing programs.
//
// The representation is deliberately small. A program is a Func holding an
// ordered list of Operations; each Operation has typed operand and result
// Values and an attribute map. High-level vector operations (contraction,
// transpose, structured transfers, bulk slice extraction/insertion) coexist
// with the primitive operations they are progressively lowered into
// (extract, insert, broadcast, elementwise multiply, reduction, load,
// store). The lowering patterns themselves live in the lower package; the
// greedy fixed-point driver that applies them lives in the rewrite package.
package vir

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
)

// Type is the interface implemented by all vir types.
// Types are interned by a Context; two types obtained from the same
// Context are equal iff they are the same pointer.
type Type interface {
	String() string
	isType()
}

// ScalarType is a single element of some data type.
// Scalars appear as reduction results, transfer padding values,
// index arithmetic and boolean predicates.
type ScalarType struct {
	dtype dtypes.DType
}

func (t *ScalarType) isType() {}

// DType returns the element data type.
func (t *ScalarType) DType() dtypes.DType { return t.dtype }

func (t *ScalarType) String() string { return t.dtype.String() }

// VectorType is a multi-dimensional SIMD-style value: an element data
// type plus an ordered sequence of dimension extents. Rank 0 is not
// represented; scalar-like values use ScalarType. All extents are >= 1.
type VectorType struct {
	dtype dtypes.DType
	dims  []int
}

func (t *VectorType) isType() {}

// DType returns the element data type.
func (t *VectorType) DType() dtypes.DType { return t.dtype }

// Rank returns the number of dimensions.
func (t *VectorType) Rank() int { return len(t.dims) }

// Dims returns the dimension extents. The returned slice is shared and
// must not be modified.
func (t *VectorType) Dims() []int { return t.dims }

// Dim returns the extent of dimension i.
func (t *VectorType) Dim(i int) int { return t.dims[i] }

// NumElements returns the product of all dimension extents.
func (t *VectorType) NumElements() int {
	n := 1
	for _, d := range t.dims {
		n *= d
	}
	return n
}

func (t *VectorType) String() string {
	var sb strings.Builder
	sb.WriteString("vector<")
	for _, d := range t.dims {
		fmt.Fprintf(&sb, "%dx", d)
	}
	sb.WriteString(t.dtype.String())
	sb.WriteString(">")
	return sb.String()
}

// MemRefType is a reference to a multi-dimensional memory buffer.
// Transfers and load/store primitives read and write through memrefs.
type MemRefType struct {
	dtype dtypes.DType
	dims  []int
}

func (t *MemRefType) isType() {}

// DType returns the element data type.
func (t *MemRefType) DType() dtypes.DType { return t.dtype }

// Rank returns the number of dimensions.
func (t *MemRefType) Rank() int { return len(t.dims) }

// Dims returns the dimension extents. The returned slice is shared and
// must not be modified.
func (t *MemRefType) Dims() []int { return t.dims }

// Dim returns the extent of dimension i.
func (t *MemRefType) Dim(i int) int { return t.dims[i] }

// NumElements returns the product of all dimension extents.
func (t *MemRefType) NumElements() int {
	n := 1
	for _, d := range t.dims {
		n *= d
	}
	return n
}

func (t *MemRefType) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	for _, d := range t.dims {
		fmt.Fprintf(&sb, "%dx", d)
	}
	sb.WriteString(t.dtype.String())
	sb.WriteString(">")
	return sb.String()
}

// TupleType is a positionally-indexed aggregate of vector values. It is
// the ephemeral intermediate between bulk slice extraction and bulk slice
// insertion; it never reaches a lowered program unless a tuple value
// escapes the matched extract/insert pair.
type TupleType struct {
	members []Type
}

func (t *TupleType) isType() {}

// Size returns the number of members.
func (t *TupleType) Size() int { return len(t.members) }

// Member returns the type of member i.
func (t *TupleType) Member(i int) Type { return t.members[i] }

// Members returns the member types. The returned slice is shared and
// must not be modified.
func (t *TupleType) Members() []Type { return t.members }

func (t *TupleType) String() string {
	parts := make([]string, len(t.members))
	for i, m := range t.members {
		parts[i] = m.String()
	}
	return "tuple<" + strings.Join(parts, ", ") + ">"
}
