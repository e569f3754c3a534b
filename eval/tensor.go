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

package eval

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Tensor is a dense row-major value: a scalar (rank 0), a vector, or a
// memref backing store. Floating dtypes occupy the float lanes, integer
// and boolean dtypes the int lanes (booleans as 0 and 1).
//
// Vectors and scalars are immutable once produced; only memref-typed
// tensors are written in place.
type Tensor struct {
	dtype dtypes.DType
	dims  []int
	f     []float64
	i     []int64
}

// NewTensor returns a zero-valued tensor. No dims makes a scalar.
func NewTensor(dtype dtypes.DType, dims ...int) *Tensor {
	n := 1
	for _, d := range dims {
		if d < 1 {
			panic(errors.Errorf("tensor extent %d must be positive", d))
		}
		n *= d
	}
	t := &Tensor{dtype: dtype, dims: append([]int(nil), dims...)}
	if dtype.IsFloat() {
		t.f = make([]float64, n)
	} else {
		t.i = make([]int64, n)
	}
	return t
}

// DType returns the element dtype.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.dims) }

// Dims returns the shape. The returned slice is shared.
func (t *Tensor) Dims() []int { return t.dims }

// NumElements returns the total element count.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.dims {
		n *= d
	}
	return n
}

// Clone returns an independent copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{dtype: t.dtype, dims: append([]int(nil), t.dims...)}
	if t.f != nil {
		c.f = append([]float64(nil), t.f...)
	}
	if t.i != nil {
		c.i = append([]int64(nil), t.i...)
	}
	return c
}

// offset converts a multi-index to the linear row-major offset.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.dims) {
		panic(errors.Errorf("index arity %d for rank %d", len(idx), len(t.dims)))
	}
	off := 0
	for d, i := range idx {
		if i < 0 || i >= t.dims[d] {
			panic(errors.Errorf("index %v out of range for shape %v", idx, t.dims))
		}
		off = off*t.dims[d] + i
	}
	return off
}

// inBounds reports whether idx addresses an element.
func (t *Tensor) inBounds(idx []int) bool {
	for d, i := range idx {
		if i < 0 || i >= t.dims[d] {
			return false
		}
	}
	return true
}

// Float reads the element at idx of a floating tensor.
func (t *Tensor) Float(idx ...int) float64 { return t.f[t.offset(idx)] }

// SetFloat writes the element at idx of a floating tensor.
func (t *Tensor) SetFloat(v float64, idx ...int) { t.f[t.offset(idx)] = v }

// Int reads the element at idx of an integer or boolean tensor.
func (t *Tensor) Int(idx ...int) int64 { return t.i[t.offset(idx)] }

// SetInt writes the element at idx of an integer or boolean tensor.
func (t *Tensor) SetInt(v int64, idx ...int) { t.i[t.offset(idx)] = v }

// Floats exposes the raw float lanes in row-major order.
func (t *Tensor) Floats() []float64 { return t.f }

// Ints exposes the raw int lanes in row-major order.
func (t *Tensor) Ints() []int64 { return t.i }

// get reads the linear offset as the lane-neutral pair used by the
// interpreter's arithmetic.
func (t *Tensor) get(off int) (float64, int64) {
	if t.f != nil {
		return t.f[off], 0
	}
	return 0, t.i[off]
}

func (t *Tensor) set(off int, f float64, i int64) {
	if t.f != nil {
		t.f[off] = f
	} else {
		t.i[off] = i
	}
}

// fillFrom sets every element to src's scalar value.
func (t *Tensor) fillFrom(src *Tensor) {
	if t.f != nil {
		for off := range t.f {
			t.f[off] = src.f[0]
		}
	} else {
		for off := range t.i {
			t.i[off] = src.i[0]
		}
	}
}
