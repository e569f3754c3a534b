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
	"fmt"
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Context interns types so that structurally-equal types are represented
// by the same pointer. A Context is safe for concurrent use: patterns
// applied from multiple goroutines may create types through the same
// Context without extra synchronization.
type Context struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{types: make(map[string]Type)}
}

func (c *Context) intern(key string, mk func() Type) Type {
	c.mu.RLock()
	t, ok := c.types[key]
	c.mu.RUnlock()
	if ok {
		return t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.types[key]; ok {
		return t
	}
	t = mk()
	c.types[key] = t
	return t
}

// Scalar returns the interned scalar type for dtype.
func (c *Context) Scalar(dtype dtypes.DType) *ScalarType {
	key := "s:" + dtype.String()
	return c.intern(key, func() Type { return &ScalarType{dtype: dtype} }).(*ScalarType)
}

// Index returns the interned scalar type used for memory subscripts.
func (c *Context) Index() *ScalarType { return c.Scalar(dtypes.Int64) }

// Bool returns the interned scalar type used for predicates.
func (c *Context) Bool() *ScalarType { return c.Scalar(dtypes.Bool) }

// Vector returns the interned vector type with the given element type and
// dimension extents. All extents must be >= 1; violating that is a
// programming error and panics.
func (c *Context) Vector(dtype dtypes.DType, dims ...int) *VectorType {
	for _, d := range dims {
		if d < 1 {
			panic(errors.Errorf("vector dimension extents must be >= 1, got %v", dims))
		}
	}
	if len(dims) == 0 {
		panic(errors.Errorf("vector type requires at least one dimension, use Scalar for rank 0"))
	}
	key := fmt.Sprintf("v:%s:%v", dtype, dims)
	return c.intern(key, func() Type {
		return &VectorType{dtype: dtype, dims: append([]int(nil), dims...)}
	}).(*VectorType)
}

// MemRef returns the interned memref type with the given element type and
// dimension extents. All extents must be >= 1.
func (c *Context) MemRef(dtype dtypes.DType, dims ...int) *MemRefType {
	for _, d := range dims {
		if d < 1 {
			panic(errors.Errorf("memref dimension extents must be >= 1, got %v", dims))
		}
	}
	key := fmt.Sprintf("m:%s:%v", dtype, dims)
	return c.intern(key, func() Type {
		return &MemRefType{dtype: dtype, dims: append([]int(nil), dims...)}
	}).(*MemRefType)
}

// Tuple returns the interned tuple type over the given member types.
func (c *Context) Tuple(members ...Type) *TupleType {
	var key string
	for _, m := range members {
		key += m.String() + ";"
	}
	return c.intern("t:"+key, func() Type {
		return &TupleType{members: append([]Type(nil), members...)}
	}).(*TupleType)
}
