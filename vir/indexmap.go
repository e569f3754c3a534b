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

// IndexMap is a projected permutation describing how one contraction
// operand indexes the shared iteration space: entry d is the iterator
// read by dimension d of the operand. A contraction carries one IndexMap
// per operand (lhs, rhs, accumulator).
type IndexMap []int

// Valid reports whether the map is a projected permutation over
// numIterators iterators: every entry in range and no iterator repeated.
func (m IndexMap) Valid(numIterators int) bool {
	seen := make([]bool, numIterators)
	for _, it := range m {
		if it < 0 || it >= numIterators || seen[it] {
			return false
		}
		seen[it] = true
	}
	return true
}

// PositionOf returns the operand dimension reading iterator it, or -1
// when the operand does not use it.
func (m IndexMap) PositionOf(it int) int {
	for d, v := range m {
		if v == it {
			return d
		}
	}
	return -1
}

// WithoutDim returns a copy of the map with dimension d removed.
func (m IndexMap) WithoutDim(d int) IndexMap {
	out := make(IndexMap, 0, len(m)-1)
	out = append(out, m[:d]...)
	out = append(out, m[d+1:]...)
	return out
}

// Permuted returns the map with its dimensions reordered by perm:
// dimension i of the result is dimension perm[i] of m.
func (m IndexMap) Permuted(perm []int) IndexMap {
	out := make(IndexMap, len(m))
	for i, p := range perm {
		out[i] = m[p]
	}
	return out
}

func (m IndexMap) String() string { return fmt.Sprintf("%v", []int(m)) }

// IdentityMap returns the map [0, 1, ..., n-1].
func IdentityMap(n int) IndexMap {
	m := make(IndexMap, n)
	for i := range m {
		m[i] = i
	}
	return m
}

// IsIdentityPerm reports whether perm is the identity permutation.
func IsIdentityPerm(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return true
}

// IsPermutation reports whether perm is a permutation of [0, n).
func IsPermutation(perm []int) bool {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

// InversePerm returns the inverse permutation of perm.
func InversePerm(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
