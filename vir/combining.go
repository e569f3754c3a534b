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

// CombiningKind is the reduction operator used to accumulate contraction
// and reduction results. It is fixed when the operation is constructed
// and immutable thereafter.
type CombiningKind int

const (
	CombiningAdd CombiningKind = iota
	CombiningMul
	CombiningMin
	CombiningMax
	CombiningAnd
	CombiningOr
	CombiningXor
)

// String returns the literal token used in the textual form.
func (k CombiningKind) String() string {
	switch k {
	case CombiningAdd:
		return "add"
	case CombiningMul:
		return "mul"
	case CombiningMin:
		return "min"
	case CombiningMax:
		return "max"
	case CombiningAnd:
		return "and"
	case CombiningOr:
		return "or"
	case CombiningXor:
		return "xor"
	default:
		return "invalid"
	}
}

// ParseCombiningKind parses one of the literal tokens "add", "mul",
// "min", "max", "and", "or", "xor".
func ParseCombiningKind(s string) (CombiningKind, error) {
	switch s {
	case "add":
		return CombiningAdd, nil
	case "mul":
		return CombiningMul, nil
	case "min":
		return CombiningMin, nil
	case "max":
		return CombiningMax, nil
	case "and":
		return CombiningAnd, nil
	case "or":
		return CombiningOr, nil
	case "xor":
		return CombiningXor, nil
	default:
		return 0, errors.Errorf("unknown combining kind %q", s)
	}
}

// SupportsDType reports whether the combining kind is well-defined for
// elements of the given data type. Bitwise kinds require integer or
// boolean elements; min/max require a total order, so complex elements
// are rejected. Patterns use this as a match guard.
func (k CombiningKind) SupportsDType(dtype dtypes.DType) bool {
	switch k {
	case CombiningAdd, CombiningMul:
		return dtype.IsFloat() || dtype.IsInt()
	case CombiningMin, CombiningMax:
		return (dtype.IsFloat() || dtype.IsInt()) && !dtype.IsComplex()
	case CombiningAnd, CombiningOr, CombiningXor:
		return dtype.IsInt() || dtype == dtypes.Bool
	default:
		return false
	}
}
