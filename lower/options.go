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

// Package lower decomposes high-level vector operations into primitive
// ones. It supplies one pattern-set builder per lowering family;
// callers populate a rewrite.PatternSet with the families they want and
// hand it to rewrite.Apply.
package lower

import "github.com/pkg/errors"

// ContractLowering selects the base-case form for contraction
// decomposition.
type ContractLowering int

const (
	// ContractDot progressively lowers to elementwise multiplies and
	// reductions.
	ContractDot ContractLowering = iota

	// ContractMatmul maps the 2-D base case onto the matrix-multiply
	// primitive.
	ContractMatmul

	// ContractOuterProduct lowers the 2-D base case to rank-1
	// outer-product accumulation.
	ContractOuterProduct
)

func (l ContractLowering) String() string {
	switch l {
	case ContractDot:
		return "dot"
	case ContractMatmul:
		return "matmul"
	case ContractOuterProduct:
		return "outerproduct"
	default:
		return "invalid"
	}
}

// ParseContractLowering parses "dot", "matmul" or "outerproduct".
func ParseContractLowering(s string) (ContractLowering, error) {
	switch s {
	case "dot":
		return ContractDot, nil
	case "matmul":
		return ContractMatmul, nil
	case "outerproduct":
		return ContractOuterProduct, nil
	default:
		return 0, errors.Errorf("unknown contract lowering %q", s)
	}
}

// TransposeLowering selects the decomposition form for transposes.
type TransposeLowering int

const (
	// TransposeEltWise lowers a transpose into per-element extract and
	// insert pairs at any rank.
	TransposeEltWise TransposeLowering = iota

	// TransposeFlat2D maps rank-2 transposes onto the specialized
	// flat-transpose primitive; other ranks do not match.
	TransposeFlat2D
)

func (l TransposeLowering) String() string {
	switch l {
	case TransposeEltWise:
		return "eltwise"
	case TransposeFlat2D:
		return "flat"
	default:
		return "invalid"
	}
}

// ParseTransposeLowering parses "eltwise" or "flat".
func ParseTransposeLowering(s string) (TransposeLowering, error) {
	switch s {
	case "eltwise":
		return TransposeEltWise, nil
	case "flat":
		return TransposeFlat2D, nil
	default:
		return 0, errors.Errorf("unknown transpose lowering %q", s)
	}
}

// TransferSplit selects how possibly-out-of-bounds transfers are split.
type TransferSplit int

const (
	// TransferSplitNone emits no split patterns; masking is handled
	// downstream.
	TransferSplitNone TransferSplit = iota

	// TransferSplitMask guards a fast unmasked transfer with a runtime
	// bounds check, keeping a masked transfer on the slow path.
	TransferSplitMask

	// TransferSplitCopyFallback stages the slow path through a scratch
	// buffer: unmasked transfer plus a clamped element-wise copy.
	TransferSplitCopyFallback

	// TransferSplitForceUnmasked drops the mask outright; bounds become
	// a caller-asserted guarantee.
	TransferSplitForceUnmasked
)

func (s TransferSplit) String() string {
	switch s {
	case TransferSplitNone:
		return "none"
	case TransferSplitMask:
		return "mask"
	case TransferSplitCopyFallback:
		return "copy"
	case TransferSplitForceUnmasked:
		return "force-unmasked"
	default:
		return "invalid"
	}
}

// ParseTransferSplit parses "none", "mask", "copy" or "force-unmasked".
func ParseTransferSplit(str string) (TransferSplit, error) {
	switch str {
	case "none":
		return TransferSplitNone, nil
	case "mask":
		return TransferSplitMask, nil
	case "copy":
		return TransferSplitCopyFallback, nil
	case "force-unmasked":
		return TransferSplitForceUnmasked, nil
	default:
		return 0, errors.Errorf("unknown transfer split %q", str)
	}
}

// Options selects one strategy per independently-configurable axis. The
// zero value is a usable default (dot contraction, elementwise
// transpose, no transfer split). Options is a value type: the With*
// setters return updated copies, so a shared Options can never be
// mutated behind a caller's back.
type Options struct {
	Contract  ContractLowering
	Transpose TransposeLowering
	Split     TransferSplit
}

// WithContractLowering returns a copy with the contraction strategy set.
func (o Options) WithContractLowering(l ContractLowering) Options {
	o.Contract = l
	return o
}

// WithTransposeLowering returns a copy with the transpose strategy set.
func (o Options) WithTransposeLowering(l TransposeLowering) Options {
	o.Transpose = l
	return o
}

// WithTransferSplit returns a copy with the transfer-split strategy set.
func (o Options) WithTransferSplit(s TransferSplit) Options {
	o.Split = s
	return o
}
