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

package lower

import "golang.org/x/sys/cpu"

// NativeOptions selects lowering strategies suited to the host CPU. The
// hook for a backend that maps the flat-transpose and matmul primitives
// onto wide SIMD: hosts without such units are better served by the
// fully decomposed forms.
func NativeOptions() Options {
	opts := Options{
		Contract:  ContractDot,
		Transpose: TransposeEltWise,
		Split:     TransferSplitMask,
	}
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		opts = opts.WithContractLowering(ContractOuterProduct).
			WithTransposeLowering(TransposeFlat2D)
	}
	if cpu.X86.HasAVX512F {
		opts = opts.WithContractLowering(ContractMatmul)
	}
	return opts
}
