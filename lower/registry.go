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

import (
	"github.com/vectir/vectir/rewrite"
	"github.com/vectir/vectir/vir"
)

// Exclude is a caller-supplied predicate: when it returns true for an
// operation, the pattern reports no-match for that operation. A nil
// Exclude excludes nothing.
type Exclude func(*vir.Operation) bool

// Pattern application priorities. Canonicalizations run before the
// structural lowerings so that folded forms are what the lowerings see;
// bitcast bubbling deliberately outranks leading-one cast-away so that
// when both apply to the same operation the bubble happens first (the
// ordering is documented in DESIGN.md, the two do not commute).
const (
	benefitCanonicalize = 4
	benefitBubble       = 3
	benefitCastAway     = 2
	benefitSpecialized  = 2 // direct-to-primitive contraction forms
	benefitLowering     = 1
)

// pattern is the one concrete rewrite.Pattern implementation in this
// package: a name, a priority, an optional exclusion predicate and a
// rewrite function.
type pattern struct {
	name    string
	benefit int
	exclude Exclude
	rewrite func(op *vir.Operation, r *rewrite.Rewriter) error
}

func (p *pattern) Name() string { return p.name }

func (p *pattern) Benefit() int { return p.benefit }

func (p *pattern) MatchAndRewrite(op *vir.Operation, r *rewrite.Rewriter) error {
	if p.exclude != nil && p.exclude(op) {
		return rewrite.ErrNoMatch
	}
	return p.rewrite(op, r)
}

// PopulateContractLoweringPatterns appends the contraction decomposition
// patterns selected by opts. The generic progressive peel is always
// included; the matmul and outer-product strategies additionally try a
// direct mapping of the 2-D base case onto their primitive and fall back
// to peeling when the direct form does not match. The shape-cast up/down
// rewrites ride along because the peeled forms expose them.
func PopulateContractLoweringPatterns(ps *rewrite.PatternSet, ctx *vir.Context, opts Options, exclude Exclude) {
	switch opts.Contract {
	case ContractMatmul:
		ps.Add(&pattern{name: "contract-to-matmul", benefit: benefitSpecialized, exclude: exclude, rewrite: rewriteContractToMatmul})
	case ContractOuterProduct:
		ps.Add(&pattern{name: "contract-to-outerproduct", benefit: benefitSpecialized, exclude: exclude, rewrite: rewriteContractToOuterProduct})
	}
	ps.Add(&pattern{name: "contract-peel", benefit: benefitLowering, exclude: exclude, rewrite: rewriteContractPeel})
	ps.Add(&pattern{name: "shape-cast-2d-down", benefit: benefitLowering, exclude: exclude, rewrite: rewriteShapeCast2DDown})
	ps.Add(&pattern{name: "shape-cast-2d-up", benefit: benefitLowering, exclude: exclude, rewrite: rewriteShapeCast2DUp})
}

// PopulateTransposeLoweringPatterns appends the transpose decomposition
// selected by opts. With TransposeFlat2D both the specialized rank-2
// pattern and the elementwise fallback are registered, so non-2-D
// transposes still lower.
func PopulateTransposeLoweringPatterns(ps *rewrite.PatternSet, ctx *vir.Context, opts Options, exclude Exclude) {
	if opts.Transpose == TransposeFlat2D {
		ps.Add(&pattern{name: "transpose-to-flat", benefit: benefitSpecialized, exclude: exclude, rewrite: rewriteTransposeToFlat})
	}
	ps.Add(&pattern{name: "transpose-eltwise", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransposeEltWise})
}

// PopulateTransferSplitPatterns appends the masked-transfer splitting
// strategy selected by opts. TransferSplitNone appends nothing.
func PopulateTransferSplitPatterns(ps *rewrite.PatternSet, ctx *vir.Context, opts Options, exclude Exclude) {
	switch opts.Split {
	case TransferSplitNone:
	case TransferSplitMask:
		ps.Add(&pattern{name: "transfer-split-mask", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransferSplitMask})
	case TransferSplitCopyFallback:
		ps.Add(&pattern{name: "transfer-split-copy", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransferSplitCopy})
	case TransferSplitForceUnmasked:
		ps.Add(&pattern{name: "transfer-force-unmasked", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransferForceUnmasked})
	}
}

// PopulateTransferLoweringPatterns appends the patterns that lower
// unmasked transfers to the raw load/store primitives.
func PopulateTransferLoweringPatterns(ps *rewrite.PatternSet, ctx *vir.Context, exclude Exclude) {
	ps.Add(&pattern{name: "transfer-read-to-load", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransferReadToLoad})
	ps.Add(&pattern{name: "transfer-write-to-store", benefit: benefitLowering, exclude: exclude, rewrite: rewriteTransferWriteToStore})
}

// PopulateSliceLoweringPatterns appends the two bulk-slice lowerings:
// extract-slices to a tuple of elementary extracts, and insert-slices to
// a chain of elementary inserts. Fully-consumed tuples are cleaned up by
// the driver's dead-code elimination; a tuple that escapes is retained.
func PopulateSliceLoweringPatterns(ps *rewrite.PatternSet, ctx *vir.Context, exclude Exclude) {
	ps.Add(&pattern{name: "extract-slices-lowering", benefit: benefitLowering, exclude: exclude, rewrite: rewriteExtractSlices})
	ps.Add(&pattern{name: "insert-slices-lowering", benefit: benefitLowering, exclude: exclude, rewrite: rewriteInsertSlices})
}

// PopulateBitCastBubblingPatterns appends the patterns that move element
// width reinterpretation across extract and insert boundaries, so the
// bitcast always applies to the smallest vector available.
func PopulateBitCastBubblingPatterns(ps *rewrite.PatternSet, ctx *vir.Context, exclude Exclude) {
	ps.Add(&pattern{name: "bubble-bitcast-extract", benefit: benefitBubble, exclude: exclude, rewrite: rewriteBubbleBitCastExtract})
	ps.Add(&pattern{name: "bubble-bitcast-extract-slice", benefit: benefitBubble, exclude: exclude, rewrite: rewriteBubbleBitCastExtractSlice})
	ps.Add(&pattern{name: "bubble-bitcast-insert-slice", benefit: benefitBubble, exclude: exclude, rewrite: rewriteBubbleBitCastInsertSlice})
}

// PopulateCastAwayLeadingOneDimPatterns appends the patterns that drop
// degenerate leading unit dimensions before an operation and restore them
// after it with a shape cast, exposing the canonical lower-rank form.
func PopulateCastAwayLeadingOneDimPatterns(ps *rewrite.PatternSet, ctx *vir.Context, exclude Exclude) {
	ps.Add(&pattern{name: "cast-away-transfer-read", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayTransferRead})
	ps.Add(&pattern{name: "cast-away-transfer-write", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayTransferWrite})
	ps.Add(&pattern{name: "cast-away-broadcast", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayBroadcast})
	ps.Add(&pattern{name: "cast-away-extract-slice", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayExtractSlice})
	ps.Add(&pattern{name: "cast-away-insert-slice", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayInsertSlice})
	ps.Add(&pattern{name: "cast-away-elementwise", benefit: benefitCastAway, exclude: exclude, rewrite: rewriteCastAwayElementwise})
}

// PopulateCanonicalizationPatterns appends the local folds: identity
// shape casts and transposes, chained casts, tuple projections of known
// tuples, and extracts of freshly-inserted values.
func PopulateCanonicalizationPatterns(ps *rewrite.PatternSet, ctx *vir.Context, exclude Exclude) {
	ps.Add(&pattern{name: "fold-shape-cast", benefit: benefitCanonicalize, exclude: exclude, rewrite: rewriteFoldShapeCast})
	ps.Add(&pattern{name: "fold-bitcast", benefit: benefitCanonicalize, exclude: exclude, rewrite: rewriteFoldBitCast})
	ps.Add(&pattern{name: "fold-transpose-identity", benefit: benefitCanonicalize, exclude: exclude, rewrite: rewriteFoldTransposeIdentity})
	ps.Add(&pattern{name: "fold-tuple-get", benefit: benefitCanonicalize, exclude: exclude, rewrite: rewriteFoldTupleGet})
	ps.Add(&pattern{name: "fold-extract-of-insert", benefit: benefitCanonicalize, exclude: exclude, rewrite: rewriteFoldExtractOfInsert})
}

// PopulateAllLoweringPatterns is the kitchen-sink helper used by the CLI
// and tests: every family, one configuration.
func PopulateAllLoweringPatterns(ps *rewrite.PatternSet, ctx *vir.Context, opts Options, exclude Exclude) {
	PopulateCanonicalizationPatterns(ps, ctx, exclude)
	PopulateContractLoweringPatterns(ps, ctx, opts, exclude)
	PopulateTransposeLoweringPatterns(ps, ctx, opts, exclude)
	PopulateTransferSplitPatterns(ps, ctx, opts, exclude)
	PopulateSliceLoweringPatterns(ps, ctx, exclude)
	PopulateBitCastBubblingPatterns(ps, ctx, exclude)
	PopulateCastAwayLeadingOneDimPatterns(ps, ctx, exclude)
}
