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

// rewriteExtractSlices decomposes a tiling extraction into one strided
// slice per tile, aggregated back into a tuple. Tuple projections of the
// result fold away through the tuple-get canonicalization; a tuple that
// escapes keeps its materialized form.
func rewriteExtractSlices(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpExtractSlices {
		return rewrite.ErrNoMatch
	}
	src := op.Operand(0)
	vt := src.VectorType()
	sizes := op.IntsAttr("sizes")
	strides := op.IntsAttr("strides")
	var parts []*vir.Value
	for _, tile := range vir.TileGrid(vt.Dims(), sizes) {
		parts = append(parts, r.CreateExtractStridedSlice(src, tile.Offsets, tile.Sizes, strides))
	}
	r.ReplaceOpWith(op, r.CreateTuple(parts...))
	return nil
}

// rewriteInsertSlices reassembles the tiled tuple with a chain of
// strided inserts over a zero-seeded vector.
func rewriteInsertSlices(op *vir.Operation, r *rewrite.Rewriter) error {
	if op.Kind != vir.OpInsertSlices {
		return rewrite.ErrNoMatch
	}
	tuple := op.Operand(0)
	vt := op.Result(0).VectorType()
	sizes := op.IntsAttr("sizes")
	strides := op.IntsAttr("strides")
	result := r.CreateBroadcast(vt, zeroConstant(r, vt.DType()))
	for i, tile := range vir.TileGrid(vt.Dims(), sizes) {
		part := r.CreateTupleGet(tuple, i)
		result = r.CreateInsertStridedSlice(part, result, tile.Offsets, strides)
	}
	r.ReplaceOpWith(op, result)
	return nil
}
